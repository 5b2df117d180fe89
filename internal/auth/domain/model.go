// Package domain contains core types for bearer token authentication.
package domain

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the coarse permission group carried in a token.
type Role string

const (
	RoleDonor Role = "donor"
	RoleAdmin Role = "admin"
)

// ParseRole accepts the known roles case-insensitively.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleDonor:
		return RoleDonor, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", ErrInvalidRole
}

// Claims is the JWT payload. Subject holds the donor id for donor tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Principal is the authenticated caller of one request.
type Principal struct {
	Subject string
	Role    Role
	TokenID string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
