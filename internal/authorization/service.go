package authorization

import (
	"context"
	"errors"

	authdomain "github.com/smallbiznis/givelane/internal/auth/domain"
)

type Service interface {
	// Authorize checks whether principal may perform action on object.
	// Ownership of individual records is enforced by the owning service.
	Authorize(ctx context.Context, principal authdomain.Principal, object string, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
