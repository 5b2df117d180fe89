package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/givelane/internal/auth/domain"
	obscontext "github.com/smallbiznis/givelane/internal/observability/context"
	"github.com/smallbiznis/givelane/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	contextPrincipalKey = "principal"
	contextDonorIDKey   = "donor_id"
	headerIdempotency   = "Idempotency-Key"
)

// AuthRequired resolves the bearer token into a principal.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			AbortWithError(c, authdomain.ErrMissingToken)
			return
		}

		principal, err := s.authsvc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug("bearer authentication failed", zap.Error(err))
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), string(principal.Role), principal.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextPrincipalKey, *principal)
		if !principal.IsAdmin() {
			c.Set(contextDonorIDKey, principal.Subject)
		}
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), principal, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func principalFromContext(c *gin.Context) (authdomain.Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return authdomain.Principal{}, false
	}
	principal, ok := value.(authdomain.Principal)
	return principal, ok
}

// requestLogger returns the request logger tagged with the caller.
func (s *Server) requestLogger(c *gin.Context) *zap.Logger {
	log := logger.WithContext(c.Request.Context(), s.log)
	if principal, ok := principalFromContext(c); ok {
		log = logger.WithActor(log, string(principal.Role), principal.Subject)
	}
	return log
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
