package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timelogic/wfm-api/internal/model"
	"github.com/timelogic/wfm-api/internal/service/authz"
	pkgauth "github.com/timelogic/wfm-api/pkg/auth"
	apperrors "github.com/timelogic/wfm-api/pkg/errors"
	"github.com/timelogic/wfm-api/pkg/httputil"
)

const ContextPrincipal = "principal"

type AuthMiddleware struct {
	jwt pkgauth.JWTService
}

func NewAuthMiddleware(jwt pkgauth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and stores the caller's principal in
// the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			c.Abort()
			return
		}

		claims, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			c.Abort()
			return
		}

		c.Set(ContextPrincipal, claims.Principal())
		c.Next()
	}
}

// RequireAction gates a route on the role policy for the given action.
func (m *AuthMiddleware) RequireAction(action authz.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			c.Abort()
			return
		}

		decision := authz.Evaluate(principal, action)
		if !decision.Allowed {
			httputil.RespondWithError(c, apperrors.Forbidden(decision.Reason))
			c.Abort()
			return
		}

		c.Next()
	}
}

// PrincipalFrom extracts the authenticated principal set by Authenticate.
func PrincipalFrom(c *gin.Context) (model.Principal, bool) {
	v, exists := c.Get(ContextPrincipal)
	if !exists {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}
