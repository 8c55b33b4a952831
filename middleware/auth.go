package middleware

import (
	"errors"
	"strings"

	"canteen-api/apperr"
	"canteen-api/auth"
	"canteen-api/models"
	"canteen-api/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const principalKey = "principal"

// Authenticate resolves the caller once per request. A bearer token wins over
// the session cookie; a bad bearer token is rejected outright. Requests with
// neither continue anonymously.
func Authenticate(tokens *auth.TokenManager, sessions session.Store, cookieName string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				abort(c, apperr.Unauthenticated("Authorization header must be Bearer <token>"))
				return
			}
			claims, err := tokens.Parse(strings.TrimSpace(tokenStr))
			if errors.Is(err, auth.ErrTokenExpired) {
				abort(c, apperr.Unauthenticated("Token expired"))
				return
			}
			if err != nil {
				abort(c, apperr.Unauthenticated("Invalid token"))
				return
			}
			c.Set(principalKey, claims.Principal())
			c.Next()
			return
		}

		if sid, err := c.Cookie(cookieName); err == nil && sid != "" {
			p, err := sessions.Get(c.Request.Context(), sid)
			switch {
			case err == nil:
				c.Set(principalKey, p)
			case errors.Is(err, session.ErrNotFound):
			default:
				log.Warn("session lookup failed", zap.Error(err))
			}
		}
		c.Next()
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalFrom(c) == nil {
			abort(c, apperr.Unauthenticated("Not authenticated"))
			return
		}
		c.Next()
	}
}

// RequireRole allows only the given roles. Must run after RequireAuth.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			abort(c, apperr.Unauthenticated("Not authenticated"))
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		abort(c, apperr.Forbidden("Not authorized"))
	}
}

// PrincipalFrom returns the resolved caller, or nil for anonymous requests.
func PrincipalFrom(c *gin.Context) *auth.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*auth.Principal)
	return p
}

func abort(c *gin.Context, err *apperr.Error) {
	c.AbortWithStatusJSON(err.HTTPStatus(), gin.H{"error": err.Message, "code": err.Kind})
}
