package middleware

import (
	"context"
	"net/http"
	"strings"

	"sessionauth/internal/pkg/jwt"
	"sessionauth/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const bearerPrefix = "Bearer "

type tokenVerifier interface {
	ParseAndVerify(token string) (*jwt.Claims, error)
}

// tokenReader is the read-only slice of the revocation store the gate needs.
type tokenReader interface {
	AccessToken(ctx context.Context, subject string) (string, error)
	IsBlacklisted(ctx context.Context, token string) (bool, error)
}

// Authenticate resolves a bearer token to an identity in the gin context.
// Every failure mode — missing or malformed header, failed verification,
// blacklisted token, token superseded by a newer login — degrades to an
// unauthenticated request instead of aborting; RequireAuth and RequireRole
// decide downstream whether that is acceptable for the route.
func Authenticate(verifier tokenVerifier, tokens tokenReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), bearerPrefix)
		if !ok || token == "" {
			c.Next()
			return
		}

		claims, err := verifier.ParseAndVerify(token)
		if err != nil || claims.Kind != jwt.KindAccess {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		revoked, err := tokens.IsBlacklisted(ctx, token)
		if err != nil || revoked {
			c.Next()
			return
		}

		// A token that verifies but is no longer the subject's current one
		// has been logged out or displaced by a later login.
		current, err := tokens.AccessToken(ctx, claims.Subject)
		if err != nil || current != token {
			c.Next()
			return
		}

		c.Set("username", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireAuth rejects requests that reached here unauthenticated.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("username") == "" {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole ensures that the authenticated user has the specified role
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			c.Abort()
			return
		}

		if role != requiredRole {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

// AdminOnly middleware requires admin role
func AdminOnly() gin.HandlerFunc {
	return RequireRole("admin")
}
