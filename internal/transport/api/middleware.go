package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quiz-editor/internal/auth"
)

const (
	authRoleAdmin = auth.RoleAdmin
	claimsKey     = "claims"
)

// Authenticate verifies the bearer token and stores its claims on the context.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := auth.Verify(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(claimsKey)
		claims, _ := v.(*auth.Claims)
		if !ok || claims == nil || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": auth.ErrNotAdmin.Error()})
			return
		}
		c.Next()
	}
}
