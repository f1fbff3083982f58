package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/docvault/docvault/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

// Claims are the token claims the upload engine cares about. Authentication
// itself lives in the gateway; this middleware only resolves the principal
// for ownership and quota accounting.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Principal returns the owner identity recorded on sessions and documents
func (c *Claims) Principal() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}

// Middleware validates the bearer token and stores the caller's identity in
// the request context
func Middleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid || claims.Principal() == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Set(identityKey, claims.Principal())
		c.Next()
	}
}

// IdentityFromContext extracts the authenticated principal from gin context
func IdentityFromContext(c *gin.Context) (string, bool) {
	identity, exists := c.Get(identityKey)
	if !exists {
		return "", false
	}
	principal, ok := identity.(string)
	return principal, ok && principal != ""
}
