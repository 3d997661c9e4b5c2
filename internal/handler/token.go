package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const tokenKey = "api_token"

// ExtractToken returns the bearer token of r, or "".
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// TokenMiddleware requires a bearer token. The token is the caller's
// mailbox API token and is passed through to the provider.
func TokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		c.Set(tokenKey, token)
		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	return c.GetString(tokenKey)
}
