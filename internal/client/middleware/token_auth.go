package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenAuthConfig configures the shared-token guard on the control plane.
type TokenAuthConfig struct {
	// Token is the expected bearer token. Empty disables auth, for local
	// development against a daemon on the loopback interface.
	Token string
}

// TokenAuth rejects requests that do not carry the configured token as a
// bearer header or a token query parameter.
func TokenAuth(config TokenAuthConfig) gin.HandlerFunc {
	if config.Token == "" {
		slog.Info("control plane auth disabled")
		return func(c *gin.Context) { c.Next() }
	}

	slog.Info("control plane auth enabled")
	want := []byte(config.Token)

	return func(c *gin.Context) {
		got := []byte(requestToken(c))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			slog.Debug("invalid control plane token", "ip", c.ClientIP(), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "E_UNAUTHENTICATED",
				"error": "unauthorized",
			})
			return
		}

		c.Set("authenticated", true)
		c.Next()
	}
}

// requestToken pulls the client token from the Authorization header, falling
// back to the token query parameter for clients that cannot set headers.
func requestToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}
