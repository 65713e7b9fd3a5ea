package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger logs one line per request with method, path, status and
// latency.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// apiKeyAuth enforces bearer-token auth when keyEnv names an environment
// variable holding the expected key. An empty keyEnv or an unset variable
// disables auth. The key itself is never logged.
func apiKeyAuth(keyEnv string, logger *slog.Logger) gin.HandlerFunc {
	expected := ""
	if keyEnv != "" {
		expected = os.Getenv(keyEnv)
		if expected == "" {
			logger.Warn("API key env var not set, auth disabled", "env", keyEnv)
		}
	}

	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}
		presented := bearerToken(c.GetHeader("Authorization"))
		if presented == "" {
			presented = c.GetHeader("X-API-Key")
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
