package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lumohq/ops-assistant/internal/infrastructure/metrics"
	"github.com/lumohq/ops-assistant/internal/interfaces/httpserver/responses"
)

const apiKeyContextKey = "api_key"

// AuthMiddleware validates the Authorization bearer token against the
// configured key set. The key doubles as the rate-limit identity for the
// request, so it is stored in the gin context for downstream handlers.
func AuthMiddleware(keys map[string]struct{}, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Warn().
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("unauthenticated request")
			metrics.RecordAuth("missing")
			responses.HandleErrorWithStatus(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if _, known := keys[key]; !known {
			logger.Warn().
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("invalid api key")
			metrics.RecordAuth("invalid")
			responses.HandleErrorWithStatus(c, http.StatusUnauthorized, "invalid API key")
			return
		}

		metrics.RecordAuth("ok")
		c.Set(apiKeyContextKey, key)
		c.Next()
	}
}

// APIKeyFromContext returns the authenticated API key, if any.
func APIKeyFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(apiKeyContextKey)
	if !ok {
		return "", false
	}
	key, ok := val.(string)
	return key, ok
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
