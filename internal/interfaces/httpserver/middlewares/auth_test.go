package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func authRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	keys := map[string]struct{}{"valid-key": {}}

	router := gin.New()
	router.Use(AuthMiddleware(keys, zerolog.Nop()))
	router.GET("/protected", func(c *gin.Context) {
		key, ok := APIKeyFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "key missing from context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": key})
	})
	return router
}

func authRequest(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthMissingHeader(t *testing.T) {
	rec := authRequest(authRouter(), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMalformedHeader(t *testing.T) {
	rec := authRequest(authRouter(), "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthUnknownKey(t *testing.T) {
	rec := authRequest(authRouter(), "Bearer wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthValidKey(t *testing.T) {
	rec := authRequest(authRouter(), "Bearer valid-key")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "valid-key")
}

func TestAuthCaseInsensitiveScheme(t *testing.T) {
	rec := authRequest(authRouter(), "bearer valid-key")
	assert.Equal(t, http.StatusOK, rec.Code)
}
