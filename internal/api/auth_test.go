package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/quotamail/quotamail/internal/logging"
)

func authTestRouter(apiKeys []string, headerName string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.WithOutput(&buf))

	r := gin.New()
	r.Use(APIKeyAuth(apiKeys, headerName, logger))
	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAPIKeyAuthNoKeysConfigured(t *testing.T) {
	r := authTestRouter(nil, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthMissingKey(t *testing.T) {
	r := authTestRouter([]string{"secret"}, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "API key is required")
}

func TestAPIKeyAuthInvalidKey(t *testing.T) {
	r := authTestRouter([]string{"secret"}, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set(DefaultAPIKeyHeader, "wrong")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")
}

func TestAPIKeyAuthValidKey(t *testing.T) {
	r := authTestRouter([]string{"secret", "other"}, "")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set(DefaultAPIKeyHeader, "other")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthCustomHeader(t *testing.T) {
	r := authTestRouter([]string{"secret"}, "X-Quotamail-Key")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("X-Quotamail-Key", "secret")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMaskAPIKeys(t *testing.T) {
	masked := MaskAPIKeys([]string{"abc", "abcdefgh"})
	assert.Equal(t, []string{"***", "abcd****"}, masked)
}
