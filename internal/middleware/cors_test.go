package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func corsContext(method, origin string) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, "/api/v1/chat", nil)
	if origin != "" {
		c.Request.Header.Set("Origin", origin)
	}
	return c, rec
}

func TestCORSEmptyAllowlistAllowsAnyOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, rec := corsContext(http.MethodPost, "https://anywhere.example")
	CORS(nil)(c)
	require.False(t, c.IsAborted())
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, corsAllowMethods, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSAllowlistedOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	allow := []string{"https://app.example"}

	c, rec := corsContext(http.MethodPost, "https://app.example")
	CORS(allow)(c)
	require.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", rec.Header().Get("Vary"))

	c, rec = corsContext(http.MethodPost, "https://evil.example")
	CORS(allow)(c)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, rec := corsContext(http.MethodOptions, "https://app.example")
	CORS(nil)(c)
	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusNoContent, rec.Code)
}
