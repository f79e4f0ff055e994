package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corsRouter(t *testing.T, enabled bool, origins string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	if mw := corsMiddleware(enabled, origins, slog.Default()); mw != nil {
		router.Use(mw)
	}
	router.POST("/v1/pipeline/entries", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"id": "entry-1"})
	})
	return router
}

func TestCORSMiddleware_Skipped(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		origins string
	}{
		{"disabled", false, "https://crm.example.com"},
		{"no origins", true, ""},
		{"only separators", true, " , ,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, corsMiddleware(tt.enabled, tt.origins, slog.Default()))
		})
	}
}

func TestSplitOrigins(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"https://crm.example.com", []string{"https://crm.example.com"}},
		{
			" https://crm.example.com/ , https://field.example.com,https://crm.example.com",
			[]string{"https://crm.example.com", "https://field.example.com"},
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, splitOrigins(tt.in), tt.in)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	router := corsRouter(t, true, "https://crm.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/v1/pipeline/entries", nil)
	req.Header.Set("Origin", "https://crm.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-Tenant-ID,Idempotency-Key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://crm.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Tenant-Id")
}

func TestCORSMiddleware_ExposesGuardHeaders(t *testing.T) {
	router := corsRouter(t, true, "https://crm.example.com")

	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/entries", nil)
	req.Header.Set("Origin", "https://crm.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	exposed := w.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposed, "Idempotent-Replayed")
	assert.Contains(t, exposed, "Retry-After")
}

func TestCORSMiddleware_UnknownOrigin(t *testing.T) {
	router := corsRouter(t, true, "https://crm.example.com")

	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/entries", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_Wildcard(t *testing.T) {
	router := corsRouter(t, true, "*")

	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/entries", nil)
	req.Header.Set("Origin", "https://anything.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSMiddleware_Disabled(t *testing.T) {
	router := corsRouter(t, false, "https://crm.example.com")

	req := httptest.NewRequest(http.MethodPost, "/v1/pipeline/entries", nil)
	req.Header.Set("Origin", "https://crm.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
