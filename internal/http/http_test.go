package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roofline/crmcore/internal/metrics"
	"github.com/roofline/crmcore/internal/tenant"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// healthRouter wires only the health and readiness routes of s.
func healthRouter(s *Server) *gin.Engine {
	router := gin.New()
	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)
	return router
}

type readiness struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

func getReadiness(t *testing.T, s *Server) (int, readiness) {
	t.Helper()

	w := httptest.NewRecorder()
	healthRouter(s).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var body readiness
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	healthRouter(NewServer(nil, "localhost", 0, discardLogger())).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		mock.ExpectPing()

		code, body := getReadiness(t, NewServer(db, "localhost", 0, discardLogger()))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", body.Status)
		assert.Equal(t, "ok", body.Components["database"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		code, body := getReadiness(t, NewServer(db, "localhost", 0, discardLogger()))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, "error", body.Components["database"])
	})

	t.Run("no database", func(t *testing.T) {
		code, body := getReadiness(t, NewServer(nil, "localhost", 0, discardLogger()))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "error", body.Components["database"])
	})
}

func TestCustomLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	tenantID := uuid.Must(uuid.NewV7())
	userID := uuid.Must(uuid.NewV7())

	router := gin.New()
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(logger))
	router.Use(tenant.Middleware(tenant.NewHeaderResolver(), logger))
	router.GET("/v1/pipeline/entries", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": []string{}})
	})
	router.GET("/v1/broken", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/pipeline/entries?limit=10", nil)
	req.Header.Set(tenant.HeaderTenantID, tenantID.String())
	req.Header.Set(tenant.HeaderUserID, userID.String())
	req.Header.Set(tenant.HeaderUserRole, "manager")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "/v1/pipeline/entries", line["path"])
	assert.Equal(t, "limit=10", line["query"])
	assert.Equal(t, tenantID.String(), line["tenant_id"])
	assert.Equal(t, userID.String(), line["user_id"])
	assert.Equal(t, w.Header().Get("X-Request-Id"), line["request_id"])

	buf.Reset()
	req = httptest.NewRequest(http.MethodGet, "/v1/broken", nil)
	req.Header.Set(tenant.HeaderTenantID, tenantID.String())
	req.Header.Set(tenant.HeaderUserID, userID.String())
	req.Header.Set(tenant.HeaderUserRole, "manager")
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
}

func TestServer_StartRequiresRouter(t *testing.T) {
	err := NewServer(nil, "localhost", 0, discardLogger()).Start(context.Background())
	assert.EqualError(t, err, "router not configured")
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := NewServer(nil, "127.0.0.1", 0, discardLogger())
	server.router = healthRouter(server)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(context.Background()) }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestMetricsServer(t *testing.T) {
	provider, err := metrics.NewProvider("crmcore")
	require.NoError(t, err)
	defer func() { assert.NoError(t, provider.Shutdown(context.Background())) }()

	handler := NewMetricsServer("localhost", 0, discardLogger(), provider).GetHandler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/pipeline/entries", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
