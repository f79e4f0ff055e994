package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/roofline/crmcore/internal/errors"
	"github.com/roofline/crmcore/internal/httputil"
)

func TestParsePagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		url            string
		expectedOffset int
		expectedLimit  int
		expectError    bool
	}{
		{name: "default values", url: "/", expectedOffset: 0, expectedLimit: 50},
		{name: "custom values", url: "/?offset=20&limit=10", expectedOffset: 20, expectedLimit: 10},
		{name: "max limit", url: "/?limit=100", expectedOffset: 0, expectedLimit: 100},
		{name: "limit above max", url: "/?limit=101", expectError: true},
		{name: "zero limit", url: "/?limit=0", expectError: true},
		{name: "negative offset", url: "/?offset=-1", expectError: true},
		{name: "non-numeric offset", url: "/?offset=abc", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, tt.url, nil)

			offset, limit, err := httputil.ParsePagination(c)

			if tt.expectError {
				assert.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedOffset, offset)
			assert.Equal(t, tt.expectedLimit, limit)
		})
	}
}

func TestSetRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		delay    time.Duration
		expected string
	}{
		{name: "rounds up", delay: 1500 * time.Millisecond, expected: "2"},
		{name: "exact seconds", delay: 3 * time.Second, expected: "3"},
		{name: "sub-second becomes one", delay: 10 * time.Millisecond, expected: "1"},
		{name: "zero becomes one", delay: 0, expected: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			httputil.SetRetryAfter(c, tt.delay)
			assert.Equal(t, tt.expected, w.Header().Get("Retry-After"))
		})
	}
}
