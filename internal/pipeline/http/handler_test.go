package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pipelineDomain "github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/pipeline/usecase/mocks"
	"github.com/roofline/crmcore/internal/tenant"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestPipelineUseCase(t *testing.T) *mocks.MockPipelineUseCase {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return mocks.NewMockPipelineUseCase(t)
}

// createTestContext creates a test Gin context scoped to tc with an optional id
// path parameter.
func createTestContext(
	method, path string,
	body any,
	tc *tenant.Context,
	id string,
) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if tc != nil {
		req = req.WithContext(tenant.WithContext(req.Context(), tc))
	}
	c.Request = req
	if id != "" {
		c.Params = gin.Params{{Key: "id", Value: id}}
	}

	return c, w
}

func scope(role tenant.Role) *tenant.Context {
	return &tenant.Context{
		TenantID: uuid.Must(uuid.NewV7()),
		Actor:    tenant.Actor{UserID: uuid.Must(uuid.NewV7()), Role: role},
	}
}

func testEntry(tenantID uuid.UUID, status pipelineDomain.Status) *pipelineDomain.Entry {
	now := time.Now().UTC()
	return &pipelineDomain.Entry{
		ID:              uuid.Must(uuid.NewV7()),
		TenantID:        tenantID,
		ContactID:       uuid.Must(uuid.NewV7()),
		Status:          status,
		StatusEnteredAt: now,
		ApprovalStatus:  pipelineDomain.ApprovalNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func testApproval(entry *pipelineDomain.Entry, to pipelineDomain.Status) *pipelineDomain.ApprovalRequest {
	now := time.Now().UTC()
	return &pipelineDomain.ApprovalRequest{
		ID:            uuid.Must(uuid.NewV7()),
		TenantID:      entry.TenantID,
		EntryID:       entry.ID,
		FromStatus:    entry.Status,
		ToStatus:      to,
		RequestedBy:   uuid.Must(uuid.NewV7()),
		RequestedRole: tenant.RoleOffice,
		Status:        pipelineDomain.ApprovalPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
