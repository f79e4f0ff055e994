package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roofline/crmcore/internal/database"
	"github.com/roofline/crmcore/internal/pipeline/domain"
	"github.com/roofline/crmcore/internal/tenant"
)

func TestMySQLEntryRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLEntryRepository(db)
	entry := newTestEntry(time.Now().UTC().Truncate(time.Second))
	location := uuid.Must(uuid.NewV7())

	rows := sqlmock.NewRows(entryColumnNames).AddRow(
		database.BinaryUUID(entry.ID), database.BinaryUUID(entry.TenantID), database.BinaryUUID(entry.ContactID),
		database.BinaryUUID(location), "legal_review", entry.StatusEnteredAt, nil, "none", nil,
		[]byte(`{}`), nil, nil, entry.CreatedAt, entry.UpdatedAt,
	)
	mock.ExpectQuery("SELECT (.+) FROM pipeline_entries WHERE tenant_id = \\? AND id = \\?").
		WithArgs(database.BinaryUUID(entry.TenantID), database.BinaryUUID(entry.ID)).
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), entry.TenantID, entry.ID)

	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, location, *got.LocationID)
	assert.Nil(t, got.AssignedTo)
	assert.Nil(t, got.EstimatedValueCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLEntryRepository_ListFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLEntryRepository(db)
	tenantID := uuid.Must(uuid.NewV7())
	assignee := uuid.Must(uuid.NewV7())

	mock.ExpectQuery("WHERE tenant_id = \\? AND assigned_to = \\? AND deleted_at IS NULL ORDER BY").
		WithArgs(database.BinaryUUID(tenantID), database.BinaryUUID(assignee), 50, 0).
		WillReturnRows(sqlmock.NewRows(entryColumnNames))

	_, err := repo.List(context.Background(), tenantID, domain.ListEntriesFilter{AssignedTo: &assignee, Limit: 50})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLRuleRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLRuleRepository(db)
	tenantID := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()

	t.Run("CreateDuplicate", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO transition_rules").WillReturnError(&mysql.MySQLError{Number: 1062})

		err := repo.Create(context.Background(), &domain.TransitionRule{
			ID: uuid.Must(uuid.NewV7()), TenantID: tenantID,
			FromStatus: domain.StatusLead, ToStatus: domain.StatusLost,
		})

		assert.ErrorIs(t, err, domain.ErrRuleAlreadyExists)
	})

	t.Run("ListActiveOnly", func(t *testing.T) {
		ruleID := uuid.Must(uuid.NewV7())
		rows := sqlmock.NewRows(ruleColumnNames).AddRow(
			database.BinaryUUID(ruleID), database.BinaryUUID(tenantID), "lead", "lost", []byte(`[]`),
			false, true, int64(0), nil, nil, true, now, now,
		)
		mock.ExpectQuery("FROM transition_rules WHERE tenant_id = \\? AND active = TRUE ORDER BY from_status, to_status").
			WithArgs(database.BinaryUUID(tenantID)).
			WillReturnRows(rows)

		rules, err := repo.List(context.Background(), tenantID, true)

		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, ruleID, rules[0].ID)
		assert.True(t, rules[0].RequiresReason)
		assert.Empty(t, rules[0].RequiredRoles)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLApprovalRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLApprovalRepository(db)
	now := time.Now().UTC()
	approval := &domain.ApprovalRequest{
		ID:            uuid.Must(uuid.NewV7()),
		TenantID:      uuid.Must(uuid.NewV7()),
		EntryID:       uuid.Must(uuid.NewV7()),
		FromStatus:    domain.StatusCompleted,
		ToStatus:      domain.StatusClosed,
		RequestedBy:   uuid.Must(uuid.NewV7()),
		RequestedRole: tenant.RoleOffice,
		Status:        domain.ApprovalPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectExec("INSERT INTO approval_requests").
		WithArgs(database.BinaryUUID(approval.ID), database.BinaryUUID(approval.TenantID),
			database.BinaryUUID(approval.EntryID), "completed", "closed", database.BinaryUUID(approval.RequestedBy),
			"office", nil, "pending", nil, nil, nil, now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), approval))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLHistoryRepository_ListByEntry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLHistoryRepository(db)
	tenantID := uuid.Must(uuid.NewV7())
	entryID := uuid.Must(uuid.NewV7())
	approvalID := uuid.Must(uuid.NewV7())
	managerID := uuid.Must(uuid.NewV7())

	rows := sqlmock.NewRows(historyColumnNames).AddRow(
		database.BinaryUUID(uuid.Must(uuid.NewV7())), database.BinaryUUID(tenantID), database.BinaryUUID(entryID),
		"contingency_signed", "project", database.BinaryUUID(uuid.Must(uuid.NewV7())), "sales_rep", nil,
		true, false, database.BinaryUUID(approvalID), database.BinaryUUID(managerID), time.Now().UTC(),
	)
	mock.ExpectQuery("FROM transition_history").
		WithArgs(database.BinaryUUID(tenantID), database.BinaryUUID(entryID), 10, 0).
		WillReturnRows(rows)

	history, err := repo.ListByEntry(context.Background(), tenantID, entryID, 0, 10)

	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, approvalID, *history[0].ApprovalRequestID)
	assert.Equal(t, managerID, *history[0].ApprovedBy)
	assert.True(t, history[0].RequiresApproval)
}
