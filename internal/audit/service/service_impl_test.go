package service

import (
	"context"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/hmsinsure/internal/audit/domain"
	"github.com/smallbiznis/hmsinsure/internal/audit/repository"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	obscontext "github.com/smallbiznis/hmsinsure/internal/observability/context"
	"github.com/smallbiznis/hmsinsure/pkg/db/dbtest"
	"github.com/smallbiznis/hmsinsure/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	db := dbtest.Open(t, &auditdomain.AuditLog{})
	clk := clock.NewFakeClock(time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Repo:  repository.Provide(),
		Clock: clk,
	}).(*Service)
	return svc, clk
}

func TestRecordResolvesActorFromContext(t *testing.T) {
	svc, _ := newService(t)

	ctx := obscontext.WithActor(context.Background(), "claims_officer", "claims")
	ctx = obscontext.WithCompany(ctx, "Aga Khan Hospital")
	ctx = obscontext.WithRequestID(ctx, "req-1")

	require.NoError(t, svc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionClaimSubmitted,
		TargetType: "claim",
		TargetID:   "42",
		Metadata:   map[string]any{"folio_no": "AKH-000001", "": "dropped"},
	}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "claims_officer", entry.ActorRole)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "claims", *entry.ActorID)
	require.NotNil(t, entry.Company)
	assert.Equal(t, "Aga Khan Hospital", *entry.Company)
	require.NotNil(t, entry.RequestID)
	assert.Equal(t, "req-1", *entry.RequestID)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "42", *entry.TargetID)
	assert.Equal(t, "AKH-000001", entry.Metadata["folio_no"])
	assert.NotContains(t, entry.Metadata, "")
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	svc, _ := newService(t)

	require.NoError(t, svc.Record(context.Background(), auditdomain.Entry{Action: auditdomain.ActionProviderSync}))
	assert.ErrorIs(t, svc.Record(context.Background(), auditdomain.Entry{Action: " "}), auditdomain.ErrInvalidAction)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, auditdomain.ActorRoleSystem, resp.AuditLogs[0].ActorRole)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
	assert.Nil(t, resp.AuditLogs[0].ActorID)
}

func TestListPagesNewestFirstAndScopesCompany(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, auditdomain.Entry{Company: "Aga Khan Hospital", Action: auditdomain.ActionClaimValidated}))
		clk.Advance(time.Minute)
	}
	require.NoError(t, svc.Record(ctx, auditdomain.Entry{Company: "Mwananyamala", Action: auditdomain.ActionClaimValidated}))

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2},
		Company:    "Aga Khan Hospital",
	})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
		Company:    "Aga Khan Hospital",
	})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	scoped := obscontext.WithCompany(ctx, "Mwananyamala")
	other, err := svc.List(scoped, auditdomain.ListAuditLogRequest{Company: "Aga Khan Hospital"})
	require.NoError(t, err)
	require.Len(t, other.AuditLogs, 1)
	assert.Equal(t, "Mwananyamala", *other.AuditLogs[0].Company)
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
