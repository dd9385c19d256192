package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/hmsinsure/internal/apikey/domain"
	apikeyrepository "github.com/smallbiznis/hmsinsure/internal/apikey/repository"
	apikeyservice "github.com/smallbiznis/hmsinsure/internal/apikey/service"
	auditdomain "github.com/smallbiznis/hmsinsure/internal/audit/domain"
	auditrepository "github.com/smallbiznis/hmsinsure/internal/audit/repository"
	auditservice "github.com/smallbiznis/hmsinsure/internal/audit/service"
	"github.com/smallbiznis/hmsinsure/internal/authorization"
	claimdomain "github.com/smallbiznis/hmsinsure/internal/claim/domain"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	deliverynotedomain "github.com/smallbiznis/hmsinsure/internal/deliverynote/domain"
	"github.com/smallbiznis/hmsinsure/internal/jobqueue"
	"github.com/smallbiznis/hmsinsure/internal/observability"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/internal/syncjob"
	"github.com/smallbiznis/hmsinsure/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const company = "Aga Khan Hospital"

type fakeClaims struct {
	claimdomain.Service
	claims     map[snowflake.ID]*claimdomain.Claim
	reconciled int
	submitter  string
}

func (f *fakeClaims) Get(_ context.Context, id snowflake.ID) (*claimdomain.Claim, error) {
	claim, ok := f.claims[id]
	if !ok {
		return nil, claimdomain.ErrClaimNotFound
	}
	return claim, nil
}

func (f *fakeClaims) Submit(_ context.Context, id snowflake.ID, submittedBy string) (*claimdomain.Claim, error) {
	f.submitter = submittedBy
	claim := *f.claims[id]
	claim.Status = claimdomain.StatusSubmitted
	return &claim, nil
}

func (f *fakeClaims) ReconcileRepeatedItems(_ context.Context, id snowflake.ID) (*claimdomain.ReconcileResult, error) {
	f.reconciled++
	return &claimdomain.ReconcileResult{Claim: f.claims[id], Removed: 2}, nil
}

type fakeSyncs struct {
	args []syncjob.Args
}

func (f *fakeSyncs) EnqueueSync(_ context.Context, args syncjob.Args) (*jobqueue.Job, error) {
	f.args = append(f.args, args)
	return &jobqueue.Job{ID: "01JOB", Method: syncjob.MethodSyncPackages, Queue: syncjob.LongQueue, Status: jobqueue.StatusQueued}, nil
}

func (f *fakeSyncs) EnqueueProcess(_ context.Context, args syncjob.Args) ([]*jobqueue.Job, error) {
	f.args = append(f.args, args)
	return []*jobqueue.Job{{ID: "01A"}, {ID: "01B"}}, nil
}

type fakeJobs map[string]*jobqueue.Job

func (f fakeJobs) Get(_ context.Context, id string) (*jobqueue.Job, error) {
	job, ok := f[id]
	if !ok {
		return nil, jobqueue.ErrJobNotFound
	}
	return job, nil
}

type fakeCards struct{}

func (fakeCards) CardVerifier(p providerdomain.Provider) (providerdomain.CardVerifier, error) {
	return nil, providerdomain.ErrCardLookupUnsupported
}

type testServer struct {
	engine *gin.Engine
	keys   map[string]string
	claims *fakeClaims
	syncs  *fakeSyncs
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.Open(t, &apikeydomain.APIKey{}, &auditdomain.AuditLog{})
	apiKeys := apikeyservice.New(apikeyservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Repo:  apikeyrepository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)),
	})
	audits := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Repo:  auditrepository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)),
	})
	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)

	keys := make(map[string]string)
	for name, req := range map[string]apikeydomain.CreateRequest{
		"admin":       {Name: "ops", Role: apikeydomain.RoleAdmin},
		"clerk":       {Name: "front desk", Role: apikeydomain.RoleClerk, Company: company},
		"other_clerk": {Name: "other desk", Role: apikeydomain.RoleClerk, Company: "Mwananyamala"},
		"officer":     {Name: "claims", Role: apikeydomain.RoleClaimsOfficer, Company: company},
	} {
		secret, err := apiKeys.Create(context.Background(), req)
		require.NoError(t, err)
		keys[name] = secret.APIKey
	}

	claims := &fakeClaims{claims: map[snowflake.ID]*claimdomain.Claim{
		42: {ID: 42, Company: company, Provider: "NHIF", Status: claimdomain.StatusValidated},
	}}
	syncs := &fakeSyncs{}

	s := &Server{
		engine:    NewEngine(observability.Config{}, nil),
		log:       zap.NewNop(),
		apiKeySvc: apiKeys,
		authzSvc:  authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		auditSvc:  audits,
		claimSvc:  claims,
		cards:     fakeCards{},
		syncs:     syncs,
		jobs:      fakeJobs{"01DONE": {ID: "01DONE", Status: jobqueue.StatusFinished}},
	}
	s.registerAPIRoutes()

	return &testServer{engine: s.engine, keys: keys, claims: claims, syncs: syncs}
}

func (ts *testServer) do(t *testing.T, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+ts.keys[key])
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthzIsPublic(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingOrUnknownKeyIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/jobs/01DONE", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ts.keys["bogus"] = "hms_live_key_not_a_real_key"
	rec = ts.do(t, http.MethodGet, "/v1/jobs/01DONE", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorType(t, rec).Type)
}

func TestProviderSyncRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/providers/NHIF/companies/Aga%20Khan%20Hospital/sync", "clerk", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, ts.syncs.args)

	rec = ts.do(t, http.MethodPost, "/v1/providers/nhif/companies/Aga%20Khan%20Hospital/sync", "admin", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, ts.syncs.args, 1)
	assert.Equal(t, syncjob.Args{Provider: "NHIF", Company: company}, ts.syncs.args[0])

	rec = ts.do(t, http.MethodPost, "/v1/providers/Acme/companies/Aga%20Khan%20Hospital/sync", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScopedKeyCannotReachOtherCompany(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/providers/Jubilee/companies/Mwananyamala/cards/123", "clerk", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/claims/42", "clerk", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/claims/42", "other_clerk", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCardLookupUnsupportedForNHIF(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/providers/NHIF/companies/Aga%20Khan%20Hospital/cards/123", "clerk", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "card_lookup_not_supported", errorType(t, rec).Type)
}

func TestReconcileRequiresConfirmation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/claims/42/reconcile", "clerk", map[string]any{"confirm": true})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/claims/42/reconcile", "officer", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := errorType(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "confirmation_required", payload.Errors[0].Code)
	assert.Equal(t, 0, ts.claims.reconciled)

	rec = ts.do(t, http.MethodPost, "/v1/claims/42/reconcile", "officer", map[string]any{"confirm": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.claims.reconciled)

	var resp struct {
		Data claimdomain.ReconcileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Data.Removed)
}

func TestSubmitRecordsCallingKey(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/claims/42/submit", "officer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "claims", ts.claims.submitter)
}

func TestAuditLogsRecordActionsForAdmins(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/v1/claims/42/submit", "officer", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/audit-logs", "officer", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/audit-logs?target_type=claim&target_id=42", "admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []auditdomain.AuditLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	entry := resp.Data[0]
	assert.Equal(t, auditdomain.ActionClaimSubmitted, entry.Action)
	assert.Equal(t, apikeydomain.RoleClaimsOfficer, entry.ActorRole)
	require.NotNil(t, entry.Company)
	assert.Equal(t, company, *entry.Company)
	assert.Equal(t, "claims", entry.Metadata["submitted_by"])

	rec = ts.do(t, http.MethodGet, "/v1/audit-logs?start_at=yesterday", "admin", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/v1/jobs/01DONE", "admin", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/jobs/01MISSING", "admin", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/jobs/01DONE", "officer", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"guard", fmt.Errorf("submit: %w", &claimdomain.GuardError{Guard: claimdomain.GuardName("folio"), Message: "no items"}), http.StatusUnprocessableEntity},
		{"provider status", &providerdomain.StatusError{Provider: providerdomain.NHIF, StatusCode: 500}, http.StatusBadGateway},
		{"provider network", &providerdomain.NetworkError{Provider: providerdomain.Jubilee, Attempts: 3, Err: errors.New("dial")}, http.StatusBadGateway},
		{"submitted", claimdomain.ErrClaimSubmitted, http.StatusConflict},
		{"transition", claimdomain.ErrInvalidTransition, http.StatusConflict},
		{"approval", deliverynotedomain.ErrApprovalRequired, http.StatusUnprocessableEntity},
		{"note missing", deliverynotedomain.ErrNoteNotFound, http.StatusNotFound},
		{"invalid claim", fmt.Errorf("%w: card_no", claimdomain.ErrInvalidRequest), http.StatusBadRequest},
		{"not configured", providerdomain.ErrProviderNotSet, http.StatusNotFound},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, _ := mapError(tc.err)
			assert.Equal(t, tc.status, status)
		})
	}
}
