package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/hmsinsure/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer(dbtest.Open(t))
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestRolesInheritPermissions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		role    string
		object  string
		action  string
		allowed bool
	}{
		{"clerk", ObjectClaim, ActionCreate, true},
		{"clerk", ObjectClaim, ActionClaimSubmit, false},
		{"clerk", ObjectProviderSync, ActionProviderSyncRun, false},
		{"claims_officer", ObjectClaim, ActionCreate, true},
		{"claims_officer", ObjectClaim, ActionClaimSubmit, true},
		{"claims_officer", ObjectAPIKey, ActionCreate, false},
		{"admin", ObjectClaim, ActionClaimReconcile, true},
		{"Admin", ObjectProviderSync, ActionProviderSyncRun, true},
		{RoleSystem, ObjectJob, ActionView, true},
		{"pharmacist", ObjectClaim, ActionView, false},
		{"claims_officer", ObjectAuditLog, ActionView, false},
		{"admin", ObjectAuditLog, ActionView, true},
	}

	for _, tc := range cases {
		err := svc.Authorize(ctx, tc.role, tc.object, tc.action)
		if tc.allowed {
			assert.NoError(t, err, "%s %s %s", tc.role, tc.object, tc.action)
		} else {
			assert.ErrorIs(t, err, ErrForbidden, "%s %s %s", tc.role, tc.object, tc.action)
		}
	}
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, " ", ObjectClaim, ActionView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "clerk", "", ActionView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "clerk", ObjectClaim, ""), ErrInvalidAction)
}

func TestSeedingTwiceKeepsPolicies(t *testing.T) {
	db := dbtest.Open(t)
	_, err := NewEnforcer(db)
	require.NoError(t, err)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	policies, err := enforcer.GetPolicy()
	require.NoError(t, err)
	assert.NotEmpty(t, policies)
}
