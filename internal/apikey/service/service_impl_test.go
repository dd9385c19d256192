package service

import (
	"context"
	"strings"
	"testing"
	"time"

	apikeydomain "github.com/smallbiznis/hmsinsure/internal/apikey/domain"
	"github.com/smallbiznis/hmsinsure/internal/apikey/repository"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	fake := clock.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:    dbtest.Open(t, &apikeydomain.APIKey{}),
		Log:   zap.NewNop(),
		GenID: dbtest.Node(t),
		Repo:  repository.Provide(),
		Clock: fake,
	}).(*Service)
	return svc, fake
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	secret, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: "front desk", Role: apikeydomain.RoleClerk, Company: "Aga Khan Hospital"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(secret.APIKey, apikeydomain.KeyPrefix))

	key, err := svc.Authenticate(ctx, secret.APIKey)
	require.NoError(t, err)
	assert.Equal(t, apikeydomain.RoleClerk, key.Role)
	assert.Equal(t, "Aga Khan Hospital", key.Company)

	_, err = svc.Authenticate(ctx, secret.APIKey+"x")
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)

	keys, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), apikeydomain.CreateRequest{Name: "x", Role: "superuser"})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidRole)

	_, err = svc.Create(context.Background(), apikeydomain.CreateRequest{Name: " ", Role: apikeydomain.RoleAdmin})
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidName)
}

func TestRotateKeepsOldKeyForGracePeriod(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	old, err := svc.Create(ctx, apikeydomain.CreateRequest{Name: "claims", Role: apikeydomain.RoleClaimsOfficer})
	require.NoError(t, err)
	next, err := svc.Rotate(ctx, old.KeyID)
	require.NoError(t, err)
	assert.NotEqual(t, old.KeyID, next.KeyID)

	_, err = svc.Authenticate(ctx, old.APIKey)
	assert.NoError(t, err)

	fake.Advance(apiKeyRotationGracePeriod + time.Minute)
	_, err = svc.Authenticate(ctx, old.APIKey)
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)

	key, err := svc.Authenticate(ctx, next.APIKey)
	require.NoError(t, err)
	assert.Equal(t, apikeydomain.RoleClaimsOfficer, key.Role)
	require.NotNil(t, key.RotatedFromKeyID)
	assert.Equal(t, old.KeyID, *key.RotatedFromKeyID)
}

func TestRevokeAndBootstrap(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Bootstrap(ctx, "bootstrap", "hms-dev-admin"))
	require.NoError(t, svc.Bootstrap(ctx, "bootstrap", "hms-dev-admin"))

	keys, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, apikeydomain.RoleAdmin, keys[0].Role)

	require.NoError(t, svc.Revoke(ctx, keys[0].KeyID))
	_, err = svc.Authenticate(ctx, "hms-dev-admin")
	assert.ErrorIs(t, err, apikeydomain.ErrUnauthorized)

	assert.ErrorIs(t, svc.Revoke(ctx, "key_MISSING"), apikeydomain.ErrNotFound)
}
