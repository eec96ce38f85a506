package perm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohaus/cohaus/internal/perm"
	_ "github.com/cohaus/cohaus/testing"
)

type stubStore struct {
	data  map[string]perm.RoleData
	err   error
	calls int
}

func (s *stubStore) RoleData(ctx context.Context, userID string) (perm.RoleData, error) {
	s.calls++
	if s.err != nil {
		return perm.RoleData{}, s.err
	}
	if data, ok := s.data[userID]; ok {
		return data, nil
	}
	return perm.DefaultRoleData(), nil
}

func newCachedStore(t *testing.T, inner perm.Store) (*perm.CachedStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return perm.NewCachedStore(inner, client, time.Minute, nil), mr
}

func TestCachedStoreReadThrough(t *testing.T) {
	inner := &stubStore{data: map[string]perm.RoleData{
		"u1": {SystemRole: perm.SystemRoleRegularUser, HouseRoles: map[string]perm.HouseRole{"h1": perm.HouseRoleOwner}},
	}}
	store, _ := newCachedStore(t, inner)

	first, err := store.RoleData(context.Background(), "u1")
	require.NoError(t, err)
	second, err := store.RoleData(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second read should be served from cache")
}

func TestCachedStoreInvalidate(t *testing.T) {
	inner := &stubStore{data: map[string]perm.RoleData{
		"u1": {SystemRole: perm.SystemRoleRegularUser, HouseRoles: map[string]perm.HouseRole{"h1": perm.HouseRoleMember}},
	}}
	store, _ := newCachedStore(t, inner)

	_, err := store.RoleData(context.Background(), "u1")
	require.NoError(t, err)

	// Simulate a grant mutation followed by invalidation.
	inner.data["u1"] = perm.RoleData{SystemRole: perm.SystemRoleRegularUser, HouseRoles: map[string]perm.HouseRole{"h1": perm.HouseRoleAdmin}}
	require.NoError(t, store.Invalidate(context.Background(), "u1"))

	data, err := store.RoleData(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, perm.HouseRoleAdmin, data.HouseRoles["h1"])
	assert.Equal(t, 2, inner.calls)
}

func TestCachedStorePropagatesFetchFailure(t *testing.T) {
	inner := &stubStore{err: perm.ErrRoleFetchFailed}
	store, _ := newCachedStore(t, inner)

	_, err := store.RoleData(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, perm.ErrRoleFetchFailed))
}

func TestCachedStoreSkipsCorruptEntries(t *testing.T) {
	inner := &stubStore{data: map[string]perm.RoleData{
		"u1": {SystemRole: perm.SystemRoleRegularUser, HouseRoles: map[string]perm.HouseRole{"h1": perm.HouseRoleViewer}},
	}}
	store, mr := newCachedStore(t, inner)

	require.NoError(t, mr.Set("perm:roles:u1", `{"system_role":"root","house_roles":{}}`))

	data, err := store.RoleData(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, perm.HouseRoleViewer, data.HouseRoles["h1"])
	assert.Equal(t, 1, inner.calls, "corrupt cache entry must fall through to the inner store")
}
