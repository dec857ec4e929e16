package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/tenant/meta"
)

// brokenStore fails every call, standing in for an unreachable Redis.
type brokenStore struct{ calls int }

var errDown = errors.New("connection refused")

func (b *brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	b.calls++
	return nil, false, errDown
}
func (b *brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	b.calls++
	return errDown
}
func (b *brokenStore) Delete(context.Context, ...string) error { b.calls++; return errDown }
func (b *brokenStore) Ping(context.Context) error              { return errDown }
func (b *brokenStore) Close() error                            { return nil }

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		ID: 7, Subdomain: "greenfield", Name: "Greenfield High", Code: "GFH",
		DBHost: "db.internal", DBPort: 3306, DBName: "greenfield_db",
		DBUser: "greenfield", DBPasswordEncrypted: "ciphertext", IsActive: true,
	}
}

func TestTenantCache_SetGetBothKeys(t *testing.T) {
	store := NewMemoryStore(16)
	c := NewTenantCache(store, WithLogger(zap.NewNop()))
	ctx := context.Background()
	s := sampleSnapshot()

	c.SetBySubdomain(ctx, s.Subdomain, s)
	c.SetByID(ctx, s.ID, s)

	got, ok := c.GetBySubdomain(ctx, "greenfield")
	require.True(t, ok)
	assert.Equal(t, s, got)

	got, ok = c.GetByID(ctx, 7)
	require.True(t, ok)
	assert.Equal(t, s, got)

	raw, ok, err := store.Get(ctx, "tenant:subdomain:greenfield")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":7,"subdomain":"greenfield","name":"Greenfield High","code":"GFH",
		"db_host":"db.internal","db_port":3306,"db_name":"greenfield_db","db_user":"greenfield",
		"db_password_encrypted":"ciphertext","is_active":true}`, string(raw))
}

func TestTenantCache_Invalidate(t *testing.T) {
	store := NewMemoryStore(16)
	c := NewTenantCache(store, WithLogger(zap.NewNop()))
	ctx := context.Background()
	s := sampleSnapshot()
	c.SetBySubdomain(ctx, s.Subdomain, s)
	c.SetByID(ctx, s.ID, s)

	c.Invalidate(ctx, s.Subdomain, s.ID)

	_, ok := c.GetBySubdomain(ctx, s.Subdomain)
	assert.False(t, ok)
	_, ok = c.GetByID(ctx, s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestTenantCache_FailsOpen(t *testing.T) {
	store := &brokenStore{}
	c := NewTenantCache(store, WithLogger(zap.NewNop()))
	ctx := context.Background()

	_, ok := c.GetBySubdomain(ctx, "greenfield")
	assert.False(t, ok)
	_, ok = c.GetByID(ctx, 7)
	assert.False(t, ok)

	assert.NotPanics(t, func() {
		c.SetBySubdomain(ctx, "greenfield", sampleSnapshot())
		c.SetByID(ctx, 7, sampleSnapshot())
		c.Invalidate(ctx, "greenfield", 7)
	})
	assert.Equal(t, 5, store.calls)
}

func TestTenantCache_RejectsMalformedSnapshot(t *testing.T) {
	store := NewMemoryStore(16)
	c := NewTenantCache(store, WithLogger(zap.NewNop()))
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, SubdomainKey("broken"), []byte(`{"id":`), 0))
	require.NoError(t, store.Set(ctx, SubdomainKey("partial"), []byte(`{"id":3,"subdomain":"partial"}`), 0))

	_, ok := c.GetBySubdomain(ctx, "broken")
	assert.False(t, ok)
	_, ok = c.GetBySubdomain(ctx, "partial")
	assert.False(t, ok)

	// Rejected entries are dropped so the next resolve repopulates them.
	assert.Equal(t, 0, store.Len())
}

func TestSnapshotFromRecord(t *testing.T) {
	rec := &meta.Record{
		ID: 9, Subdomain: "oak-ridge", Name: "Oak Ridge", Code: "OR",
		DBHost: "h", DBPort: 3306, DBName: "oak_ridge_db", DBUser: "oak_ridge",
		DBPasswordEncrypted: "ct", IsActive: false, MaxStudents: 100,
	}
	s := SnapshotFromRecord(rec)
	require.NoError(t, s.Validate())
	assert.Equal(t, int64(9), s.ID)
	assert.False(t, s.IsActive)
	assert.Equal(t, "oak_ridge_db", s.DBName)
}

func TestMemoryStore_ExpiryAndLRU(t *testing.T) {
	store := NewMemoryStore(2)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))

	now = now.Add(2 * time.Minute)
	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok, "expired entry must miss")

	require.NoError(t, store.Set(ctx, "c", []byte("3"), 0))
	require.NoError(t, store.Set(ctx, "d", []byte("4"), 0))
	_, ok, _ = store.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry must be evicted")

	v, ok, _ := store.Get(ctx, "d")
	assert.True(t, ok)
	assert.Equal(t, []byte("4"), v)
}
