package tenant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yanizio/campus/internal/cache"
	"github.com/yanizio/campus/internal/tenant/meta"
)

// fakeRegistry counts lookups and serves records from maps.
type fakeRegistry struct {
	mu     sync.Mutex
	bySub  map[string]*meta.Record
	byID   map[int64]*meta.Record
	err    error
	subHit int
	idHit  int
}

func newFakeRegistry(recs ...*meta.Record) *fakeRegistry {
	f := &fakeRegistry{bySub: map[string]*meta.Record{}, byID: map[int64]*meta.Record{}}
	for _, r := range recs {
		f.bySub[r.Subdomain] = r
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeRegistry) BySubdomain(_ context.Context, s string) (*meta.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subHit++
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.bySub[s]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, meta.ErrNotFound
}

func (f *fakeRegistry) ByID(_ context.Context, id int64) (*meta.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idHit++
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.byID[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, meta.ErrNotFound
}

// downStore fails every call.
type downStore struct{}

func (downStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("redis down")
}
func (downStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("redis down")
}
func (downStore) Delete(context.Context, ...string) error { return errors.New("redis down") }
func (downStore) Ping(context.Context) error              { return errors.New("redis down") }
func (downStore) Close() error                            { return nil }

func greenfield() *meta.Record {
	return &meta.Record{
		ID: 7, Subdomain: "greenfield", Name: "Greenfield High", Code: "GFH",
		DBHost: "db.internal", DBPort: 3306, DBName: "greenfield_db", DBUser: "greenfield",
		DBPasswordEncrypted: "ct", IsActive: true,
	}
}

func newResolver(reg Lookup, store cache.Store) (*Resolver, *cache.TenantCache) {
	tc := cache.NewTenantCache(store, cache.WithLogger(zap.NewNop()))
	return NewResolver(tc, reg, zap.NewNop()), tc
}

func TestResolve_SubdomainMissPopulatesBothKeys(t *testing.T) {
	reg := newFakeRegistry(greenfield())
	res, tc := newResolver(reg, cache.NewMemoryStore(16))
	ctx := context.Background()

	got, err := res.Resolve(ctx, Identity{Host: "greenfield.campus.example"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, 1, reg.subHit)

	_, ok := tc.GetBySubdomain(ctx, "greenfield")
	assert.True(t, ok)
	_, ok = tc.GetByID(ctx, 7)
	assert.True(t, ok)
}

func TestResolve_CacheHitSkipsRegistry(t *testing.T) {
	reg := newFakeRegistry(greenfield())
	res, tc := newResolver(reg, cache.NewMemoryStore(16))
	ctx := context.Background()
	tc.SetBySubdomain(ctx, "greenfield", cache.SnapshotFromRecord(greenfield()))

	for i := 0; i < 3; i++ {
		got, err := res.Resolve(ctx, Identity{Host: "greenfield.campus.example:443"})
		require.NoError(t, err)
		assert.Equal(t, "Greenfield High", got.Name)
	}
	assert.Equal(t, 0, reg.subHit)
	assert.Equal(t, 0, reg.idHit)
}

func TestResolve_IDHeaderFallback(t *testing.T) {
	reg := newFakeRegistry(greenfield())
	res, _ := newResolver(reg, cache.NewMemoryStore(16))

	// Unknown subdomain, valid id header.
	got, err := res.Resolve(context.Background(), Identity{Host: "unknown.campus.example", TenantID: "7"})
	require.NoError(t, err)
	assert.Equal(t, "greenfield", got.Subdomain)
	assert.Equal(t, 1, reg.subHit)
	assert.Equal(t, 1, reg.idHit)

	// Single-label host, id header only.
	got, err = res.Resolve(context.Background(), Identity{Host: "campus", TenantID: "7"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
}

func TestResolve_LoopbackUsesOverrideHeader(t *testing.T) {
	reg := newFakeRegistry(greenfield())
	res, _ := newResolver(reg, cache.NewMemoryStore(16))

	got, err := res.Resolve(context.Background(), Identity{Host: "localhost", Subdomain: "greenfield"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)

	// Loopback without the header is not a subdomain named "localhost".
	_, err = res.Resolve(context.Background(), Identity{Host: "127.0.0.1"})
	assert.ErrorIs(t, err, ErrTenantNotIdentified)
}

func TestResolve_NotIdentified(t *testing.T) {
	reg := newFakeRegistry(greenfield())
	res, _ := newResolver(reg, cache.NewMemoryStore(16))

	for _, in := range []Identity{
		{Host: "campus"},
		{Host: "nobody.campus.example"},
		{Host: "campus", TenantID: "not-a-number"},
		{Host: "campus", TenantID: "999"},
	} {
		_, err := res.Resolve(context.Background(), in)
		assert.ErrorIs(t, err, ErrTenantNotIdentified, "%+v", in)
	}
}

func TestResolve_Inactive(t *testing.T) {
	rec := greenfield()
	rec.IsActive = false
	reg := newFakeRegistry(rec)
	res, tc := newResolver(reg, cache.NewMemoryStore(16))

	_, err := res.Resolve(context.Background(), Identity{Host: "greenfield.campus.example"})
	assert.ErrorIs(t, err, ErrTenantInactive)

	// Inactive tenants are still cached; the flag travels with the snapshot.
	s, ok := tc.GetBySubdomain(context.Background(), "greenfield")
	require.True(t, ok)
	assert.False(t, s.IsActive)
}

func TestResolve_CacheDownFallsBackToRegistry(t *testing.T) {
	reg := newFakeRegistry(greenfield())
	res, _ := newResolver(reg, downStore{})

	got, err := res.Resolve(context.Background(), Identity{Host: "greenfield.campus.example"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
}

func TestResolve_RegistryFailurePropagates(t *testing.T) {
	reg := newFakeRegistry()
	reg.err = errors.New("control plane unreachable")
	res, _ := newResolver(reg, cache.NewMemoryStore(16))

	_, err := res.Resolve(context.Background(), Identity{Host: "greenfield.campus.example"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTenantNotIdentified)
	assert.ErrorIs(t, err, reg.err)
}
