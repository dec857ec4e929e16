package tenant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockPool returns a sqlmock-backed pool that tolerates Close.
func mockPool(t *testing.T) *sqlx.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()
	return sqlx.NewDb(db, "sqlmock")
}

type countingOpener struct {
	t     *testing.T
	calls atomic.Int64
	delay time.Duration
	fail  atomic.Bool
}

func (o *countingOpener) open(ctx context.Context, tn *Tenant) (*sqlx.DB, error) {
	o.calls.Add(1)
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.fail.Load() {
		return nil, errors.New("access denied for user")
	}
	return mockPool(o.t), nil
}

func newTestManager(o *countingOpener) *Manager {
	return NewManager(o.open, ManagerOptions{Logger: zap.NewNop()})
}

func TestSessionFactory_ReusesPool(t *testing.T) {
	o := &countingOpener{t: t}
	m := newTestManager(o)
	defer m.CloseAll()

	tn := FromRecord(greenfield())
	f1, err := m.SessionFactory(context.Background(), tn)
	require.NoError(t, err)
	f2, err := m.SessionFactory(context.Background(), tn)
	require.NoError(t, err)

	assert.Same(t, f1, f2)
	assert.Equal(t, int64(1), o.calls.Load())
	assert.Equal(t, tn.Tags(), f1.Tags())
}

func TestSessionFactory_ConcurrentFirstRequestsOpenOnce(t *testing.T) {
	o := &countingOpener{t: t, delay: 50 * time.Millisecond}
	m := newTestManager(o)
	defer m.CloseAll()

	tn := FromRecord(greenfield())
	const n = 32
	var wg sync.WaitGroup
	factories := make(chan any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := m.SessionFactory(context.Background(), tn)
			assert.NoError(t, err)
			factories <- f
		}()
	}
	wg.Wait()
	close(factories)

	var first any
	for f := range factories {
		if first == nil {
			first = f
		}
		assert.Same(t, first, f)
	}
	assert.Equal(t, int64(1), o.calls.Load())
	assert.Equal(t, 1, m.Len())
}

func TestSessionFactory_DifferentTenantsInParallel(t *testing.T) {
	o := &countingOpener{t: t, delay: 100 * time.Millisecond}
	m := newTestManager(o)
	defer m.CloseAll()

	start := time.Now()
	var wg sync.WaitGroup
	for id := int64(1); id <= 8; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := m.SessionFactory(context.Background(), &Tenant{ID: id})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int64(8), o.calls.Load())
	assert.Equal(t, 8, m.Len())
	assert.Less(t, time.Since(start), 700*time.Millisecond, "opens for different ids must not serialise")
}

func TestSessionFactory_FailureNotCached(t *testing.T) {
	o := &countingOpener{t: t}
	o.fail.Store(true)
	m := newTestManager(o)
	defer m.CloseAll()

	tn := FromRecord(greenfield())
	_, err := m.SessionFactory(context.Background(), tn)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPoolCreation)
	var pce *PoolCreationError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, int64(7), pce.TenantID)
	assert.Equal(t, 0, m.Len())

	o.fail.Store(false)
	_, err = m.SessionFactory(context.Background(), tn)
	require.NoError(t, err)
	assert.Equal(t, int64(2), o.calls.Load())
	assert.Equal(t, 1, m.Len())
}

func TestSessionFactory_CallerCancellationDoesNotAbortOpen(t *testing.T) {
	o := &countingOpener{t: t}
	m := newTestManager(o)
	defer m.CloseAll()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.SessionFactory(ctx, FromRecord(greenfield()))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestClose_RemovesOnePool(t *testing.T) {
	o := &countingOpener{t: t}
	m := newTestManager(o)
	defer m.CloseAll()

	_, err := m.SessionFactory(context.Background(), &Tenant{ID: 1})
	require.NoError(t, err)
	_, err = m.SessionFactory(context.Background(), &Tenant{ID: 2})
	require.NoError(t, err)

	require.NoError(t, m.Close(1))
	assert.Equal(t, 1, m.Len())
	require.NoError(t, m.Close(1), "closing an absent pool is a no-op")
	require.NoError(t, m.Close(42))

	_, err = m.SessionFactory(context.Background(), &Tenant{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), o.calls.Load())
}

func TestCloseAll_IdempotentAndReusable(t *testing.T) {
	o := &countingOpener{t: t}
	m := newTestManager(o)

	require.NoError(t, m.CloseAll(), "no pools yet")

	for id := int64(1); id <= 3; id++ {
		_, err := m.SessionFactory(context.Background(), &Tenant{ID: id})
		require.NoError(t, err)
	}
	require.NoError(t, m.CloseAll())
	assert.Equal(t, 0, m.Len())
	require.NoError(t, m.CloseAll())

	_, err := m.SessionFactory(context.Background(), &Tenant{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
	require.NoError(t, m.CloseAll())
}

func TestEvictOnce_IdleAndLRU(t *testing.T) {
	o := &countingOpener{t: t}
	m := newTestManager(o)
	defer m.CloseAll()
	m.idleTTL = time.Minute
	m.maxPools = 1

	for id := int64(1); id <= 3; id++ {
		_, err := m.SessionFactory(context.Background(), &Tenant{ID: id})
		require.NoError(t, err)
	}
	now := time.Now()
	stamp := func(id int64, at time.Time) {
		v, ok := m.m.Load(id)
		require.True(t, ok)
		atomic.StoreInt64(&v.(*entry).lastSeen, at.UnixNano())
	}
	stamp(1, now.Add(-2*time.Minute)) // idle
	stamp(2, now.Add(-30*time.Second))
	stamp(3, now.Add(-10*time.Second))

	m.evictOnce(now.UnixNano())

	assert.Equal(t, 1, m.Len())
	_, ok := m.m.Load(int64(3))
	assert.True(t, ok, "most recently used pool survives")
}

func TestEvict_KeepsPoolTouchedAfterDecision(t *testing.T) {
	o := &countingOpener{t: t}
	m := newTestManager(o)
	defer m.CloseAll()

	tn := &Tenant{ID: 4}
	f, err := m.SessionFactory(context.Background(), tn)
	require.NoError(t, err)

	v, ok := m.m.Load(tn.ID)
	require.True(t, ok)
	ent := v.(*entry)
	stale := time.Now().Add(-time.Hour).UnixNano()
	atomic.StoreInt64(&ent.lastSeen, stale)

	// A request arrives after the evictor read the stale stamp.
	again, err := m.SessionFactory(context.Background(), tn)
	require.NoError(t, err)
	assert.Same(t, f, again)

	assert.False(t, m.evict(tn.ID, ent, stale))
	assert.Equal(t, 1, m.Len(), "touched pool stays mapped")

	assert.True(t, m.evict(tn.ID, ent, atomic.LoadInt64(&ent.lastSeen)))
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.evict(tn.ID, ent, atomic.LoadInt64(&ent.lastSeen)), "already gone")
}
