package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lorrc/repair-desk/internal/adapters/secondary/memory"
	"github.com/lorrc/repair-desk/internal/core/domain"
	"github.com/lorrc/repair-desk/internal/core/mocks"
	"github.com/lorrc/repair-desk/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManager(t *testing.T, remote *mocks.MockRemoteStore, kv *memory.Store, clock *testClock) *services.WorkspaceManager {
	t.Helper()
	m := services.NewWorkspaceManager(services.WorkspaceDeps{
		Remote:    remote,
		KV:        kv,
		Publisher: mocks.NewRecordingPublisher(),
		Clock:     clock.Now,
		Logger:    discardLogger(),
	}, services.ManagerConfig{
		Workspace: services.WorkspaceConfig{
			CacheKey:      "repair_cache",
			FilterKey:     "status_filter",
			CacheDuration: 10 * time.Minute,
			Policies:      services.DefaultMutationPolicies(),
		},
		IdleTTL: 30 * time.Minute,
	})
	t.Cleanup(m.Shutdown)
	return m
}

func TestWorkspaceManager_AcquireMountsOnce(t *testing.T) {
	remote := mocks.NewMockRemoteStore()
	remote.On("List", mock.Anything).Return(sampleTickets(), nil).Once()
	clock := &testClock{now: fixedNow}
	m := newManager(t, remote, memory.NewStore(), clock)
	clientID := uuid.New()

	ws := m.Acquire(clientID)
	assert.Same(t, ws, m.Acquire(clientID))

	require.Eventually(t, func() bool {
		return ws.State().Connectivity == domain.Connected
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, m.Len())
	remote.AssertNumberOfCalls(t, "List", 1)
}

func TestWorkspaceManager_ClientsAreIsolated(t *testing.T) {
	ctx := context.Background()
	remote := mocks.NewMockRemoteStore()
	remote.On("List", mock.Anything).Return(sampleTickets(), nil)
	kv := memory.NewStore()
	clock := &testClock{now: fixedNow}
	m := newManager(t, remote, kv, clock)

	alice, bob := uuid.New(), uuid.New()
	wsA := m.Acquire(alice)
	wsB := m.Acquire(bob)
	require.Eventually(t, func() bool {
		return wsA.State().Connectivity == domain.Connected && wsB.State().Connectivity == domain.Connected
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, wsA.SetFilter(ctx, domain.StatusDone))

	assert.Equal(t, domain.StatusDone, wsA.State().Filter)
	assert.Equal(t, domain.StatusPending, wsB.State().Filter)

	_, err := kv.Get(ctx, "status_filter:"+alice.String())
	assert.NoError(t, err)
	_, err = kv.Get(ctx, "repair_cache:"+bob.String())
	assert.NoError(t, err)
}

func TestWorkspaceManager_EvictIdle(t *testing.T) {
	remote := mocks.NewMockRemoteStore()
	remote.On("List", mock.Anything).Return(sampleTickets(), nil)
	clock := &testClock{now: fixedNow}
	m := newManager(t, remote, memory.NewStore(), clock)

	stale := m.Acquire(uuid.New())
	clock.Advance(20 * time.Minute)
	active := m.Acquire(uuid.New())
	require.Eventually(t, func() bool {
		return stale.State().Connectivity == domain.Connected && active.State().Connectivity == domain.Connected
	}, time.Second, 5*time.Millisecond)

	clock.Advance(15 * time.Minute)

	assert.Equal(t, 1, m.EvictIdle())
	assert.Equal(t, 1, m.Len())
}

func TestWorkspaceManager_RemountAfterEviction(t *testing.T) {
	remote := mocks.NewMockRemoteStore()
	remote.On("List", mock.Anything).Return(sampleTickets(), nil).Once()
	clock := &testClock{now: fixedNow}
	m := newManager(t, remote, memory.NewStore(), clock)
	clientID := uuid.New()

	first := m.Acquire(clientID)
	require.Eventually(t, func() bool {
		return first.State().Connectivity == domain.Connected
	}, time.Second, 5*time.Millisecond)

	clock.Advance(31 * time.Minute)
	require.Equal(t, 1, m.EvictIdle())

	// The snapshot is older than the cache duration by now.
	remote.On("List", mock.Anything).Return(sampleTickets(), nil).Once()
	second := m.Acquire(clientID)
	require.Eventually(t, func() bool {
		return second.State().Connectivity == domain.Connected
	}, time.Second, 5*time.Millisecond)

	assert.NotSame(t, first, second)
	remote.AssertNumberOfCalls(t, "List", 2)
}
