package proxy

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weibocrawl/pkg/logger"
)

// fakeClock gives tests control over record expiry.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeSupply returns queued descriptors, then an error.
type fakeSupply struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (s *fakeSupply) Fetch() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.responses) > 0 {
		raw := s.responses[0]
		s.responses = s.responses[1:]
		return raw, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", fmt.Errorf("supply exhausted")
}

func newTestPool(t *testing.T, cfg Config) (*Pool, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	p := New(cfg, logger.NewTestLogger())
	p.now = clock.Now
	p.rng = rand.New(rand.NewSource(1))
	return p, clock
}

func TestAddProxyAndSize(t *testing.T) {
	p, _ := newTestPool(t, Config{PoolSize: 5})

	require.NoError(t, p.AddProxy("http://127.0.0.1:8001", 0))
	require.NoError(t, p.AddProxy("http://127.0.0.1:8002", time.Minute))
	assert.Equal(t, 2, p.Size())
}

func TestAddProxyRejectsEmptyAddress(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	assert.Error(t, p.AddProxy("", 0))
	assert.Equal(t, 0, p.Size())
}

func TestZeroTTLNeverExpires(t *testing.T) {
	p, clock := newTestPool(t, Config{PoolSize: 5})

	require.NoError(t, p.AddProxy("http://127.0.0.1:8001", 0))
	clock.Advance(1000 * time.Hour)

	assert.Equal(t, 1, p.Size())
	address, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8001", address)
}

func TestExpiredRecordExcludedFromSelection(t *testing.T) {
	p, clock := newTestPool(t, Config{PoolSize: 5, Strategy: StrategyRoundRobin})

	require.NoError(t, p.AddProxy("http://127.0.0.1:8001", 5*time.Second))
	require.NoError(t, p.AddProxy("http://127.0.0.1:8002", 0))

	clock.Advance(6 * time.Second)

	// The expired record must never be handed out and Size must reflect
	// its removal.
	for i := 0; i < 10; i++ {
		address, err := p.Acquire()
		require.NoError(t, err)
		assert.Equal(t, "http://127.0.0.1:8002", address)
	}
	assert.Equal(t, 1, p.Size())
}

func TestSizeNeverExceedsCapacity(t *testing.T) {
	p, _ := newTestPool(t, Config{PoolSize: 3})

	for i := 0; i < 10; i++ {
		require.NoError(t, p.AddProxy(fmt.Sprintf("http://10.0.0.%d:8080", i+1), 0))
		assert.LessOrEqual(t, p.Size(), 3)
	}
	assert.Equal(t, 3, p.Size())
}

func TestInsertionEvictsExpiredFirst(t *testing.T) {
	p, clock := newTestPool(t, Config{PoolSize: 2})

	require.NoError(t, p.AddProxy("http://10.0.0.1:8080", 5*time.Second))
	require.NoError(t, p.AddProxy("http://10.0.0.2:8080", 0))
	clock.Advance(6 * time.Second)

	// The expired record frees the slot; the live one must survive.
	require.NoError(t, p.AddProxy("http://10.0.0.3:8080", 0))
	assert.Equal(t, 2, p.Size())

	addresses := make(map[string]bool)
	for i := 0; i < 20; i++ {
		address, err := p.Acquire()
		require.NoError(t, err)
		addresses[address] = true
	}
	assert.True(t, addresses["http://10.0.0.2:8080"])
	assert.True(t, addresses["http://10.0.0.3:8080"])
	assert.False(t, addresses["http://10.0.0.1:8080"])
}

func TestInsertionEvictsOldestStatic(t *testing.T) {
	p, _ := newTestPool(t, Config{PoolSize: 2, Strategy: StrategyRoundRobin})

	require.NoError(t, p.AddProxy("http://10.0.0.1:8080", 0))
	require.NoError(t, p.AddProxy("http://10.0.0.2:8080", 0))
	require.NoError(t, p.AddProxy("http://10.0.0.3:8080", 0))

	addresses := make(map[string]bool)
	for i := 0; i < 4; i++ {
		address, err := p.Acquire()
		require.NoError(t, err)
		addresses[address] = true
	}
	assert.False(t, addresses["http://10.0.0.1:8080"], "oldest static entry should have been evicted")
	assert.True(t, addresses["http://10.0.0.2:8080"])
	assert.True(t, addresses["http://10.0.0.3:8080"])
}

func TestRoundRobinVisitsAllInInsertionOrder(t *testing.T) {
	p, _ := newTestPool(t, Config{PoolSize: 5, Strategy: StrategyRoundRobin})

	expected := []string{
		"http://10.0.0.1:8080",
		"http://10.0.0.2:8080",
		"http://10.0.0.3:8080",
	}
	for _, address := range expected {
		require.NoError(t, p.AddProxy(address, 0))
	}

	// N acquisitions over a stable pool of N records visit each exactly
	// once, in insertion order, twice around.
	for round := 0; round < 2; round++ {
		for _, want := range expected {
			got, err := p.Acquire()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestRandomStrategySelectsFromAllRecords(t *testing.T) {
	p, _ := newTestPool(t, Config{PoolSize: 5, Strategy: StrategyRandom})

	for i := 1; i <= 3; i++ {
		require.NoError(t, p.AddProxy(fmt.Sprintf("http://10.0.0.%d:8080", i), 0))
	}

	seen := make(map[string]int)
	for i := 0; i < 300; i++ {
		address, err := p.Acquire()
		require.NoError(t, err)
		seen[address]++
	}

	assert.Len(t, seen, 3)
	for address, count := range seen {
		assert.Greater(t, count, 50, "address %s drawn too rarely", address)
	}
}

func TestAcquireEmptyPoolReturnsNoProxyAvailable(t *testing.T) {
	p, _ := newTestPool(t, Config{})

	_, err := p.Acquire()
	assert.ErrorIs(t, err, ErrNoProxyAvailable)
}

func TestConcurrentRoundRobinAcquire(t *testing.T) {
	p, _ := newTestPool(t, Config{PoolSize: 5, Strategy: StrategyRoundRobin})

	for i := 1; i <= 5; i++ {
		require.NoError(t, p.AddProxy(fmt.Sprintf("http://10.0.0.%d:8080", i), 0))
	}

	const goroutines = 50
	results := make(chan string, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			address, err := p.Acquire()
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- address
		}()
	}
	wg.Wait()
	close(results)

	// 50 acquisitions over 5 records land exactly 10 on each: the cursor
	// is serialized, so no draw is skipped or doubled.
	counts := make(map[string]int)
	for address := range results {
		counts[address]++
	}
	assert.Len(t, counts, 5)
	for address, count := range counts {
		assert.Equal(t, 10, count, "uneven distribution for %s", address)
	}
}

func TestDynamicReplenishment(t *testing.T) {
	supply := &fakeSupply{responses: []string{"10.1.1.1:9000"}}
	p, _ := newTestPool(t, Config{PoolSize: 5, Supply: supply})

	address, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "http://10.1.1.1:9000", address)
	assert.Equal(t, 1, supply.calls)
	assert.Equal(t, 1, p.Size())
}

func TestDynamicRecordsCarryTTL(t *testing.T) {
	supply := &fakeSupply{responses: []string{"10.1.1.1:9000"}}
	p, clock := newTestPool(t, Config{PoolSize: 5, DynamicTTL: 300 * time.Second, Supply: supply})

	_, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, p.Size())

	clock.Advance(301 * time.Second)
	assert.Equal(t, 0, p.Size())
}

func TestSupplyFailureFallsThroughToRemainingRecords(t *testing.T) {
	supply := &fakeSupply{err: fmt.Errorf("supply down")}
	p, _ := newTestPool(t, Config{PoolSize: 5, Supply: supply})
	require.NoError(t, p.AddProxy("http://10.0.0.1:8080", 0))

	address, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:8080", address)
}

func TestSupplyFailureWithEmptyPool(t *testing.T) {
	supply := &fakeSupply{err: fmt.Errorf("supply down")}
	p, _ := newTestPool(t, Config{PoolSize: 5, Supply: supply})

	_, err := p.Acquire()
	assert.ErrorIs(t, err, ErrNoProxyAvailable)
}

func TestUnparseableDescriptorIsSwallowed(t *testing.T) {
	supply := &fakeSupply{responses: []string{"not a proxy at all !!!"}}
	p, _ := newTestPool(t, Config{PoolSize: 5, Supply: supply})
	require.NoError(t, p.AddProxy("http://10.0.0.1:8080", 0))

	address, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:8080", address)
	assert.Equal(t, 1, p.Size())
}

func TestNoFetchAtCapacity(t *testing.T) {
	supply := &fakeSupply{responses: []string{"10.1.1.1:9000", "10.1.1.2:9000"}}
	p, _ := newTestPool(t, Config{PoolSize: 1, Supply: supply})
	require.NoError(t, p.AddProxy("http://10.0.0.1:8080", 0))

	_, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 0, supply.calls, "full pool must not hit the supply")
}

func TestClearResetsPoolAndCursor(t *testing.T) {
	p, _ := newTestPool(t, Config{PoolSize: 5, Strategy: StrategyRoundRobin})

	require.NoError(t, p.AddProxy("http://10.0.0.1:8080", 0))
	require.NoError(t, p.AddProxy("http://10.0.0.2:8080", 0))
	_, err := p.Acquire()
	require.NoError(t, err)

	p.Clear()
	assert.Equal(t, 0, p.Size())

	require.NoError(t, p.AddProxy("http://10.0.0.9:8080", 0))
	address, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.9:8080", address)
}

func TestEnabled(t *testing.T) {
	p, _ := newTestPool(t, Config{})
	assert.False(t, p.Enabled())

	require.NoError(t, p.AddProxy("http://10.0.0.1:8080", 0))
	assert.True(t, p.Enabled())

	p.Clear()
	assert.False(t, p.Enabled())

	withSupply, _ := newTestPool(t, Config{Supply: &fakeSupply{}})
	assert.True(t, withSupply.Enabled())
}

func TestCapacityDefaults(t *testing.T) {
	p := New(Config{}, logger.NewTestLogger())
	assert.Equal(t, DefaultPoolSize, p.Capacity())
}
