package proxy

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"weibocrawl/pkg/logger"
)

// ErrNoProxyAvailable signals an empty pool. Callers must treat it as
// "proceed without proxy", never as a fatal error.
var ErrNoProxyAvailable = errors.New("proxy: no proxy available")

// Strategy selects how Acquire picks among live records.
type Strategy string

const (
	StrategyRandom     Strategy = "random"
	StrategyRoundRobin Strategy = "round_robin"
)

// Origin tags where a record came from. It informs eviction order, not
// correctness.
type Origin string

const (
	OriginStatic  Origin = "static"
	OriginDynamic Origin = "dynamic"
)

// Supply provides raw proxy descriptors for dynamic replenishment.
type Supply interface {
	Fetch() (string, error)
}

// ParseFunc turns a raw supply descriptor into a proxy address.
type ParseFunc func(raw string) (string, error)

// Config holds proxy pool configuration.
type Config struct {
	// PoolSize bounds the number of live records. Values <= 0 fall back
	// to DefaultPoolSize.
	PoolSize int
	// DynamicTTL is the expiry applied to supply-fetched records.
	// Values <= 0 fall back to DefaultDynamicTTL.
	DynamicTTL time.Duration
	// Strategy defaults to StrategyRandom.
	Strategy Strategy
	// Supply optionally replenishes the pool when under capacity.
	Supply Supply
	// Parser converts supply descriptors to addresses. Defaults to
	// DefaultParser.
	Parser ParseFunc
}

const (
	// DefaultPoolSize is the default pool capacity.
	DefaultPoolSize = 10
	// DefaultDynamicTTL is the default expiry for dynamic records.
	DefaultDynamicTTL = 300 * time.Second
)

// record is one pool entry. A zero expiresAt never expires.
type record struct {
	address   string
	expiresAt time.Time
	origin    Origin
	addedAt   time.Time
	seq       uint64
}

// Pool maintains a bounded collection of outbound proxy addresses with
// per-record expiry and hands one out per request. Expiry is checked
// lazily on access; with pools this small a background sweeper would add
// lifecycle complexity without benefit.
type Pool struct {
	mu      sync.Mutex
	records []record
	cursor  int
	seq     uint64

	cfg    Config
	logger logger.Logger

	// now and rng are injection points for tests.
	now func() time.Time
	rng *rand.Rand
}

// New creates a proxy pool. A nil logger falls back to the default.
func New(cfg Config, log logger.Logger) *Pool {
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.DynamicTTL <= 0 {
		cfg.DynamicTTL = DefaultDynamicTTL
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyRandom
	}
	if cfg.Parser == nil {
		cfg.Parser = DefaultParser
	}

	return &Pool{
		cfg:    cfg,
		logger: log,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AddProxy inserts a static record. TTL 0 means the record never expires.
func (p *Pool) AddProxy(address string, ttl time.Duration) error {
	if address == "" {
		return errors.New("proxy: address must be non-empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = p.now().Add(ttl)
	}
	p.insertLocked(record{
		address:   address,
		expiresAt: expiresAt,
		origin:    OriginStatic,
	})

	p.logger.DebugWithFields("proxy added to pool", map[string]interface{}{
		"address": address,
		"ttl":     ttl.String(),
		"size":    len(p.records),
	})
	return nil
}

// insertLocked appends a record, enforcing the capacity bound: expired
// entries are reclaimed first, then the oldest-inserted static entry is
// evicted, then the oldest-inserted entry overall.
func (p *Pool) insertLocked(r record) {
	p.sweepLocked()

	if len(p.records) >= p.cfg.PoolSize {
		evict := -1
		for i, rec := range p.records {
			if rec.origin != OriginStatic {
				continue
			}
			if evict == -1 || rec.seq < p.records[evict].seq {
				evict = i
			}
		}
		if evict == -1 {
			for i, rec := range p.records {
				if evict == -1 || rec.seq < p.records[evict].seq {
					evict = i
				}
			}
		}
		if evict >= 0 {
			p.logger.DebugWithFields("evicting proxy to respect capacity", map[string]interface{}{
				"address": p.records[evict].address,
				"origin":  string(p.records[evict].origin),
			})
			p.records = append(p.records[:evict], p.records[evict+1:]...)
		}
	}

	p.seq++
	r.seq = p.seq
	r.addedAt = p.now()
	p.records = append(p.records, r)
}

// sweepLocked removes expired records. Callers hold p.mu.
func (p *Pool) sweepLocked() {
	now := p.now()
	live := p.records[:0]
	for _, rec := range p.records {
		if rec.expiresAt.IsZero() || rec.expiresAt.After(now) {
			live = append(live, rec)
		}
	}
	p.records = live
}

// Acquire hands out one proxy address. It sweeps expired records, tops the
// pool up from the dynamic supply when under capacity, then selects by the
// configured strategy. An empty pool yields ErrNoProxyAvailable.
func (p *Pool) Acquire() (string, error) {
	p.mu.Lock()
	p.sweepLocked()
	underCapacity := len(p.records) < p.cfg.PoolSize
	p.mu.Unlock()

	// The supply fetch is network-bound; holding the lock across it
	// would serialize every in-flight request behind it.
	if underCapacity && p.cfg.Supply != nil {
		p.replenish()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.sweepLocked()
	if len(p.records) == 0 {
		return "", ErrNoProxyAvailable
	}

	var idx int
	switch p.cfg.Strategy {
	case StrategyRoundRobin:
		idx = p.cursor % len(p.records)
		p.cursor++
	default:
		idx = p.rng.Intn(len(p.records))
	}

	return p.records[idx].address, nil
}

// replenish fetches one address from the supply and inserts it with the
// dynamic TTL. Fetch and parse failures are logged and swallowed; Acquire
// falls through to whatever records remain.
func (p *Pool) replenish() {
	raw, err := p.cfg.Supply.Fetch()
	if err != nil {
		p.logger.WarnWithFields("dynamic proxy fetch failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	address, err := p.cfg.Parser(raw)
	if err != nil {
		p.logger.WarnWithFields("dynamic proxy descriptor unparseable", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	p.mu.Lock()
	p.insertLocked(record{
		address:   address,
		expiresAt: p.now().Add(p.cfg.DynamicTTL),
		origin:    OriginDynamic,
	})
	p.mu.Unlock()

	p.logger.DebugWithFields("dynamic proxy added to pool", map[string]interface{}{
		"address": address,
		"ttl":     p.cfg.DynamicTTL.String(),
	})
}

// Size returns the count of live (non-expired) records.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweepLocked()
	return len(p.records)
}

// Capacity returns the configured pool bound.
func (p *Pool) Capacity() int {
	return p.cfg.PoolSize
}

// Clear removes all records unconditionally.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = nil
	p.cursor = 0
}

// Enabled reports whether a dynamic supply is configured or at least one
// live record exists.
func (p *Pool) Enabled() bool {
	if p.cfg.Supply != nil {
		return true
	}
	return p.Size() > 0
}
