// Package proxy manages a bounded pool of outbound proxy addresses.
//
// The pool mixes static records (added by the caller, optionally
// never-expiring) and dynamic records (fetched from a supply endpoint with
// a TTL). Expired records are swept lazily on access. Selection uses a
// uniform random choice or a rotating round-robin cursor.
//
//	pool := proxy.New(proxy.Config{
//		PoolSize:   10,
//		DynamicTTL: 5 * time.Minute,
//		Strategy:   proxy.StrategyRoundRobin,
//		Supply:     proxy.NewHTTPSupply("http://vendor.example/get"),
//	}, log)
//	pool.AddProxy("http://1.2.3.4:8080", 0) // never expires
//
//	addr, err := pool.Acquire()
//	if errors.Is(err, proxy.ErrNoProxyAvailable) {
//		// degraded mode: proceed without a proxy
//	}
package proxy
