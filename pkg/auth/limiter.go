package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterPool keeps one token bucket per identifier: the API key when one
// is presented, else the client IP. Entries unseen for ttl are evicted.
type limiterPool struct {
	mu            sync.Mutex
	m             map[string]*limiterEntry
	rps           float64
	burst         int
	ttl           time.Duration
	cleanupPeriod time.Duration

	startCleanup sync.Once
	stopOnce     sync.Once
	stop         chan struct{}
}

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if rps <= 0 {
		rps = 1000
	}
	if burst <= 0 {
		burst = 1000
	}
	return &limiterPool{
		m:             make(map[string]*limiterEntry),
		rps:           rps,
		burst:         burst,
		ttl:           10 * time.Minute,
		cleanupPeriod: time.Minute,
		stop:          make(chan struct{}),
	}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.startCleanup.Do(func() { go p.cleanupLoop() })

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.m[key]; ok {
		e.lastSeen = time.Now()
		return e.l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = &limiterEntry{l: l, lastSeen: time.Now()}
	return l
}

// Allow never blocks; a false return means the caller gets a 429.
func (p *limiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.m)
}

func (p *limiterPool) evict(now time.Time) {
	cutoff := now.Add(-p.ttl)
	p.mu.Lock()
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
	p.mu.Unlock()
}

func (p *limiterPool) cleanupLoop() {
	ticker := time.NewTicker(p.cleanupPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case now := <-ticker.C:
			p.evict(now)
		}
	}
}

func (p *limiterPool) close() {
	p.stopOnce.Do(func() { close(p.stop) })
}
