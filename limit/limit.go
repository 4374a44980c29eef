// Package limit provides per-endpoint throttling for outbound deliveries:
// a token-bucket rate limit and a concurrency cap keyed by the webhook's
// host. Hosts without a configuration have no limits.
package limit

import (
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines delivery throttling for a single endpoint host.
type Config struct {
	// Host is the webhook URL host this config applies to
	// (e.g. "hooks.example.com").
	Host string

	// MaxInFlight limits simultaneous in-flight deliveries to this host.
	// Zero means no concurrency limit.
	MaxInFlight int

	// RateLimit is the maximum sustained deliveries per second to this
	// host. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// hostState tracks runtime state for a single host.
type hostState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-host rate limiting and concurrency for outbound
// deliveries. It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	hosts map[string]*hostState
}

// NewManager creates a Manager with the given host configurations.
// Hosts not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{hosts: make(map[string]*hostState, len(configs))}
	for _, cfg := range configs {
		m.hosts[cfg.Host] = newHostState(cfg)
	}
	return m
}

func newHostState(cfg Config) *hostState {
	hs := &hostState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		hs.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return hs
}

// Acquire checks rate and concurrency limits for the endpoint URL. If the
// delivery may proceed it increments the active counter and returns true.
// The caller MUST call Release with the same URL when the call completes.
// A false return means the delivery should be retried later; the retry
// scheduler's backoff naturally provides the delay.
func (m *Manager) Acquire(rawURL string) bool {
	host := hostOf(rawURL)

	m.mu.Lock()
	defer m.mu.Unlock()

	hs := m.hosts[host]
	if hs == nil {
		return true
	}
	// Concurrency first: a delivery rejected on MaxInFlight must not
	// consume a rate token.
	if hs.config.MaxInFlight > 0 && hs.active >= hs.config.MaxInFlight {
		return false
	}
	if hs.limiter != nil && !hs.limiter.Allow() {
		return false
	}
	hs.active++
	return true
}

// Release decrements the active delivery count for the endpoint URL.
func (m *Manager) Release(rawURL string) {
	host := hostOf(rawURL)

	m.mu.Lock()
	defer m.mu.Unlock()

	if hs := m.hosts[host]; hs != nil && hs.active > 0 {
		hs.active--
	}
}

// SetConfig dynamically updates (or creates) a host configuration,
// preserving the current active count.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.hosts[cfg.Host]
	hs := newHostState(cfg)
	if existing != nil {
		hs.active = existing.active
	}
	m.hosts[cfg.Host] = hs
}

// ActiveCount returns the current number of in-flight deliveries to a host.
func (m *Manager) ActiveCount(host string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hs := m.hosts[host]; hs != nil {
		return hs.active
	}
	return 0
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
