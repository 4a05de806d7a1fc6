package reconcile

import (
	"context"
	"log"
	"sync"
	"time"
)

// Monitor tracks reachability of the remote store. It probes on an
// interval and flips a process-wide online/offline flag; subscribers are
// notified once per offline-to-online transition, which is where the
// engine's drain gets triggered.
type Monitor struct {
	probe    func(ctx context.Context) error
	interval time.Duration

	mu       sync.RWMutex
	online   bool
	onOnline []func(ctx context.Context)
	stopOnce sync.Once
	stop     chan struct{}
}

// NewMonitor builds a monitor around a probe, typically the remote
// client's Ping. The monitor starts offline until the first successful
// probe or an explicit SetOnline.
func NewMonitor(probe func(ctx context.Context) error, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// OnOnline registers a callback fired on each offline-to-online
// transition. Register before Start.
func (m *Monitor) OnOnline(fn func(ctx context.Context)) {
	m.mu.Lock()
	m.onOnline = append(m.onOnline, fn)
	m.mu.Unlock()
}

// SetOnline flips the connectivity flag directly. Tests and manual sync
// paths use it; the probe loop goes through it too.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	callbacks := m.onOnline
	m.mu.Unlock()

	if online && !wasOnline {
		log.Printf("[connectivity] online")
		for _, fn := range callbacks {
			fn(ctx)
		}
	}
	if !online && wasOnline {
		log.Printf("[connectivity] offline")
	}
}

// Start runs the probe loop until Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		m.check(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Monitor) check(ctx context.Context) {
	if m.probe == nil {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	m.SetOnline(ctx, m.probe(probeCtx) == nil)
}
