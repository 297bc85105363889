package transport

import (
	"context"
	"sync"
	"time"
)

// ShutdownConfig configures graceful shutdown of a network transport.
type ShutdownConfig struct {
	// Timeout bounds the wait for in-flight payloads.
	// Default: 30 seconds
	Timeout time.Duration

	// DrainDelay is waited before new payloads are refused, giving load
	// balancers time to take the instance out of rotation.
	DrainDelay time.Duration

	// OnShutdownStart is called when shutdown begins.
	OnShutdownStart func()

	// OnDrainStart is called once new payloads are refused.
	OnDrainStart func()

	// OnShutdownComplete is called with the shutdown result.
	OnShutdownComplete func(err error)
}

// DefaultShutdownConfig returns the default shutdown configuration.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{Timeout: 30 * time.Second}
}

// ShutdownManager tracks in-flight payloads and drains them on shutdown.
type ShutdownManager struct {
	config ShutdownConfig

	mu       sync.Mutex
	draining bool
	inFlight int64
	idle     chan struct{} // closed once draining with nothing in flight
	doneCh   chan struct{}
	doneOnce sync.Once
}

// NewShutdownManager creates a new shutdown manager.
func NewShutdownManager(config ShutdownConfig) *ShutdownManager {
	if config.Timeout == 0 {
		config.Timeout = DefaultShutdownConfig().Timeout
	}
	return &ShutdownManager{
		config: config,
		idle:   make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// IsDraining reports whether new payloads are being refused.
func (sm *ShutdownManager) IsDraining() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.draining
}

// InFlightRequests returns the number of payloads being handled.
func (sm *ShutdownManager) InFlightRequests() int64 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.inFlight
}

// TrackRequest registers a payload. It returns false while draining, in
// which case the payload must be refused.
func (sm *ShutdownManager) TrackRequest() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.draining {
		return false
	}
	sm.inFlight++
	return true
}

// CompleteRequest marks a tracked payload as finished.
func (sm *ShutdownManager) CompleteRequest() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.inFlight--
	sm.signalIdle()
}

// signalIdle closes idle when draining has nothing left. Callers hold mu.
func (sm *ShutdownManager) signalIdle() {
	if !sm.draining || sm.inFlight > 0 {
		return
	}
	select {
	case <-sm.idle:
	default:
		close(sm.idle)
	}
}

// Shutdown refuses new payloads and waits for in-flight ones. It returns
// context.DeadlineExceeded if payloads are still running after Timeout.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	if sm.config.OnShutdownStart != nil {
		sm.config.OnShutdownStart()
	}

	if sm.config.DrainDelay > 0 {
		timer := time.NewTimer(sm.config.DrainDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	sm.mu.Lock()
	sm.draining = true
	sm.signalIdle()
	sm.mu.Unlock()
	if sm.config.OnDrainStart != nil {
		sm.config.OnDrainStart()
	}

	waitCtx, cancel := context.WithTimeout(ctx, sm.config.Timeout)
	defer cancel()

	var err error
	select {
	case <-sm.idle:
	case <-waitCtx.Done():
		err = waitCtx.Err()
	}
	sm.doneOnce.Do(func() { close(sm.doneCh) })

	if sm.config.OnShutdownComplete != nil {
		sm.config.OnShutdownComplete(err)
	}
	return err
}

// Done is closed when shutdown completes.
func (sm *ShutdownManager) Done() <-chan struct{} {
	return sm.doneCh
}

// WithShutdownTimeout bounds how long the HTTP transport waits for
// in-flight payloads on shutdown.
func WithShutdownTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.shutdownTimeout = d
	}
}

// WithShutdownDrainDelay sets the delay before the HTTP transport starts
// refusing payloads on shutdown.
func WithShutdownDrainDelay(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.drainDelay = d
	}
}
