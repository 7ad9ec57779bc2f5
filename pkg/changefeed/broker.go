package changefeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/metrics"
)

// RefetchFunc reloads the data behind a registration. It runs at most once
// per debounce window regardless of how many events arrived.
type RefetchFunc func(ctx context.Context) error

// Broker sits between subscriptions and the read path: every change event
// marks the registration stale and arms the debounce timer, and when the
// window elapses exactly one refetch runs. A refetch interval acts as a
// backstop for events the push path missed.
type Broker struct {
	debounce time.Duration
	interval time.Duration

	mtx    sync.Mutex
	regs   map[string]*Registration
	closed bool

	logg    *logger.Logger
	metrics *metrics.ChangefeedMetrics
}

// Registration is one managed (subscription, refetch) pairing.
type Registration struct {
	key     string
	broker  *Broker
	sub     *Subscription
	refetch RefetchFunc

	mtx       sync.Mutex
	timer     *time.Timer
	fetching  bool
	pending   bool
	lastErr   error
	lastFetch time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBroker builds a broker with the given debounce window and backstop
// refetch interval. An interval of zero disables the backstop.
func NewBroker(debounce, interval time.Duration, logg *logger.Logger, m *metrics.ChangefeedMetrics) *Broker {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Broker{
		debounce: debounce,
		interval: interval,
		regs:     make(map[string]*Registration),
		logg:     logg,
		metrics:  m,
	}
}

// Register pairs the subscription with a refetch function under the key.
// The initial refetch runs immediately so the consumer starts warm.
func (b *Broker) Register(ctx context.Context, key string, sub *Subscription, refetch RefetchFunc) (*Registration, error) {
	if key == "" {
		return nil, errors.New("registration key is required")
	}
	if sub == nil {
		return nil, errors.New("subscription is required")
	}
	if refetch == nil {
		return nil, errors.New("refetch func is required")
	}

	b.mtx.Lock()
	if b.closed {
		b.mtx.Unlock()
		return nil, errors.New("broker is closed")
	}
	if _, exists := b.regs[key]; exists {
		b.mtx.Unlock()
		return nil, errors.New("registration key already in use")
	}

	runCtx, cancel := context.WithCancel(ctx)
	reg := &Registration{
		key:     key,
		broker:  b,
		sub:     sub,
		refetch: refetch,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	b.regs[key] = reg
	b.mtx.Unlock()

	reg.runRefetch(runCtx)
	go reg.loop(runCtx)
	return reg, nil
}

// Close cancels every registration and rejects new ones.
func (b *Broker) Close() {
	b.mtx.Lock()
	if b.closed {
		b.mtx.Unlock()
		return
	}
	b.closed = true
	regs := make([]*Registration, 0, len(b.regs))
	for _, reg := range b.regs {
		regs = append(regs, reg)
	}
	b.regs = make(map[string]*Registration)
	b.mtx.Unlock()

	for _, reg := range regs {
		reg.stop()
	}
}

func (b *Broker) unregister(key string) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	delete(b.regs, key)
}

// IsFetching reports whether a refetch is currently in flight. Consumers use
// it to surface an updating indicator without blocking reads.
func (r *Registration) IsFetching() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.fetching
}

// LastError returns the error from the most recent refetch, or nil.
func (r *Registration) LastError() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.lastErr
}

// LastFetch returns when the most recent refetch finished.
func (r *Registration) LastFetch() time.Time {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.lastFetch
}

// Close detaches the registration: the debounce timer is cancelled, an
// in-flight refetch's context is cancelled, and the subscription is closed.
func (r *Registration) Close() {
	r.broker.unregister(r.key)
	r.stop()
}

func (r *Registration) stop() {
	r.cancel()
	r.sub.Close()
	r.mtx.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mtx.Unlock()
	<-r.done
}

func (r *Registration) loop(ctx context.Context) {
	defer close(r.done)

	var backstop *time.Ticker
	var backstopCh <-chan time.Time
	if r.broker.interval > 0 {
		backstop = time.NewTicker(r.broker.interval)
		backstopCh = backstop.C
		defer backstop.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-r.sub.Events():
			if !ok {
				return
			}
			r.armTimer(ctx)
		case <-backstopCh:
			r.runRefetch(ctx)
		}
	}
}

// armTimer starts or restarts the debounce countdown. A burst of events keeps
// pushing the deadline out, so one refetch runs after the burst settles.
func (r *Registration) armTimer(ctx context.Context) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.timer != nil {
		r.timer.Reset(r.broker.debounce)
		r.broker.metrics.IncCoalesced(r.key)
		return
	}
	r.timer = time.AfterFunc(r.broker.debounce, func() {
		r.mtx.Lock()
		r.timer = nil
		r.mtx.Unlock()
		if ctx.Err() != nil {
			return
		}
		r.runRefetch(ctx)
	})
}

// runRefetch runs at most one refetch at a time. An invalidation that fires
// while a refetch is in flight marks the registration pending, and the
// in-flight fetch runs one more round after it finishes so no window's events
// produce zero refetches.
func (r *Registration) runRefetch(ctx context.Context) {
	r.mtx.Lock()
	if r.fetching {
		r.pending = true
		r.mtx.Unlock()
		return
	}
	r.fetching = true
	r.mtx.Unlock()

	for {
		err := r.refetch(ctx)

		r.mtx.Lock()
		r.lastErr = err
		r.lastFetch = time.Now()
		again := r.pending && ctx.Err() == nil
		r.pending = false
		if !again {
			r.fetching = false
		}
		r.mtx.Unlock()

		r.broker.metrics.IncRefetch(r.key)
		if err != nil && r.broker.logg != nil && ctx.Err() == nil {
			logCtx := r.broker.logg.WithField(ctx, "registration", r.key)
			r.broker.logg.Error(logCtx, "changefeed refetch failed", err)
		}
		if !again {
			return
		}
	}
}
