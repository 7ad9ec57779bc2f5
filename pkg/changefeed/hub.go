// Package changefeed is the in-process change bus: services publish row-level
// change events after commit, and subscribers (SSE streams, cache brokers)
// receive them filtered by table and optionally by column value.
package changefeed

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/metrics"
)

// Op is the kind of row change carried by an event.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event describes one committed row change.
type Event struct {
	Table  string
	Op     Op
	RowID  uuid.UUID
	Fields map[string]string
}

// Filter restricts a subscription to rows whose column matches the value.
// A nil filter matches every row of the table.
type Filter struct {
	Column string
	Value  string
}

// Matches reports whether the event passes the filter.
func (f *Filter) Matches(evt Event) bool {
	if f == nil {
		return true
	}
	if evt.Fields == nil {
		return false
	}
	return evt.Fields[f.Column] == f.Value
}

// Subscription is one registered listener. Events are delivered on a buffered
// channel; when the buffer is full the oldest pending event is dropped, so
// consumers that fall behind lose intermediate states but always see a fresh
// event afterward.
type Subscription struct {
	hub    *Hub
	table  string
	filter *Filter
	ch     chan Event

	closeOnce sync.Once
}

// Events returns the delivery channel. It is closed when the subscription or
// the hub shuts down.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscription from the hub and closes the event channel.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
}

// Hub fans committed change events out to subscriptions. Delivery is
// at-least-once for live subscribers; there is no replay, reconnecting
// consumers are expected to refetch.
type Hub struct {
	mtx     sync.RWMutex
	subs    map[string][]*Subscription
	bufSize int
	closed  bool

	logg    *logger.Logger
	metrics *metrics.ChangefeedMetrics
}

// NewHub builds a hub whose subscriptions buffer up to bufSize events.
func NewHub(bufSize int, logg *logger.Logger, metrics *metrics.ChangefeedMetrics) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		subs:    make(map[string][]*Subscription),
		bufSize: bufSize,
		logg:    logg,
		metrics: metrics,
	}
}

// Subscribe registers a listener for the table. The filter is optional.
func (h *Hub) Subscribe(table string, filter *Filter) *Subscription {
	sub := &Subscription{
		hub:    h,
		table:  table,
		filter: filter,
		ch:     make(chan Event, h.bufSize),
	}

	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[table] = append(h.subs[table], sub)
	return sub
}

// Publish delivers the event to every matching subscription. It never blocks
// the caller: a full subscriber buffer drops the oldest pending event first.
func (h *Hub) Publish(ctx context.Context, evt Event) {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	if h.closed {
		return
	}

	h.metrics.IncPublished(evt.Table)

	for _, sub := range h.subs[evt.Table] {
		if !sub.filter.Matches(evt) {
			continue
		}
		h.deliver(ctx, sub, evt)
	}
}

func (h *Hub) deliver(ctx context.Context, sub *Subscription, evt Event) {
	for {
		select {
		case sub.ch <- evt:
			return
		default:
		}
		// Buffer full: evict the oldest event and retry.
		select {
		case <-sub.ch:
			h.metrics.IncDropped(evt.Table)
			if h.logg != nil {
				logCtx := h.logg.WithFields(ctx, map[string]any{
					"table": evt.Table,
					"op":    string(evt.Op),
				})
				h.logg.Warn(logCtx, "changefeed subscriber behind, dropping oldest event")
			}
		default:
		}
	}
}

// Close shuts the hub down and closes every subscription channel.
func (h *Hub) Close() {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, subs := range h.subs {
		for _, sub := range subs {
			sub.closeOnce.Do(func() {
				close(sub.ch)
			})
		}
	}
	h.subs = make(map[string][]*Subscription)
}

func (h *Hub) remove(sub *Subscription) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.closed {
		return
	}
	list := h.subs[sub.table]
	for i, candidate := range list {
		if candidate == sub {
			h.subs[sub.table] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.subs[sub.table]) == 0 {
		delete(h.subs, sub.table)
	}
}
