package changefeed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func waitForFetchCount(t *testing.T, count *atomic.Int64, want int64, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if count.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected at least %d refetches, got %d", want, count.Load())
}

func TestBrokerCoalescesBurstIntoSingleRefetch(t *testing.T) {
	hub := NewHub(16, nil, nil)
	defer hub.Close()
	broker := NewBroker(50*time.Millisecond, 0, nil, nil)
	defer broker.Close()

	var fetches atomic.Int64
	sub := hub.Subscribe("repairs", nil)
	reg, err := broker.Register(context.Background(), "repairs-list", sub, func(ctx context.Context) error {
		fetches.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer reg.Close()

	// Registration refetches once immediately.
	waitForFetchCount(t, &fetches, 1, time.Second)

	for i := 0; i < 5; i++ {
		hub.Publish(context.Background(), Event{Table: "repairs", Op: OpUpdate, RowID: uuid.New()})
	}

	waitForFetchCount(t, &fetches, 2, time.Second)

	// Let another full window pass: the burst must not produce extra fetches.
	time.Sleep(120 * time.Millisecond)
	if got := fetches.Load(); got != 2 {
		t.Fatalf("expected burst to coalesce into one refetch, got %d total", got)
	}
}

func TestBrokerRefetchesAgainForLaterEvents(t *testing.T) {
	hub := NewHub(16, nil, nil)
	defer hub.Close()
	broker := NewBroker(30*time.Millisecond, 0, nil, nil)
	defer broker.Close()

	var fetches atomic.Int64
	sub := hub.Subscribe("payments", nil)
	reg, err := broker.Register(context.Background(), "payments-list", sub, func(ctx context.Context) error {
		fetches.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer reg.Close()

	waitForFetchCount(t, &fetches, 1, time.Second)

	hub.Publish(context.Background(), Event{Table: "payments", Op: OpInsert, RowID: uuid.New()})
	waitForFetchCount(t, &fetches, 2, time.Second)

	hub.Publish(context.Background(), Event{Table: "payments", Op: OpInsert, RowID: uuid.New()})
	waitForFetchCount(t, &fetches, 3, time.Second)
}

func TestBrokerSurfacesRefetchError(t *testing.T) {
	hub := NewHub(16, nil, nil)
	defer hub.Close()
	broker := NewBroker(20*time.Millisecond, 0, nil, nil)
	defer broker.Close()

	boom := errors.New("downstream unavailable")
	var fetches atomic.Int64
	sub := hub.Subscribe("repairs", nil)
	reg, err := broker.Register(context.Background(), "repairs-err", sub, func(ctx context.Context) error {
		fetches.Add(1)
		return boom
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer reg.Close()

	waitForFetchCount(t, &fetches, 1, time.Second)
	if got := reg.LastError(); !errors.Is(got, boom) {
		t.Fatalf("expected refetch error surfaced, got %v", got)
	}
	if reg.IsFetching() {
		t.Fatal("expected no in-flight fetch after completion")
	}
}

func TestBrokerBackstopRefetchesWithoutEvents(t *testing.T) {
	hub := NewHub(16, nil, nil)
	defer hub.Close()
	broker := NewBroker(10*time.Millisecond, 40*time.Millisecond, nil, nil)
	defer broker.Close()

	var fetches atomic.Int64
	sub := hub.Subscribe("devices", nil)
	reg, err := broker.Register(context.Background(), "devices-list", sub, func(ctx context.Context) error {
		fetches.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer reg.Close()

	// No events published: the interval backstop alone must drive refetches.
	waitForFetchCount(t, &fetches, 3, 2*time.Second)
}

func TestBrokerRejectsDuplicateKeys(t *testing.T) {
	hub := NewHub(16, nil, nil)
	defer hub.Close()
	broker := NewBroker(20*time.Millisecond, 0, nil, nil)
	defer broker.Close()

	noop := func(ctx context.Context) error { return nil }

	reg, err := broker.Register(context.Background(), "dup", hub.Subscribe("repairs", nil), noop)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer reg.Close()

	if _, err := broker.Register(context.Background(), "dup", hub.Subscribe("repairs", nil), noop); err == nil {
		t.Fatal("expected duplicate key rejection")
	}
}

func TestRegistrationCloseStopsTimerAndSubscription(t *testing.T) {
	hub := NewHub(16, nil, nil)
	defer hub.Close()
	broker := NewBroker(30*time.Millisecond, 0, nil, nil)
	defer broker.Close()

	var fetches atomic.Int64
	sub := hub.Subscribe("repairs", nil)
	reg, err := broker.Register(context.Background(), "repairs-closing", sub, func(ctx context.Context) error {
		fetches.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	waitForFetchCount(t, &fetches, 1, time.Second)
	hub.Publish(context.Background(), Event{Table: "repairs", Op: OpUpdate, RowID: uuid.New()})
	reg.Close()

	baseline := fetches.Load()
	time.Sleep(100 * time.Millisecond)
	if got := fetches.Load(); got != baseline {
		t.Fatalf("refetch ran after Close: %d -> %d", baseline, got)
	}

	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected subscription closed with registration")
	}
}

func TestBrokerRunsRefetchQueuedDuringInFlightOne(t *testing.T) {
	hub := NewHub(16, nil, nil)
	defer hub.Close()
	broker := NewBroker(20*time.Millisecond, 0, nil, nil)
	defer broker.Close()

	release := make(chan struct{})
	var fetches atomic.Int64
	sub := hub.Subscribe("repairs", nil)
	reg, err := broker.Register(context.Background(), "repairs-slow", sub, func(ctx context.Context) error {
		if fetches.Add(1) == 2 {
			<-release
		}
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer reg.Close()

	waitForFetchCount(t, &fetches, 1, time.Second)

	// This event's refetch blocks on the release channel.
	hub.Publish(context.Background(), Event{Table: "repairs", Op: OpUpdate, RowID: uuid.New()})
	waitForFetchCount(t, &fetches, 2, time.Second)

	// A second event whose debounce window elapses while the refetch is still
	// in flight must not be lost.
	hub.Publish(context.Background(), Event{Table: "repairs", Op: OpUpdate, RowID: uuid.New()})
	time.Sleep(80 * time.Millisecond)
	close(release)

	waitForFetchCount(t, &fetches, 3, time.Second)
}
