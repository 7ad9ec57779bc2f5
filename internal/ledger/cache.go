package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/changefeed"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

// BalanceCache decorates a ledger Service with a changefeed-driven snapshot
// of every lab balance. Repair and payment changes debounce into a single
// recompute, and reads keep serving the previous snapshot while a refresh is
// in flight.
type BalanceCache struct {
	inner Service
	logg  *logger.Logger

	mtx      sync.RWMutex
	balances []LabBalance
	byLab    map[uuid.UUID]int
	warm     bool

	regs []*changefeed.Registration
}

// NewBalanceCache wraps the given service. Start must be called before the
// cache serves anything other than pass-through reads.
func NewBalanceCache(inner Service, logg *logger.Logger) (*BalanceCache, error) {
	if inner == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &BalanceCache{inner: inner, logg: logg}, nil
}

// Start subscribes to the repair and payment tables and registers the
// debounced recompute. The broker runs the first refetch synchronously, so
// the cache is warm once Start returns.
func (c *BalanceCache) Start(ctx context.Context, hub *changefeed.Hub, broker *changefeed.Broker) error {
	if hub == nil {
		return fmt.Errorf("changefeed hub required")
	}
	if broker == nil {
		return fmt.Errorf("changefeed broker required")
	}
	for _, table := range []string{"repairs", "payments"} {
		sub := hub.Subscribe(table, nil)
		reg, err := broker.Register(ctx, "lab-balances:"+table, sub, c.refresh)
		if err != nil {
			sub.Close()
			c.Close()
			return fmt.Errorf("register balance cache on %s: %w", table, err)
		}
		c.regs = append(c.regs, reg)
	}
	return nil
}

// Close tears down the registrations and their subscriptions.
func (c *BalanceCache) Close() {
	for _, reg := range c.regs {
		reg.Close()
	}
	c.regs = nil
}

func (c *BalanceCache) refresh(ctx context.Context) error {
	balances, err := c.inner.GetAllLabBalances(ctx)
	if err != nil {
		return err
	}
	byLab := make(map[uuid.UUID]int, len(balances))
	for i := range balances {
		byLab[balances[i].LabID] = i
	}
	c.mtx.Lock()
	c.balances = balances
	c.byLab = byLab
	c.warm = true
	c.mtx.Unlock()
	return nil
}

// GetAllLabBalances serves the cached snapshot once warm, falling back to a
// direct recompute before the first refresh lands.
func (c *BalanceCache) GetAllLabBalances(ctx context.Context) ([]LabBalance, error) {
	c.mtx.RLock()
	if c.warm {
		out := make([]LabBalance, len(c.balances))
		copy(out, c.balances)
		c.mtx.RUnlock()
		return out, nil
	}
	c.mtx.RUnlock()
	return c.inner.GetAllLabBalances(ctx)
}

// GetLabBalance prefers the snapshot. Labs created after the last refresh
// miss the index and fall through to the live query.
func (c *BalanceCache) GetLabBalance(ctx context.Context, labID uuid.UUID) (*LabBalance, error) {
	c.mtx.RLock()
	if c.warm {
		if idx, ok := c.byLab[labID]; ok {
			balance := c.balances[idx]
			c.mtx.RUnlock()
			return &balance, nil
		}
	}
	c.mtx.RUnlock()
	return c.inner.GetLabBalance(ctx, labID)
}
