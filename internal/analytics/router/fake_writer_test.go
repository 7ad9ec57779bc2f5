package router

import (
	"context"

	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/types"
)

type fakeWriter struct {
	facts  []types.SettlementFactRow
	events []types.DomainEventRow
}

func (f *fakeWriter) InsertFact(_ context.Context, row types.SettlementFactRow) error {
	f.facts = append(f.facts, row)
	return nil
}

func (f *fakeWriter) InsertDomainEvent(_ context.Context, row types.DomainEventRow) error {
	f.events = append(f.events, row)
	return nil
}
