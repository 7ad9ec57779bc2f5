package controllers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/middleware"
)

func middlewareContext(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = middleware.WithUserID(ctx, userID.String())
	return middleware.WithRole(ctx, role)
}

func decimalFromString(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", raw, err)
	}
	return d
}
