package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/responses"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/query"
	"github.com/warrantyflow-sys/warrantyflow-sub001/internal/analytics/types"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

const settlementQueryMaxRange = 366 * 24 * time.Hour

// SettlementAnalytics serves the settlement dashboard. Optional when the
// BigQuery pipeline is not configured; the route then returns a dependency
// error.
func SettlementAnalytics(svc query.SettlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "settlement analytics not configured"))
			return
		}

		req := types.SettlementQueryRequest{}

		if raw := strings.TrimSpace(r.URL.Query().Get("labId")); raw != "" {
			if _, err := uuid.Parse(raw); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid labId"))
				return
			}
			req.LabID = raw
		}

		end := time.Now().UTC()
		start := end.AddDate(0, 0, -30)
		if raw := strings.TrimSpace(r.URL.Query().Get("start")); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "start must be RFC 3339"))
				return
			}
			start = parsed
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("end")); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "end must be RFC 3339"))
				return
			}
			end = parsed
		}
		if !end.After(start) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "end must be after start"))
			return
		}
		if end.Sub(start) > settlementQueryMaxRange {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date range exceeds one year"))
			return
		}
		req.Start = start
		req.End = end

		result, err := svc.Query(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
