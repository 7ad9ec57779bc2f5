package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/warrantyflow-sys/warrantyflow-sub001/api/responses"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/changefeed"
	pkgerrors "github.com/warrantyflow-sys/warrantyflow-sub001/pkg/errors"
	"github.com/warrantyflow-sys/warrantyflow-sub001/pkg/logger"
)

const changefeedHeartbeat = 25 * time.Second

type changeEventPayload struct {
	Table  string            `json:"table"`
	Op     string            `json:"op"`
	RowID  string            `json:"row_id"`
	Fields map[string]string `json:"fields,omitempty"`
}

// StreamChanges serves a Server-Sent Events stream of committed row changes
// for one table, optionally filtered by a column value. Reconnecting clients
// get no replay; they are expected to refetch and resubscribe.
func StreamChanges(hub *changefeed.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "changefeed unavailable"))
			return
		}

		table := strings.TrimSpace(r.URL.Query().Get("table"))
		if !changefeed.KnownTable(table) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown table"))
			return
		}

		var filter *changefeed.Filter
		column := strings.TrimSpace(r.URL.Query().Get("column"))
		value := strings.TrimSpace(r.URL.Query().Get("value"))
		if column != "" || value != "" {
			if column == "" || value == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "column and value must be set together"))
				return
			}
			filter = &changefeed.Filter{Column: column, Value: value}
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		sub := hub.Subscribe(table, filter)
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		heartbeat := time.NewTicker(changefeedHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				// Comment lines keep idle proxies from closing the stream.
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case evt, open := <-sub.Events():
				if !open {
					return
				}
				payload, err := json.Marshal(changeEventPayload{
					Table:  evt.Table,
					Op:     string(evt.Op),
					RowID:  evt.RowID.String(),
					Fields: evt.Fields,
				})
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
