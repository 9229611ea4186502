package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts snapshot inspection and a tailsql console under
// the tsweb /debug/ index. The returned handler accepts further routes.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux, label string) (*tsweb.DebugHandler, error) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{RoutePrefix: "/debug/tailsql/"})
	if err != nil {
		return nil, fmt.Errorf("create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+label, db.DB, &tailsql.DBOptions{Label: "HuskyLens recordings"})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("snapshots", "Most recent snapshots as JSON (?limit=n)", db.snapshotsHandler())
	debug.Handle("detection-stats", "Per-id detection statistics (?kind=blocks|arrows)", db.statsHandler())
	return debug, nil
}

func (db *DB) snapshotsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		snaps, err := db.RecentSnapshots(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, snaps)
	}
}

func (db *DB) statsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := r.URL.Query().Get("kind")
		if kind == "" {
			kind = KindBlocks
		}
		stats, err := db.DetectionStats(r.Context(), kind)
		if err != nil {
			http.Error(w, err.Error(), errorStatus(err))
			return
		}
		writeJSON(w, stats)
	}
}

// errorStatus maps a query error onto an HTTP status: a bad kind is the
// caller's fault, anything else is ours.
func errorStatus(err error) int {
	if errors.Is(err, ErrUnknownKind) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
