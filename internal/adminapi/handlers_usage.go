package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"storefront/pkg/problems"
)

func (a *App) usageReady(w http.ResponseWriter) bool {
	if a.db == nil {
		problems.Write(w, http.StatusServiceUnavailable, "no-usage", "Usage analytics unavailable", "No database configured")
		return false
	}
	return true
}

func (a *App) getUsageSummary(w http.ResponseWriter, r *http.Request) {
	if !a.usageReady(w) {
		return
	}
	sid := principalFrom(r.Context()).Store.ID
	rows, err := a.db.Query(r.Context(), `
		SELECT date_trunc('day', started_at) AS day,
			   COALESCE(NULLIF(operation,''), method || ' ' || path) AS operation,
			   COUNT(*) AS count,
			   COALESCE(AVG(duration_ms)::int,0) AS avg_ms,
			   SUM(CASE WHEN status_code BETWEEN 200 AND 299 THEN 1 ELSE 0 END) AS ok
		FROM usage_events
		WHERE store_id = $1
		GROUP BY 1,2
		ORDER BY 1 DESC, 2
	`, sid)
	if err != nil {
		a.log.Errorw("usage summary", "store", sid, "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Database error", "")
		return
	}
	defer rows.Close()
	type Row struct {
		Day       time.Time `json:"day"`
		Operation string    `json:"operation"`
		Count     int       `json:"count"`
		AvgMs     int       `json:"avg_ms"`
		Ok        int       `json:"ok"`
	}
	out := []Row{}
	for rows.Next() {
		var x Row
		if err := rows.Scan(&x.Day, &x.Operation, &x.Count, &x.AvgMs, &x.Ok); err != nil {
			problems.Write(w, http.StatusInternalServerError, "internal", "Database error", "")
			return
		}
		out = append(out, x)
	}
	var total, okcnt, avgms int
	_ = a.db.QueryRow(r.Context(), `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status_code BETWEEN 200 AND 299 THEN 1 ELSE 0 END),0), COALESCE(AVG(duration_ms)::int,0)
		FROM usage_events WHERE store_id=$1
	`, sid).Scan(&total, &okcnt, &avgms)
	writeJSON(w, map[string]any{"totals": map[string]any{"count": total, "ok": okcnt, "avg_ms": avgms}, "daily": out}, http.StatusOK)
}

// getUsageRecent returns the latest upstream calls, newest first.
func (a *App) getUsageRecent(w http.ResponseWriter, r *http.Request) {
	if !a.usageReady(w) {
		return
	}
	sid := principalFrom(r.Context()).Store.ID
	limit := parseLimit(r.URL.Query().Get("limit"), 50, 500)
	rows, err := a.db.Query(r.Context(), `
		SELECT COALESCE(operation,''), COALESCE(method,''), COALESCE(path,''), COALESCE(request_id,''),
			   COALESCE(status_code,0), COALESCE(duration_ms,0), started_at
		FROM usage_events WHERE store_id=$1
		ORDER BY started_at DESC, id DESC LIMIT $2
	`, sid, limit)
	if err != nil {
		a.log.Errorw("usage recent", "store", sid, "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Database error", "")
		return
	}
	defer rows.Close()
	type Row struct {
		Operation  string    `json:"operation"`
		Method     string    `json:"method"`
		Path       string    `json:"path"`
		RequestID  string    `json:"request_id"`
		StatusCode int       `json:"status_code"`
		DurationMs int       `json:"duration_ms"`
		StartedAt  time.Time `json:"started_at"`
	}
	out := []Row{}
	for rows.Next() {
		var x Row
		if err := rows.Scan(&x.Operation, &x.Method, &x.Path, &x.RequestID, &x.StatusCode, &x.DurationMs, &x.StartedAt); err != nil {
			problems.Write(w, http.StatusInternalServerError, "internal", "Database error", "")
			return
		}
		out = append(out, x)
	}
	writeJSON(w, map[string]any{"items": out}, http.StatusOK)
}

func parseLimit(v string, def, max int) int {
	if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= max {
		return n
	}
	return def
}
