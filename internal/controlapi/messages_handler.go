package controlapi

import (
	"net/http"
	"strings"

	"github.com/rafaeljc/herald/internal/store"
)

// maxStatsWindowDays bounds ?days on the hourly histogram.
const maxStatsWindowDays = 90

// handleListSentMessages processes
// GET /api/v1/email/sent-messages?page&limit&status&start_date&end_date.
// Dates bound created_at and are inclusive.
func (a *API) handleListSentMessages(w http.ResponseWriter, r *http.Request) {
	page, size, err := parsePage(r, "limit")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}

	status := store.MessageStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !status.IsValid() {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery,
			"parameter 'status' must be one of PENDING, SENT, DELIVERED, FAILED")
		return
	}

	from, to, err := parseTimeRange(r, "start_date", "end_date")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}

	logs, total, err := a.logs.ListLogs(r.Context(), store.LogFilter{
		Status:      status,
		CreatedFrom: from,
		CreatedTo:   to,
		Limit:       size,
		Offset:      (page - 1) * size,
	})
	if err != nil {
		writeStoreError(w, r, err, "Message", "list sent messages")
		return
	}

	writeJSON(w, r, http.StatusOK, SentMessagesResponse{
		Messages:   logs,
		Pagination: newPagination(total, page, size),
	})
}

// handleEmailStats processes GET /api/v1/email/sent-messages/stats?startDate&endDate.
func (a *API) handleEmailStats(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseTimeRange(r, "startDate", "endDate")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}

	s, err := a.stats.Summary(r.Context(), from, to)
	if err != nil {
		writeStoreError(w, r, err, "Statistics", "compute statistics")
		return
	}
	writeJSON(w, r, http.StatusOK, s)
}

// handleHourlyStats processes GET /api/v1/email/sent-messages/stats/hourly?days.
func (a *API) handleHourlyStats(w http.ResponseWriter, r *http.Request) {
	days, err := parseOptionalInt(r, "days", a.statsWindow)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	if days < 1 || days > maxStatsWindowDays {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, "parameter 'days' must be between 1 and 90")
		return
	}

	snap, err := a.stats.Aggregate(r.Context(), days)
	if err != nil {
		writeStoreError(w, r, err, "Statistics", "aggregate statistics")
		return
	}
	writeJSON(w, r, http.StatusOK, snap)
}
