package controlapi

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	dateLayout      = "2006-01-02"
)

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// decodeJSON decodes the body into dst, writing the error response itself
// when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := render.DecodeJSON(r.Body, dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, r, http.StatusRequestEntityTooLarge, codeInvalidInput,
			fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		return false
	}

	logger.FromContext(r.Context()).Warn("invalid json payload", slog.String("error", err.Error()))
	writeError(w, r, http.StatusBadRequest, codeInvalidJSON, "Invalid JSON payload: "+err.Error())
	return false
}

// writeStoreError maps persistence errors to HTTP responses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, resource, action string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, resource+" not found")
	case errors.Is(err, store.ErrUnavailable):
		logger.FromContext(r.Context()).Error("storage unavailable",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "Storage is temporarily unavailable")
	default:
		logger.FromContext(r.Context()).Error("request failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		writeError(w, r, http.StatusInternalServerError, codeInternal, "Failed to "+action)
	}
}

// parseOptionalInt extracts an integer from the query string.
// If the parameter is missing, it returns the defaultValue.
// It only returns an error if the parameter is present but malformed.
func parseOptionalInt(r *http.Request, key string, defaultValue int) (int, error) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	return val, nil
}

// parsePage reads page and sizeKey, clamping out-of-range values.
func parsePage(r *http.Request, sizeKey string) (page, size int, err error) {
	page, err = parseOptionalInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	size, err = parseOptionalInt(r, sizeKey, defaultPageSize)
	if err != nil {
		return 0, 0, err
	}

	// We silently correct out-of-bounds values to ensure system stability and UX.
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size, nil
}

func newPagination(total int64, page, size int) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(size)))
	}
	return Pagination{
		TotalItems:  total,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    size,
	}
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates. A plain date
// used as an upper bound covers the whole day.
func parseTimeParam(r *http.Request, key string, upper bool) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}

	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("parameter '%s' must be a date (YYYY-MM-DD) or RFC 3339 timestamp", key)
	}
	if upper {
		d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &d, nil
}

// parseTimeRange parses an inclusive [startKey, endKey] pair.
func parseTimeRange(r *http.Request, startKey, endKey string) (start, end *time.Time, err error) {
	if start, err = parseTimeParam(r, startKey, false); err != nil {
		return nil, nil, err
	}
	if end, err = parseTimeParam(r, endKey, true); err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, fmt.Errorf("parameter '%s' must not be before '%s'", endKey, startKey)
	}
	return start, end, nil
}

func fieldIndex(collection string, i int, field string) string {
	return fmt.Sprintf("%s[%d].%s", collection, i, field)
}
