package controlapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/segment"
	"github.com/rafaeljc/herald/internal/store"
)

// handleCreateSegment processes POST /api/v1/segments. The segment is
// materialized once before the response is written.
func (a *API) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req CreateSegmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Sanitize()
	if errResp := req.Validate(); errResp != nil {
		writeJSON(w, r, http.StatusBadRequest, errResp)
		return
	}

	seg, err := a.segments.Create(r.Context(), segment.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Rules:       req.Rules,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		if errors.Is(err, segment.ErrInvalidSegment) {
			writeError(w, r, http.StatusBadRequest, codeInvalidInput, err.Error())
			return
		}
		writeStoreError(w, r, err, "Segment", "create segment")
		return
	}

	log.Info("segment created",
		slog.String("segment_id", seg.ID),
		slog.Int("customer_count", seg.CustomerCount),
	)
	writeJSON(w, r, http.StatusCreated, seg)
}

// handleListSegments processes GET /api/v1/segments?page&page_size.
func (a *API) handleListSegments(w http.ResponseWriter, r *http.Request) {
	page, size, err := parsePage(r, "page_size")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}

	segments, total, err := a.segments.List(r.Context(), size, (page-1)*size)
	if err != nil {
		writeStoreError(w, r, err, "Segment", "list segments")
		return
	}

	writeJSON(w, r, http.StatusOK, PaginatedResponse{
		Data:       segments,
		Pagination: newPagination(total, page, size),
	})
}

func (a *API) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := a.segments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, err, "Segment", "get segment")
		return
	}
	writeJSON(w, r, http.StatusOK, seg)
}

func (a *API) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	r = r.WithContext(logger.With(r.Context(), slog.String("segment_id", chi.URLParam(r, "id"))))
	if err := a.segments.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, r, err, "Segment", "delete segment")
		return
	}

	logger.FromContext(r.Context()).Info("segment deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleRefreshSegment re-evaluates the rules against the current customers.
func (a *API) handleRefreshSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := a.segments.Refresh(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, err, "Segment", "refresh segment")
		return
	}
	writeJSON(w, r, http.StatusOK, seg)
}

// handlePreviewSegment evaluates rules without storing a segment.
func (a *API) handlePreviewSegment(w http.ResponseWriter, r *http.Request) {
	var req PreviewSegmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errResp := req.Validate(); errResp != nil {
		writeJSON(w, r, http.StatusBadRequest, errResp)
		return
	}

	res, err := a.segments.Preview(r.Context(), req.Rules)
	if err != nil {
		if errors.Is(err, segment.ErrInvalidSegment) {
			writeError(w, r, http.StatusBadRequest, codeInvalidInput, err.Error())
			return
		}
		writeStoreError(w, r, err, "Segment", "preview segment")
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleSegmentCustomers processes GET /api/v1/segments/{id}/customers?limit&offset.
// A missing limit returns every member.
func (a *API) handleSegmentCustomers(w http.ResponseWriter, r *http.Request) {
	limit, err := parseOptionalInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	offset, err := parseOptionalInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}
	if limit < 0 || offset < 0 {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, "limit and offset cannot be negative")
		return
	}

	id := chi.URLParam(r, "id")
	page, err := a.segments.GetCustomers(r.Context(), id, limit, offset)
	if err != nil {
		writeStoreError(w, r, err, "Segment", "load segment customers")
		return
	}

	resp := SegmentCustomersResponse{
		SegmentID:      id,
		Customers:      page.Customers,
		MaterializedAt: page.MaterializedAt,
		Pagination: OffsetPagination{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore,
		},
	}
	if resp.Customers == nil {
		resp.Customers = []*store.Customer{}
	}
	writeJSON(w, r, http.StatusOK, resp)
}
