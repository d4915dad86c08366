package controlapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rafaeljc/herald/internal/campaign"
	"github.com/rafaeljc/herald/internal/logger"
)

// handleDeliverCampaign processes POST /api/v1/campaigns/deliver.
//
// The request blocks until every message got its single gateway attempt.
// Delivery receipts keep arriving after the response is written.
func (a *API) handleDeliverCampaign(w http.ResponseWriter, r *http.Request) {
	var req DeliverCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errResp := req.Validate(); errResp != nil {
		writeJSON(w, r, http.StatusBadRequest, errResp)
		return
	}

	r = r.WithContext(logger.With(r.Context(), slog.String("segment_id", req.SegmentID)))
	log := logger.FromContext(r.Context())

	summary, err := a.campaigns.Deliver(r.Context(), req.toDomain())
	if err != nil {
		switch {
		case errors.Is(err, campaign.ErrInvalidCampaign):
			writeError(w, r, http.StatusBadRequest, codeInvalidInput, err.Error())
		case errors.Is(err, campaign.ErrSegmentNotFound):
			writeError(w, r, http.StatusNotFound, codeNotFound, "Segment not found")
		default:
			writeStoreError(w, r, err, "Campaign", "deliver campaign")
		}
		return
	}

	log.Info("campaign delivered",
		slog.String("campaign_id", summary.Campaign.ID),
		slog.Int("sent", summary.SentCount),
		slog.Int("failed", summary.FailedCount),
	)
	writeJSON(w, r, http.StatusOK, DeliverCampaignResponse{
		Success:           true,
		CampaignID:        summary.Campaign.ID,
		TotalMessages:     summary.TotalMessages,
		SentCount:         summary.SentCount,
		FailedCount:       summary.FailedCount,
		CommunicationLogs: summary.Logs,
	})
}

// handleListCampaigns processes GET /api/v1/campaigns?page&page_size.
func (a *API) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, size, err := parsePage(r, "page_size")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}

	campaigns, total, err := a.campaigns.List(r.Context(), size, (page-1)*size)
	if err != nil {
		writeStoreError(w, r, err, "Campaign", "list campaigns")
		return
	}

	writeJSON(w, r, http.StatusOK, PaginatedResponse{
		Data:       campaigns,
		Pagination: newPagination(total, page, size),
	})
}

func (a *API) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := a.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, err, "Campaign", "get campaign")
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

// handleCampaignLogs processes GET /api/v1/campaigns/{id}/logs?page&page_size.
func (a *API) handleCampaignLogs(w http.ResponseWriter, r *http.Request) {
	page, size, err := parsePage(r, "page_size")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}

	logs, total, err := a.campaigns.Logs(r.Context(), chi.URLParam(r, "id"), size, (page-1)*size)
	if err != nil {
		writeStoreError(w, r, err, "Campaign", "list campaign logs")
		return
	}

	writeJSON(w, r, http.StatusOK, PaginatedResponse{
		Data:       logs,
		Pagination: newPagination(total, page, size),
	})
}
