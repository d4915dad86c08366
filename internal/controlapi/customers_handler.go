package controlapi

import (
	"log/slog"
	"net/http"

	"github.com/rafaeljc/herald/internal/logger"
)

// handleListCustomers processes GET /api/v1/customers?page&page_size.
func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	page, size, err := parsePage(r, "page_size")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidQuery, err.Error())
		return
	}

	customers, total, err := a.segments.ListCustomers(r.Context(), size, (page-1)*size)
	if err != nil {
		writeStoreError(w, r, err, "Customer", "list customers")
		return
	}

	writeJSON(w, r, http.StatusOK, PaginatedResponse{
		Data:       customers,
		Pagination: newPagination(total, page, size),
	})
}

// handleImportCustomers processes POST /api/v1/customers, a bulk upsert by id.
// Existing segments pick up the changes on their next refresh.
func (a *API) handleImportCustomers(w http.ResponseWriter, r *http.Request) {
	var req ImportCustomersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errResp := req.Validate(); errResp != nil {
		writeJSON(w, r, http.StatusBadRequest, errResp)
		return
	}

	customers := req.toStore()
	if err := a.segments.ImportCustomers(r.Context(), customers); err != nil {
		writeStoreError(w, r, err, "Customer", "import customers")
		return
	}

	logger.FromContext(r.Context()).Info("customers imported", slog.Int("count", len(customers)))
	writeJSON(w, r, http.StatusCreated, ImportCustomersResponse{
		ImportedCount: len(customers),
		Customers:     customers,
	})
}
