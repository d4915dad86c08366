package controlapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rafaeljc/herald/internal/gateway"
	"github.com/rafaeljc/herald/internal/logger"
	"github.com/rafaeljc/herald/internal/receipt"
	"github.com/rafaeljc/herald/internal/store"
)

// handleVendorSend processes POST /api/v1/vendor/send, exposing the gateway
// directly. A rejection is still a 200: the verdict is in the body.
func (a *API) handleVendorSend(w http.ResponseWriter, r *http.Request) {
	var req VendorSendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errResp := req.Validate(); errResp != nil {
		writeJSON(w, r, http.StatusBadRequest, errResp)
		return
	}

	res, err := a.gateway.Send(r.Context(), gateway.Message{
		MessageID:     req.MessageID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Subject:       req.Subject,
		Body:          req.Message,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidMessage) {
			writeError(w, r, http.StatusBadRequest, codeInvalidInput, err.Error())
			return
		}
		logger.FromContext(r.Context()).Error("vendor send failed", slog.String("error", err.Error()))
		writeError(w, r, http.StatusBadGateway, codeInternal, "Vendor gateway failed")
		return
	}

	resp := VendorSendResponse{
		Success:         res.Accepted,
		MessageID:       req.MessageID,
		VendorMessageID: res.VendorMessageID,
		Status:          string(store.VendorAccepted),
		ErrorMessage:    res.ErrorMessage,
	}
	if !res.Accepted {
		resp.Status = string(store.VendorRejected)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleDeliveryReceipt processes POST /api/v1/delivery-receipt.
//
// Unknown and already final messages are acknowledged with updated_count 0.
// A receipt for a message that was not marked SENT yet gets a 409 so the
// sender retries later.
func (a *API) handleDeliveryReceipt(w http.ResponseWriter, r *http.Request) {
	var req DeliveryReceiptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errResp := req.Validate(); errResp != nil {
		writeJSON(w, r, http.StatusBadRequest, errResp)
		return
	}

	outcome := a.receipts.OnReceipt(r.Context(), receipt.Receipt{
		MessageID:       req.MessageID,
		VendorMessageID: req.VendorMessageID,
		Status:          req.Status,
		DeliveredAt:     req.DeliveredAt,
		ErrorMessage:    req.ErrorMessage,
	})

	switch outcome {
	case receipt.Applied:
		writeJSON(w, r, http.StatusOK, DeliveryReceiptResponse{
			Success:      true,
			Message:      "Delivery status updated",
			UpdatedCount: 1,
		})
	case receipt.NotReady:
		writeJSON(w, r, http.StatusConflict, DeliveryReceiptResponse{
			Success: false,
			Message: "Message is not sent yet, retry later",
		})
	default:
		writeJSON(w, r, http.StatusOK, DeliveryReceiptResponse{
			Success: true,
			Message: "No sent message matched the receipt",
		})
	}
}
