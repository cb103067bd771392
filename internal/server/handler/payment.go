package handler

import (
	"log/slog"
	"net/http"

	"github.com/Ortegaa03/vpnchain-router/internal/service"
)

// PaymentHandler serves the transfer-detection endpoint.
type PaymentHandler struct {
	payments *service.PaymentService
	logger   *slog.Logger
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(payments *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logHandler(logger, "payment")}
}

// Detect runs one detection poll for an expected inbound transfer.
// POST /api/detect
func (h *PaymentHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req service.DetectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	resp, err := h.payments.Detect(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "detect poll failed",
			slog.String("session", req.SessionID), slog.Any("error", err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
