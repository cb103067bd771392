package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
	"github.com/Ortegaa03/vpnchain-router/internal/service"
)

// SettlementHandler serves the send, swap, and refund endpoints plus
// transaction record lookups.
type SettlementHandler struct {
	settlements *service.SettlementService
	logger      *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settlements *service.SettlementService, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{settlements: settlements, logger: logHandler(logger, "settlement")}
}

// Send settles already-held tokens directly to a recipient.
// POST /api/send
func (h *SettlementHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req service.SendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	resp, err := h.settlements.Send(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "send failed",
			slog.String("transaction", req.TransactionID), slog.Any("error", err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Swap converts held tokens to the requested token and routes the proceeds.
// POST /api/swap
func (h *SettlementHandler) Swap(w http.ResponseWriter, r *http.Request) {
	var req service.SwapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	resp, err := h.settlements.Swap(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "swap failed",
			slog.String("transaction", req.TransactionID), slog.Any("error", err))
		writeDomainError(w, err)
		return
	}
	// A refunded swap is reported 200 with refunded=true: the caller's funds
	// are accounted for even though the swap itself did not happen.
	writeJSON(w, http.StatusOK, resp)
}

// Refund returns held tokens after a failed flow.
// POST /api/refund
func (h *SettlementHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var req service.RefundRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	resp, err := h.settlements.Refund(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "refund failed",
			slog.String("transaction", req.TransactionID), slog.Any("error", err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// transactionView is the read-model shape of one record.
type transactionView struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	SessionID   string `json:"sessionId,omitempty"`
	Sender      string `json:"sender,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
	TokenSymbol string `json:"tokenSymbol,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Mode        string `json:"mode,omitempty"`
	TxHash      string `json:"txHash,omitempty"`
	RouteID     string `json:"routeId,omitempty"`
	FailureKind string `json:"failureKind,omitempty"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toTransactionView(rec domain.TransactionRecord) transactionView {
	return transactionView{
		ID:          rec.ID,
		Kind:        rec.Kind,
		Status:      rec.Status,
		SessionID:   rec.SessionID,
		Sender:      rec.Sender,
		Recipient:   rec.Recipient,
		TokenSymbol: rec.TokenSymbol,
		Amount:      rec.Amount,
		Mode:        rec.Mode,
		TxHash:      rec.TxHash,
		RouteID:     rec.RouteID,
		FailureKind: rec.FailureKind,
		Error:       rec.Error,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// GetTransaction returns one transaction record.
// GET /api/transactions/{id}
func (h *SettlementHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	rec, err := h.settlements.Record(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionView(rec))
}

// ListTransactions returns recent transaction records, newest first.
// GET /api/transactions
func (h *SettlementHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	recs, err := h.settlements.RecentRecords(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	views := make([]transactionView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, toTransactionView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": views,
		"count":        len(views),
	})
}
