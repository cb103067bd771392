package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Ortegaa03/vpnchain-router/internal/platform/dexscreener"
)

// PairSource looks up DEX pair snapshots. dexscreener.Client implements it.
type PairSource interface {
	PairsByToken(ctx context.Context, tokenAddress string) ([]dexscreener.Pair, error)
}

// DexInfoHandler proxies read-only market context for a token.
type DexInfoHandler struct {
	pairs  PairSource
	logger *slog.Logger
}

// NewDexInfoHandler creates a DexInfoHandler.
func NewDexInfoHandler(pairs PairSource, logger *slog.Logger) *DexInfoHandler {
	return &DexInfoHandler{pairs: pairs, logger: logHandler(logger, "dexinfo")}
}

// TokenPairs returns the indexed pairs for a token address.
// GET /api/dex-info?token=0x...
func (h *DexInfoHandler) TokenPairs(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token query parameter is required")
		return
	}

	pairs, err := h.pairs.PairsByToken(r.Context(), token)
	if err != nil {
		h.logger.WarnContext(r.Context(), "dex info lookup failed",
			slog.String("token", token), slog.Any("error", err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"pairs": pairs,
		"count": len(pairs),
	})
}
