package handler

import (
	"log/slog"
	"net/http"

	"github.com/Ortegaa03/vpnchain-router/internal/service"
)

// RouteHandler serves route progress lookups.
type RouteHandler struct {
	routes *service.RouteService
	logger *slog.Logger
}

// NewRouteHandler creates a RouteHandler.
func NewRouteHandler(routes *service.RouteService, logger *slog.Logger) *RouteHandler {
	return &RouteHandler{routes: routes, logger: logHandler(logger, "route")}
}

// Status returns the on-chain progress of one route.
// GET /api/routes/{id}/status
func (h *RouteHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	st, err := h.routes.Status(r.Context(), id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "route status lookup failed",
			slog.String("route", id), slog.Any("error", err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
