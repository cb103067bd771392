package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// RouteReader reads route metadata off the routing contract.
// chain.HopRouter implements it.
type RouteReader interface {
	RouteStatus(ctx context.Context, routeID *big.Int) (domain.RouteStatus, error)
}

// RouteService serves route progress lookups.
type RouteService struct {
	reader RouteReader
	logger *slog.Logger
}

// NewRouteService creates a RouteService.
func NewRouteService(reader RouteReader, logger *slog.Logger) *RouteService {
	return &RouteService{reader: reader, logger: logger}
}

// Status resolves the progress of one route by its decimal id.
func (s *RouteService) Status(ctx context.Context, routeID string) (domain.RouteStatus, error) {
	id, ok := new(big.Int).SetString(routeID, 10)
	if !ok || id.Sign() < 0 {
		return domain.RouteStatus{}, fmt.Errorf("%w: route id %q is not a decimal integer", domain.ErrValidation, routeID)
	}
	st, err := s.reader.RouteStatus(ctx, id)
	if err != nil {
		return domain.RouteStatus{}, fmt.Errorf("reading route %s: %w", routeID, err)
	}
	return st, nil
}
