package service

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

type fakeRouteReader struct {
	status domain.RouteStatus
	err    error
	ids    []*big.Int
}

func (f *fakeRouteReader) RouteStatus(_ context.Context, id *big.Int) (domain.RouteStatus, error) {
	f.ids = append(f.ids, id)
	return f.status, f.err
}

func TestRouteStatusParsesDecimalID(t *testing.T) {
	reader := &fakeRouteReader{status: domain.RouteStatus{RouteID: "7421", Completed: true}}
	svc := NewRouteService(reader, newTestLogger())

	st, err := svc.Status(context.Background(), "7421")
	require.NoError(t, err)
	assert.True(t, st.Completed)
	require.Len(t, reader.ids, 1)
	assert.Equal(t, int64(7421), reader.ids[0].Int64())
}

func TestRouteStatusRejectsMalformedID(t *testing.T) {
	svc := NewRouteService(&fakeRouteReader{}, newTestLogger())

	for _, id := range []string{"", "abc", "0x1f", "-3", "1.5"} {
		_, err := svc.Status(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrValidation, "id %q", id)
	}
}
