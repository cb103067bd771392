package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
	"github.com/Ortegaa03/vpnchain-router/internal/executor"
)

type fakeSettler struct {
	directRes executor.DirectResult
	swapRes   executor.SwapResult
	refundRes executor.RefundResult
	attempt   *domain.SettlementAttempt
	err       error

	directReqs []executor.DirectRequest
	swapReqs   []executor.SwapRequest
	refundReqs []executor.RefundRequest
}

func (f *fakeSettler) Direct(_ context.Context, req executor.DirectRequest) (executor.DirectResult, *domain.SettlementAttempt, error) {
	f.directReqs = append(f.directReqs, req)
	return f.directRes, f.attempt, f.err
}

func (f *fakeSettler) Swap(_ context.Context, req executor.SwapRequest) (executor.SwapResult, *domain.SettlementAttempt, error) {
	f.swapReqs = append(f.swapReqs, req)
	return f.swapRes, f.attempt, f.err
}

func (f *fakeSettler) Refund(_ context.Context, req executor.RefundRequest) (executor.RefundResult, *domain.SettlementAttempt, error) {
	f.refundReqs = append(f.refundReqs, req)
	return f.refundRes, f.attempt, f.err
}

type fakeRecords struct {
	mu      sync.Mutex
	byID    map[string]domain.TransactionRecord
	history []string // statuses in transition order
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{byID: make(map[string]domain.TransactionRecord)}
}

func (f *fakeRecords) Create(_ context.Context, rec domain.TransactionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[rec.ID] = rec
	f.history = append(f.history, rec.Status)
	return nil
}

func (f *fakeRecords) UpdateStatus(_ context.Context, id, status string, upd domain.TransactionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = status
	if upd.TxHash != "" {
		rec.TxHash = upd.TxHash
	}
	if upd.RouteID != "" {
		rec.RouteID = upd.RouteID
	}
	if upd.FailureKind != "" {
		rec.FailureKind = upd.FailureKind
	}
	if upd.Error != "" {
		rec.Error = upd.Error
	}
	f.byID[id] = rec
	f.history = append(f.history, status)
	return nil
}

func (f *fakeRecords) GetByID(_ context.Context, id string) (domain.TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return domain.TransactionRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecords) ListRecent(_ context.Context, _ domain.ListOpts) ([]domain.TransactionRecord, error) {
	return nil, nil
}

func (f *fakeRecords) ListTerminalUnarchived(_ context.Context, limit int) ([]domain.TransactionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TransactionRecord
	for _, rec := range f.byID {
		if rec.Archived {
			continue
		}
		if rec.Status != domain.TxStatusCompleted && rec.Status != domain.TxStatusFailed {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRecords) MarkArchived(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		rec := f.byID[id]
		rec.Archived = true
		f.byID[id] = rec
	}
	return nil
}

type fakeLocks struct {
	err      error
	acquired []string
	released int
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired = append(f.acquired, key)
	return func() { f.released++ }, nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []settlementEvent
}

func (f *fakeBus) Publish(_ context.Context, _ string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := payload.(settlementEvent); ok {
		f.events = append(f.events, ev)
	}
	return nil
}

type fakeNotifier struct {
	events   []string
	messages []string
}

func (f *fakeNotifier) Notify(_ context.Context, event, message string) {
	f.events = append(f.events, event)
	f.messages = append(f.messages, message)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func settlementHarness(settler *fakeSettler) (*SettlementService, *fakeRecords, *fakeLocks, *fakeBus, *fakeNotifier) {
	records := newFakeRecords()
	locks := &fakeLocks{}
	bus := &fakeBus{}
	notifier := &fakeNotifier{}
	svc := NewSettlementService(settler, records, locks, bus, notifier, "support@example.com", newTestLogger())
	return svc, records, locks, bus, notifier
}

func TestSendRecordsLifecycle(t *testing.T) {
	settler := &fakeSettler{
		directRes: executor.DirectResult{
			TxHash:      "0xabc",
			BlockNumber: 120,
			GasUsed:     90_000,
			RouteID:     "7421",
			Mode:        domain.ModeInstant,
		},
	}
	svc, records, locks, bus, notifier := settlementHarness(settler)

	resp, err := svc.Send(context.Background(), SendRequest{
		TransactionID: "tx-1",
		Amount:        "25",
		Recipient:     "0x1111111111111111111111111111111111111111",
		TransferMode:  "instant",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "0xabc", resp.TxHash)
	assert.Equal(t, uint64(120), resp.BlockNumber)
	assert.Equal(t, "7421", resp.TransferID)
	assert.Equal(t, "instant", resp.Mode)

	rec, err := records.GetByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusCompleted, rec.Status)
	assert.Equal(t, "0xabc", rec.TxHash)
	assert.Equal(t, "7421", rec.RouteID)
	assert.Equal(t, []string{
		domain.TxStatusPending, domain.TxStatusProcessing, domain.TxStatusCompleted,
	}, records.history)

	assert.Equal(t, []string{walletLockKey}, locks.acquired)
	assert.Equal(t, 1, locks.released)

	require.Len(t, bus.events, 1)
	assert.Equal(t, "send", bus.events[0].Kind)
	assert.Equal(t, domain.TxStatusCompleted, bus.events[0].Status)
	assert.Empty(t, notifier.events)
}

func TestSendGeneratesIDWhenMissing(t *testing.T) {
	settler := &fakeSettler{directRes: executor.DirectResult{TxHash: "0x1"}}
	svc, records, _, _, _ := settlementHarness(settler)

	_, err := svc.Send(context.Background(), SendRequest{
		Amount:       "5",
		Recipient:    "0x1111111111111111111111111111111111111111",
		TransferMode: "instant",
	})
	require.NoError(t, err)

	require.Len(t, records.byID, 1)
	for id := range records.byID {
		assert.NotEmpty(t, id)
	}
}

func TestSendFailureNotifiesAndReleasesLock(t *testing.T) {
	settler := &fakeSettler{
		err: domain.ErrReverted,
		attempt: &domain.SettlementAttempt{
			TxHash:  "0xdead",
			State:   domain.StateReverted,
			Failure: domain.FailureReverted,
		},
	}
	svc, records, locks, bus, notifier := settlementHarness(settler)

	_, err := svc.Send(context.Background(), SendRequest{
		TransactionID: "tx-2",
		Amount:        "5",
		Recipient:     "0x1111111111111111111111111111111111111111",
		TransferMode:  "instant",
	})
	require.ErrorIs(t, err, domain.ErrReverted)

	rec, getErr := records.GetByID(context.Background(), "tx-2")
	require.NoError(t, getErr)
	assert.Equal(t, domain.TxStatusFailed, rec.Status)
	assert.Equal(t, "0xdead", rec.TxHash)
	assert.Equal(t, string(domain.FailureReverted), rec.FailureKind)

	assert.Equal(t, 1, locks.released)
	require.Len(t, bus.events, 1)
	assert.Equal(t, domain.TxStatusFailed, bus.events[0].Status)
	assert.Equal(t, []string{"settlement_failed"}, notifier.events)
}

func TestSendLockHeldFailsWithoutExecuting(t *testing.T) {
	settler := &fakeSettler{}
	svc, records, locks, _, _ := settlementHarness(settler)
	locks.err = domain.ErrLockHeld

	_, err := svc.Send(context.Background(), SendRequest{
		TransactionID: "tx-3",
		Amount:        "5",
		Recipient:     "0x1111111111111111111111111111111111111111",
		TransferMode:  "instant",
	})
	require.ErrorIs(t, err, domain.ErrLockHeld)

	assert.Empty(t, settler.directReqs)
	rec, getErr := records.GetByID(context.Background(), "tx-3")
	require.NoError(t, getErr)
	assert.Equal(t, domain.TxStatusFailed, rec.Status)
}

func TestSwapSuccess(t *testing.T) {
	settler := &fakeSettler{
		swapRes: executor.SwapResult{
			SwapMethod:     "v3-single",
			SwapPath:       []string{"0xaa", "0xbb"},
			TokensReceived: "2.5",
			RouteID:        "99",
			SwapTxHash:     "0xswap",
			RouteTxHash:    "0xroute",
		},
	}
	svc, records, _, bus, _ := settlementHarness(settler)

	resp, err := svc.Swap(context.Background(), SwapRequest{
		TransactionID: "tx-4",
		AmountIn:      "10",
		TokenOut:      "0x2222222222222222222222222222222222222222",
		Recipient:     "0x1111111111111111111111111111111111111111",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "v3-single", resp.SwapMethod)
	assert.Equal(t, "2.5", resp.TokensReceived)
	assert.Equal(t, "0xroute", resp.RouteTxHash)

	rec, _ := records.GetByID(context.Background(), "tx-4")
	assert.Equal(t, domain.TxStatusCompleted, rec.Status)
	assert.Equal(t, "0xroute", rec.TxHash)
	assert.Equal(t, "99", rec.RouteID)
	require.Len(t, bus.events, 1)
}

func TestSwapRefundedReportsRefundNotError(t *testing.T) {
	settler := &fakeSettler{
		err: domain.ErrNoLiquidity,
		swapRes: executor.SwapResult{
			Refunded:           true,
			RefundTxHash:       "0xrefund",
			RefundAmount:       "9.8",
			CommissionRetained: "0.2",
		},
		attempt: &domain.SettlementAttempt{Failure: domain.FailureNoLiquidity},
	}
	svc, records, _, _, notifier := settlementHarness(settler)

	resp, err := svc.Swap(context.Background(), SwapRequest{
		TransactionID: "tx-5",
		AmountIn:      "10",
		TokenOut:      "0x2222222222222222222222222222222222222222",
		Recipient:     "0x1111111111111111111111111111111111111111",
	})
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.True(t, resp.Refunded)
	assert.Equal(t, "0xrefund", resp.RefundTxHash)
	assert.Equal(t, "9.8", resp.RefundAmount)
	assert.Equal(t, "support@example.com", resp.SupportEmail)

	rec, _ := records.GetByID(context.Background(), "tx-5")
	assert.Equal(t, domain.TxStatusFailed, rec.Status)
	assert.Equal(t, "0xrefund", rec.TxHash)
	assert.Equal(t, []string{"settlement_failed"}, notifier.events)
}

func TestRefundFailureUsesRefundEvent(t *testing.T) {
	settler := &fakeSettler{
		err:     errors.New("rpc down"),
		attempt: &domain.SettlementAttempt{Failure: domain.FailureTransient},
	}
	svc, _, _, _, notifier := settlementHarness(settler)

	_, err := svc.Refund(context.Background(), RefundRequest{
		TransactionID:  "tx-6",
		Amount:         "10",
		OriginalSender: "0x1111111111111111111111111111111111111111",
	})
	require.Error(t, err)
	assert.Equal(t, []string{"refund_failed"}, notifier.events)
}

func TestRefundSuccess(t *testing.T) {
	settler := &fakeSettler{
		refundRes: executor.RefundResult{
			TxHash:             "0xr",
			BlockNumber:        55,
			GasUsed:            80_000,
			Amount:             "98",
			CommissionRetained: "2",
		},
	}
	svc, records, _, _, _ := settlementHarness(settler)

	resp, err := svc.Refund(context.Background(), RefundRequest{
		TransactionID:  "tx-7",
		Amount:         "100",
		OriginalSender: "0x1111111111111111111111111111111111111111",
		FailedAttempts: 1,
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "98", resp.RefundAmount)
	assert.Equal(t, "2", resp.CommissionRetained)

	require.Len(t, settler.refundReqs, 1)
	assert.Equal(t, 1, settler.refundReqs[0].FailedAttempts)

	rec, _ := records.GetByID(context.Background(), "tx-7")
	assert.Equal(t, domain.TxStatusCompleted, rec.Status)
}
