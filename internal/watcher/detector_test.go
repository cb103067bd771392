package watcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ortegaa03/vpnchain-router/internal/cache/memory"
	"github.com/Ortegaa03/vpnchain-router/internal/chain"
	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

var (
	testToken     = common.HexToAddress("0x2cFc85d8E48F8EAB294be644d9E25C3030863003")
	testSender    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRecipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakeChain struct {
	head        uint64
	headErr     error
	times       map[uint64]uint64
	events      []chain.TransferEvent
	filterErr   error
	decimals    uint8
	decimalsErr error
	filterCalls int
}

func (f *fakeChain) BlockNumber(context.Context) (uint64, error) {
	return f.head, f.headErr
}

func (f *fakeChain) BlockTime(_ context.Context, number uint64) (uint64, error) {
	ts, ok := f.times[number]
	if !ok {
		return 0, errors.New("unknown block")
	}
	return ts, nil
}

func (f *fakeChain) FilterTransfers(_ context.Context, _, _, _ common.Address, _, _ uint64) ([]chain.TransferEvent, error) {
	f.filterCalls++
	return f.events, f.filterErr
}

func (f *fakeChain) TokenDecimals(context.Context, common.Address) (uint8, error) {
	return f.decimals, f.decimalsErr
}

type detectorHarness struct {
	detector *Detector
	tracker  *Tracker
	store    *memory.SessionStore
	set      *memory.ProcessedSet
	chain    *fakeChain
	clock    int64
}

func newDetectorHarness(t *testing.T, fc *fakeChain) *detectorHarness {
	t.Helper()
	store := memory.NewSessionStore()
	set := memory.NewProcessedSet()
	tracker := NewTracker(store, fc, 600*time.Second)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	det := NewDetector(tracker, fc, set, "0.01", []string{"5", "10", "20", "50", "100"}, 600*time.Second, log)

	h := &detectorHarness{detector: det, tracker: tracker, store: store, set: set, chain: fc, clock: 10_000}
	now := func() time.Time { return time.Unix(h.clock, 0) }
	tracker.now = now
	det.now = now
	return h
}

func (h *detectorHarness) request() PollRequest {
	return PollRequest{
		SessionID:     "sess-1",
		Token:         testToken,
		Sender:        testSender,
		Recipient:     testRecipient,
		Amount:        "7.5",
		TokenDecimals: 18,
	}
}

func (h *detectorHarness) session(t *testing.T) domain.Session {
	t.Helper()
	s, err := h.store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	return s
}

func wei(t *testing.T, amount string) *big.Int {
	t.Helper()
	v, err := chain.ParseUnits(amount, 18)
	require.NoError(t, err)
	return v
}

func transferAt(t *testing.T, block uint64, amount string, tx byte) chain.TransferEvent {
	t.Helper()
	return chain.TransferEvent{
		TxHash:      common.Hash{tx},
		From:        testSender,
		To:          testRecipient,
		Amount:      wei(t, amount),
		BlockNumber: block,
	}
}

func TestDetectorCreationPollDoesNotScan(t *testing.T) {
	fc := &fakeChain{head: 100, decimals: 18}
	h := newDetectorHarness(t, fc)

	det, err := h.detector.Poll(context.Background(), h.request())
	require.NoError(t, err)
	assert.Equal(t, domain.DetectionNone, det.Status)
	assert.Zero(t, fc.filterCalls)
	assert.Equal(t, uint64(100), h.session(t).StartBlock)
}

func TestDetectorMatchWithinTolerance(t *testing.T) {
	fc := &fakeChain{
		head:     102,
		decimals: 18,
		times:    map[uint64]uint64{101: 9_990},
		events:   []chain.TransferEvent{transferAt(t, 101, "7.505", 0xaa)},
	}
	h := newDetectorHarness(t, fc)

	ctx := context.Background()
	_, err := h.detector.Poll(ctx, h.request()) // creation poll
	require.NoError(t, err)

	h.clock = 10_050
	det, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	require.Equal(t, domain.DetectionMatched, det.Status)
	require.NotNil(t, det.Transfer)
	assert.Equal(t, "7.505", det.Transfer.Amount)
	assert.Equal(t, uint64(101), det.Transfer.BlockNumber)

	s := h.session(t)
	assert.Equal(t, uint64(102), s.StartBlock, "cursor moves past the matched block")
	assert.Equal(t, int64(10_050), s.CreatedAt, "watch window refreshed on match")
}

func TestDetectorMatchIsIdempotent(t *testing.T) {
	fc := &fakeChain{
		head:     102,
		decimals: 18,
		times:    map[uint64]uint64{101: 9_990},
		events:   []chain.TransferEvent{transferAt(t, 101, "7.5", 0xaa)},
	}
	h := newDetectorHarness(t, fc)

	ctx := context.Background()
	_, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)

	det, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	require.Equal(t, domain.DetectionMatched, det.Status)

	// The same log shows up again in a later range scan.
	fc.head = 110
	det, err = h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	assert.Equal(t, domain.DetectionNone, det.Status)
}

func TestDetectorSkipsDenominationAmounts(t *testing.T) {
	fc := &fakeChain{
		head:     102,
		decimals: 18,
		times:    map[uint64]uint64{101: 9_990},
		events:   []chain.TransferEvent{transferAt(t, 101, "10", 0xaa)},
	}
	h := newDetectorHarness(t, fc)

	ctx := context.Background()
	_, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)

	det, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	assert.Equal(t, domain.DetectionNone, det.Status)
	assert.Equal(t, uint64(103), h.session(t).StartBlock, "range still fully scanned")

	seen, err := h.set.Contains(ctx, "sess-1:"+common.Hash{0xaa}.Hex()+":"+wei(t, "10").String())
	require.NoError(t, err)
	assert.False(t, seen, "denomination transfers stay unclaimed for other flows")
}

func TestDetectorInvalidAmount(t *testing.T) {
	fc := &fakeChain{
		head:     102,
		decimals: 18,
		times:    map[uint64]uint64{101: 9_990},
		events:   []chain.TransferEvent{transferAt(t, 101, "3.25", 0xaa)},
	}
	h := newDetectorHarness(t, fc)

	ctx := context.Background()
	_, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	createdAt := h.session(t).CreatedAt

	h.clock = 10_050
	det, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	require.Equal(t, domain.DetectionInvalid, det.Status)
	require.NotNil(t, det.Transfer)
	assert.Equal(t, "3.25", det.Transfer.Amount)

	s := h.session(t)
	assert.Equal(t, uint64(102), s.StartBlock)
	assert.Equal(t, createdAt, s.CreatedAt, "invalid detection must not extend the window")
}

func TestDetectorIgnoresStaleTransfers(t *testing.T) {
	fc := &fakeChain{
		head:     102,
		decimals: 18,
		times:    map[uint64]uint64{101: 9_000}, // 1000s old at poll time
		events:   []chain.TransferEvent{transferAt(t, 101, "7.5", 0xaa)},
	}
	h := newDetectorHarness(t, fc)

	ctx := context.Background()
	_, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)

	det, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	assert.Equal(t, domain.DetectionNone, det.Status)
	assert.Equal(t, uint64(103), h.session(t).StartBlock)
}

func TestDetectorRPCErrorLeavesCursorUntouched(t *testing.T) {
	fc := &fakeChain{head: 102, decimals: 18}
	h := newDetectorHarness(t, fc)

	ctx := context.Background()
	_, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	before := h.session(t)

	fc.filterErr = domain.ErrTransientRPC
	_, err = h.detector.Poll(ctx, h.request())
	require.ErrorIs(t, err, domain.ErrTransientRPC)

	after := h.session(t)
	assert.Equal(t, before.StartBlock, after.StartBlock)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
}

func TestDetectorExpiredSession(t *testing.T) {
	fc := &fakeChain{head: 102, decimals: 18}
	h := newDetectorHarness(t, fc)

	ctx := context.Background()
	_, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)

	h.clock += 601
	det, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	assert.Equal(t, domain.DetectionExpired, det.Status)
	assert.Zero(t, fc.filterCalls)
}

func TestDetectorZeroLengthRange(t *testing.T) {
	fc := &fakeChain{head: 100, decimals: 18}
	h := newDetectorHarness(t, fc)

	ctx := context.Background()
	_, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)

	// Cursor already past head after a full scan plus no new blocks.
	fc.head = 100
	det, err := h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	assert.Equal(t, domain.DetectionNone, det.Status)
	assert.Equal(t, uint64(101), h.session(t).StartBlock)

	det, err = h.detector.Poll(ctx, h.request())
	require.NoError(t, err)
	assert.Equal(t, domain.DetectionNone, det.Status)
}
