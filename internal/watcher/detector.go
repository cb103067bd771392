package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ortegaa03/vpnchain-router/internal/chain"
	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// ChainReader is the read-only chain surface the detector needs.
type ChainReader interface {
	HeadReader
	BlockTime(ctx context.Context, number uint64) (uint64, error)
	FilterTransfers(ctx context.Context, token, from, to common.Address, fromBlock, toBlock uint64) ([]chain.TransferEvent, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
}

// PollRequest carries one detection poll. TokenDecimals of zero means
// "resolve on chain".
type PollRequest struct {
	SessionID     string
	Token         common.Address
	Sender        common.Address
	Recipient     common.Address
	Amount        string // expected amount, human units
	TokenDecimals uint8
}

// Detector classifies inbound Transfer logs for a watch session. Each poll
// scans [cursor, head], surfaces at most one terminal event, and advances
// the cursor only on a fully scanned range. Provider errors are returned
// untouched with the cursor and idempotency set unmodified, so the caller
// can simply retry the poll.
type Detector struct {
	tracker       *Tracker
	chain         ChainReader
	processed     domain.ProcessedSet
	tolerance     string
	denominations []string
	maxAge        time.Duration
	log           *slog.Logger
	now           func() time.Time
}

// NewDetector builds a Detector. tolerance and denominations are human-unit
// decimal strings, converted per poll at the watched token's precision.
func NewDetector(tracker *Tracker, cr ChainReader, processed domain.ProcessedSet, tolerance string, denominations []string, maxAge time.Duration, log *slog.Logger) *Detector {
	return &Detector{
		tracker:       tracker,
		chain:         cr,
		processed:     processed,
		tolerance:     tolerance,
		denominations: denominations,
		maxAge:        maxAge,
		log:           log.With(slog.String("component", "detector")),
		now:           time.Now,
	}
}

func (d *Detector) processedKey(sessionID string, txHash common.Hash, amount *big.Int) string {
	return fmt.Sprintf("%s:%s:%s", sessionID, txHash.Hex(), amount.String())
}

// Poll runs one detection pass for the request's session.
func (d *Detector) Poll(ctx context.Context, req PollRequest) (domain.Detection, error) {
	session, created, err := d.tracker.StartOrAdvance(ctx, req.SessionID)
	if err != nil {
		return domain.Detection{}, err
	}
	if created {
		// The creation poll only establishes the cursor.
		return domain.Detection{Status: domain.DetectionNone}, nil
	}
	if d.tracker.Expired(session) {
		return domain.Detection{Status: domain.DetectionExpired}, nil
	}

	decimals := req.TokenDecimals
	if decimals == 0 {
		decimals, err = d.chain.TokenDecimals(ctx, req.Token)
		if err != nil {
			d.log.WarnContext(ctx, "resolving token decimals failed, assuming 18",
				slog.String("token", req.Token.Hex()), slog.Any("error", err))
			decimals = 18
		}
	}

	expected, err := chain.ParseUnits(req.Amount, decimals)
	if err != nil {
		return domain.Detection{}, fmt.Errorf("%w: amount %q: %v", domain.ErrValidation, req.Amount, err)
	}
	tolerance, err := chain.ParseUnits(d.tolerance, decimals)
	if err != nil {
		return domain.Detection{}, fmt.Errorf("%w: tolerance %q: %v", domain.ErrConfiguration, d.tolerance, err)
	}
	denoms := make([]*big.Int, 0, len(d.denominations))
	for _, s := range d.denominations {
		v, err := chain.ParseUnits(s, decimals)
		if err != nil {
			return domain.Detection{}, fmt.Errorf("%w: denomination %q: %v", domain.ErrConfiguration, s, err)
		}
		denoms = append(denoms, v)
	}

	head, err := d.chain.BlockNumber(ctx)
	if err != nil {
		return domain.Detection{}, err
	}
	if head < session.StartBlock {
		return domain.Detection{Status: domain.DetectionNone}, nil
	}

	events, err := d.chain.FilterTransfers(ctx, req.Token, req.Sender, req.Recipient, session.StartBlock, head)
	if err != nil {
		return domain.Detection{}, err
	}

	now := d.now().Unix()
	blockTimes := make(map[uint64]uint64)

	for _, ev := range events {
		ts, ok := blockTimes[ev.BlockNumber]
		if !ok {
			ts, err = d.chain.BlockTime(ctx, ev.BlockNumber)
			if err != nil {
				return domain.Detection{}, err
			}
			blockTimes[ev.BlockNumber] = ts
		}
		if now-int64(ts) > int64(d.maxAge/time.Second) {
			continue
		}

		key := d.processedKey(req.SessionID, ev.TxHash, ev.Amount)
		seen, err := d.processed.Contains(ctx, key)
		if err != nil {
			return domain.Detection{}, fmt.Errorf("checking idempotency: %w", err)
		}
		if seen {
			continue
		}

		transfer := &domain.DetectedTransfer{
			TxHash:      ev.TxHash.Hex(),
			Amount:      chain.FormatUnits(ev.Amount, decimals),
			AmountWei:   ev.Amount,
			BlockNumber: ev.BlockNumber,
		}

		if withinTolerance(ev.Amount, expected, tolerance) {
			if err := d.processed.Add(ctx, key, 2*d.maxAge); err != nil {
				return domain.Detection{}, fmt.Errorf("marking processed: %w", err)
			}
			if err := d.tracker.AdvanceTo(ctx, session, ev.BlockNumber+1, true); err != nil {
				return domain.Detection{}, err
			}
			d.log.InfoContext(ctx, "transfer matched",
				slog.String("session", req.SessionID),
				slog.String("tx", transfer.TxHash),
				slog.String("amount", transfer.Amount))
			return domain.Detection{Status: domain.DetectionMatched, Transfer: transfer}, nil
		}

		if matchesAnyDenomination(ev.Amount, denoms, tolerance) {
			// A recognised denomination that belongs to some other flow.
			// Skipped, not refunded, and left out of the idempotency set.
			d.log.InfoContext(ctx, "denomination transfer skipped",
				slog.String("session", req.SessionID),
				slog.String("tx", transfer.TxHash),
				slog.String("amount", transfer.Amount))
			continue
		}

		if ev.Amount.Sign() > 0 {
			if err := d.processed.Add(ctx, key, 2*d.maxAge); err != nil {
				return domain.Detection{}, fmt.Errorf("marking processed: %w", err)
			}
			if err := d.tracker.AdvanceTo(ctx, session, ev.BlockNumber+1, false); err != nil {
				return domain.Detection{}, err
			}
			d.log.InfoContext(ctx, "invalid transfer detected",
				slog.String("session", req.SessionID),
				slog.String("tx", transfer.TxHash),
				slog.String("amount", transfer.Amount))
			return domain.Detection{Status: domain.DetectionInvalid, Transfer: transfer}, nil
		}
	}

	if err := d.tracker.AdvanceTo(ctx, session, head+1, false); err != nil {
		return domain.Detection{}, err
	}
	return domain.Detection{Status: domain.DetectionNone}, nil
}

func withinTolerance(amount, target, tolerance *big.Int) bool {
	diff := new(big.Int).Sub(amount, target)
	diff.Abs(diff)
	return diff.Cmp(tolerance) <= 0
}

func matchesAnyDenomination(amount *big.Int, denoms []*big.Int, tolerance *big.Int) bool {
	for _, d := range denoms {
		if withinTolerance(amount, d, tolerance) {
			return true
		}
	}
	return false
}
