package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
	"github.com/Ortegaa03/vpnchain-router/internal/executor"
)

// walletLockKey serializes all settlements through the single signing wallet.
const walletLockKey = "settlement:wallet"

// SignalChannel is the pub/sub channel settlement lifecycle events go out on.
const SignalChannel = "settlements"

// Notifier pushes operational alerts. notify.Notifier implements it.
type Notifier interface {
	Notify(ctx context.Context, event, message string)
}

// Settler executes settlements on chain. executor.Executor implements it.
type Settler interface {
	Direct(ctx context.Context, req executor.DirectRequest) (executor.DirectResult, *domain.SettlementAttempt, error)
	Swap(ctx context.Context, req executor.SwapRequest) (executor.SwapResult, *domain.SettlementAttempt, error)
	Refund(ctx context.Context, req executor.RefundRequest) (executor.RefundResult, *domain.SettlementAttempt, error)
}

// SettlementService wraps the executor with record keeping: every request
// gets a TransactionRecord walked pending → processing → completed|failed,
// lifecycle events are published for push delivery, and financial failures
// page the operators.
type SettlementService struct {
	exec     Settler
	records  domain.TransactionStore
	locks    domain.LockManager
	bus      domain.SignalBus
	notifier Notifier
	// SupportEmail is surfaced to users whenever a refund-eligible action
	// failed, so money never goes missing without a contact path.
	supportEmail string
	lockTTL      time.Duration
	logger       *slog.Logger
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(
	exec Settler,
	records domain.TransactionStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	notifier Notifier,
	supportEmail string,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		exec:         exec,
		records:      records,
		locks:        locks,
		bus:          bus,
		notifier:     notifier,
		supportEmail: supportEmail,
		lockTTL:      10 * time.Minute,
		logger:       logger,
	}
}

// SendRequest settles already-held tokens to a recipient.
type SendRequest struct {
	TransactionID string `json:"transactionId"`
	SessionID     string `json:"sessionId"`
	Amount        string `json:"amount"`
	Recipient     string `json:"recipient"`
	TransferMode  string `json:"transferMode"`
	TokenAddress  string `json:"tokenAddress"`
	TokenDecimals uint8  `json:"tokenDecimals"`
	TokenSymbol   string `json:"tokenSymbol"`
}

// SendResponse reports a completed direct settlement.
type SendResponse struct {
	Success      bool   `json:"success"`
	TxHash       string `json:"txHash"`
	BlockNumber  uint64 `json:"blockNumber"`
	GasUsed      uint64 `json:"gasUsed"`
	TransferID   string `json:"transferId"`
	Mode         string `json:"mode"`
	SupportEmail string `json:"supportEmail,omitempty"`
}

// Send runs a direct settlement under the wallet lock.
func (s *SettlementService) Send(ctx context.Context, req SendRequest) (SendResponse, error) {
	recID := s.openRecord(ctx, req.TransactionID, domain.TransactionRecord{
		Kind:         "send",
		SessionID:    req.SessionID,
		Recipient:    req.Recipient,
		TokenAddress: req.TokenAddress,
		TokenSymbol:  req.TokenSymbol,
		Amount:       req.Amount,
		Mode:         req.TransferMode,
	})

	unlock, err := s.locks.Acquire(ctx, walletLockKey, s.lockTTL)
	if err != nil {
		s.closeRecord(ctx, recID, domain.TxStatusFailed, domain.TransactionUpdate{
			FailureKind: string(domain.ClassifyFailure(err)), Error: err.Error(),
		})
		return SendResponse{SupportEmail: s.supportEmail}, err
	}
	defer unlock()

	s.markProcessing(ctx, recID)

	res, attempt, err := s.exec.Direct(ctx, executor.DirectRequest{
		Amount:        req.Amount,
		Recipient:     req.Recipient,
		Mode:          domain.TransferMode(req.TransferMode),
		TokenAddress:  req.TokenAddress,
		TokenDecimals: req.TokenDecimals,
		TokenSymbol:   req.TokenSymbol,
	})
	if err != nil {
		s.settleFailed(ctx, recID, "send", attempt, err)
		return SendResponse{SupportEmail: s.supportEmail}, err
	}

	s.closeRecord(ctx, recID, domain.TxStatusCompleted, domain.TransactionUpdate{
		TxHash: res.TxHash, RouteID: res.RouteID,
	})
	s.publish(ctx, recID, "send", domain.TxStatusCompleted, res.TxHash)

	return SendResponse{
		Success:     true,
		TxHash:      res.TxHash,
		BlockNumber: res.BlockNumber,
		GasUsed:     res.GasUsed,
		TransferID:  res.RouteID,
		Mode:        string(res.Mode),
	}, nil
}

// SwapRequest converts held tokens and routes the proceeds.
type SwapRequest struct {
	TransactionID  string `json:"transactionId"`
	SessionID      string `json:"sessionId"`
	AmountIn       string `json:"amountIn"`
	TokenOut       string `json:"tokenOut"`
	Recipient      string `json:"recipient"`
	TokenDecimals  uint8  `json:"tokenDecimals"`
	TokenSymbol    string `json:"tokenSymbol"`
	FailedAttempts int    `json:"failedAttempts"`
}

// SwapResponse reports a swap settlement, or the compensating refund when
// the swap leg failed.
type SwapResponse struct {
	Success            bool     `json:"success"`
	SwapMethod         string   `json:"swapMethod,omitempty"`
	SwapPath           []string `json:"swapPath,omitempty"`
	TokensReceived     string   `json:"tokensReceived,omitempty"`
	RouteID            string   `json:"routeId,omitempty"`
	SwapTxHash         string   `json:"swapTxHash,omitempty"`
	RouteTxHash        string   `json:"routeTxHash,omitempty"`
	Refunded           bool     `json:"refunded,omitempty"`
	RefundTxHash       string   `json:"refundTxHash,omitempty"`
	RefundAmount       string   `json:"refundAmount,omitempty"`
	CommissionRetained string   `json:"commissionRetained,omitempty"`
	SupportEmail       string   `json:"supportEmail,omitempty"`
}

// Swap runs a swap settlement under the wallet lock.
func (s *SettlementService) Swap(ctx context.Context, req SwapRequest) (SwapResponse, error) {
	recID := s.openRecord(ctx, req.TransactionID, domain.TransactionRecord{
		Kind:        "swap",
		SessionID:   req.SessionID,
		Recipient:   req.Recipient,
		TokenSymbol: req.TokenSymbol,
		Amount:      req.AmountIn,
	})

	unlock, err := s.locks.Acquire(ctx, walletLockKey, s.lockTTL)
	if err != nil {
		s.closeRecord(ctx, recID, domain.TxStatusFailed, domain.TransactionUpdate{
			FailureKind: string(domain.ClassifyFailure(err)), Error: err.Error(),
		})
		return SwapResponse{SupportEmail: s.supportEmail}, err
	}
	defer unlock()

	s.markProcessing(ctx, recID)

	res, attempt, err := s.exec.Swap(ctx, executor.SwapRequest{
		AmountIn:       req.AmountIn,
		TokenOut:       req.TokenOut,
		Recipient:      req.Recipient,
		TokenDecimals:  req.TokenDecimals,
		TokenSymbol:    req.TokenSymbol,
		FailedAttempts: req.FailedAttempts,
	})
	if err != nil {
		if res.Refunded {
			// The swap failed but the compensating refund went through. The
			// record is terminal-failed with the refund hash attached.
			upd := domain.TransactionUpdate{TxHash: res.RefundTxHash, Error: err.Error()}
			if attempt != nil {
				upd.FailureKind = string(attempt.Failure)
			}
			s.closeRecord(ctx, recID, domain.TxStatusFailed, upd)
			s.publish(ctx, recID, "swap", domain.TxStatusFailed, res.RefundTxHash)
			if s.notifier != nil {
				s.notifier.Notify(ctx, "settlement_failed",
					fmt.Sprintf("swap %s failed and was refunded (%s): %v", recID, res.RefundAmount, err))
			}
			return SwapResponse{
				Refunded:           true,
				RefundTxHash:       res.RefundTxHash,
				RefundAmount:       res.RefundAmount,
				CommissionRetained: res.CommissionRetained,
				SupportEmail:       s.supportEmail,
			}, nil
		}
		s.settleFailed(ctx, recID, "swap", attempt, err)
		return SwapResponse{SupportEmail: s.supportEmail}, err
	}

	s.closeRecord(ctx, recID, domain.TxStatusCompleted, domain.TransactionUpdate{
		TxHash: res.RouteTxHash, RouteID: res.RouteID,
	})
	s.publish(ctx, recID, "swap", domain.TxStatusCompleted, res.RouteTxHash)

	return SwapResponse{
		Success:            true,
		SwapMethod:         res.SwapMethod,
		SwapPath:           res.SwapPath,
		TokensReceived:     res.TokensReceived,
		RouteID:            res.RouteID,
		SwapTxHash:         res.SwapTxHash,
		RouteTxHash:        res.RouteTxHash,
		CommissionRetained: res.CommissionRetained,
	}, nil
}

// RefundRequest returns held tokens after a failed flow.
type RefundRequest struct {
	TransactionID  string `json:"transactionId"`
	SessionID      string `json:"sessionId"`
	Amount         string `json:"amount"`
	OriginalSender string `json:"originalSender"`
	FailedAttempts int    `json:"failedAttempts"`
}

// RefundResponse reports a completed refund.
type RefundResponse struct {
	Success            bool   `json:"success"`
	TxHash             string `json:"txHash"`
	BlockNumber        uint64 `json:"blockNumber"`
	GasUsed            uint64 `json:"gasUsed"`
	RefundAmount       string `json:"refundAmount"`
	CommissionRetained string `json:"commissionRetained"`
	SupportEmail       string `json:"supportEmail,omitempty"`
}

// Refund runs a refund under the wallet lock.
func (s *SettlementService) Refund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	recID := s.openRecord(ctx, req.TransactionID, domain.TransactionRecord{
		Kind:      "refund",
		SessionID: req.SessionID,
		Sender:    req.OriginalSender,
		Amount:    req.Amount,
	})

	unlock, err := s.locks.Acquire(ctx, walletLockKey, s.lockTTL)
	if err != nil {
		s.closeRecord(ctx, recID, domain.TxStatusFailed, domain.TransactionUpdate{
			FailureKind: string(domain.ClassifyFailure(err)), Error: err.Error(),
		})
		return RefundResponse{SupportEmail: s.supportEmail}, err
	}
	defer unlock()

	s.markProcessing(ctx, recID)

	res, attempt, err := s.exec.Refund(ctx, executor.RefundRequest{
		Amount:         req.Amount,
		OriginalSender: req.OriginalSender,
		FailedAttempts: req.FailedAttempts,
	})
	if err != nil {
		s.settleFailed(ctx, recID, "refund", attempt, err)
		return RefundResponse{SupportEmail: s.supportEmail}, err
	}

	s.closeRecord(ctx, recID, domain.TxStatusCompleted, domain.TransactionUpdate{TxHash: res.TxHash})
	s.publish(ctx, recID, "refund", domain.TxStatusCompleted, res.TxHash)

	return RefundResponse{
		Success:            true,
		TxHash:             res.TxHash,
		BlockNumber:        res.BlockNumber,
		GasUsed:            res.GasUsed,
		RefundAmount:       res.Amount,
		CommissionRetained: res.CommissionRetained,
	}, nil
}

// Record returns one transaction record by id.
func (s *SettlementService) Record(ctx context.Context, id string) (domain.TransactionRecord, error) {
	return s.records.GetByID(ctx, id)
}

// RecentRecords lists records newest first.
func (s *SettlementService) RecentRecords(ctx context.Context, opts domain.ListOpts) ([]domain.TransactionRecord, error) {
	return s.records.ListRecent(ctx, opts)
}

// openRecord creates the pending record, minting an id when the client did
// not supply one. Record-keeping failures are logged, never fatal: the
// settlement itself takes priority.
func (s *SettlementService) openRecord(ctx context.Context, id string, rec domain.TransactionRecord) string {
	if id == "" {
		id = uuid.NewString()
	}
	rec.ID = id
	rec.Status = domain.TxStatusPending
	if err := s.records.Create(ctx, rec); err != nil {
		s.logger.ErrorContext(ctx, "creating transaction record failed",
			slog.String("id", id), slog.Any("error", err))
	}
	return id
}

func (s *SettlementService) markProcessing(ctx context.Context, id string) {
	if err := s.records.UpdateStatus(ctx, id, domain.TxStatusProcessing, domain.TransactionUpdate{}); err != nil {
		s.logger.ErrorContext(ctx, "updating transaction record failed",
			slog.String("id", id), slog.Any("error", err))
	}
}

func (s *SettlementService) closeRecord(ctx context.Context, id, status string, upd domain.TransactionUpdate) {
	if err := s.records.UpdateStatus(ctx, id, status, upd); err != nil {
		s.logger.ErrorContext(ctx, "closing transaction record failed",
			slog.String("id", id), slog.Any("error", err))
	}
}

// settleFailed closes the record, publishes the failure, and pages the
// operators: a failed financial action always needs eyes on it.
func (s *SettlementService) settleFailed(ctx context.Context, id, kind string, attempt *domain.SettlementAttempt, err error) {
	upd := domain.TransactionUpdate{Error: err.Error()}
	if attempt != nil {
		upd.TxHash = attempt.TxHash
		upd.FailureKind = string(attempt.Failure)
	}
	s.closeRecord(ctx, id, domain.TxStatusFailed, upd)
	s.publish(ctx, id, kind, domain.TxStatusFailed, upd.TxHash)

	if s.notifier != nil {
		event := "settlement_failed"
		if kind == "refund" {
			event = "refund_failed"
		}
		s.notifier.Notify(ctx, event, fmt.Sprintf("%s %s failed: %v", kind, id, err))
	}
}

type settlementEvent struct {
	TransactionID string `json:"transactionId"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	TxHash        string `json:"txHash,omitempty"`
	Timestamp     int64  `json:"timestamp"`
}

func (s *SettlementService) publish(ctx context.Context, id, kind, status, txHash string) {
	if s.bus == nil {
		return
	}
	ev := settlementEvent{
		TransactionID: id,
		Kind:          kind,
		Status:        status,
		TxHash:        txHash,
		Timestamp:     time.Now().Unix(),
	}
	if err := s.bus.Publish(ctx, SignalChannel, ev); err != nil {
		s.logger.WarnContext(ctx, "publishing settlement event failed",
			slog.String("id", id), slog.Any("error", err))
	}
}
