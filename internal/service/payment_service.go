// Package service coordinates the router's use cases: transfer detection,
// settlement execution with record keeping, route progress reads, and the
// cold-storage archiver.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
	"github.com/Ortegaa03/vpnchain-router/internal/watcher"
)

// TransferDetector classifies inbound transfers for a watch session.
// watcher.Detector implements it.
type TransferDetector interface {
	Poll(ctx context.Context, req watcher.PollRequest) (domain.Detection, error)
}

// PaymentService answers detection polls from the presentation layer.
type PaymentService struct {
	detector TransferDetector
	logger   *slog.Logger
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(detector TransferDetector, logger *slog.Logger) *PaymentService {
	return &PaymentService{detector: detector, logger: logger}
}

// DetectRequest is one poll for an expected inbound transfer.
type DetectRequest struct {
	SessionID     string `json:"sessionId"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	TokenAddress  string `json:"tokenAddress"`
	Amount        string `json:"amount"`
	TokenDecimals uint8  `json:"tokenDecimals"`
}

// IncorrectTransfer describes an inbound transfer with an unexpected amount,
// surfaced so the caller can drive the refund flow.
type IncorrectTransfer struct {
	Amount    string `json:"amount"`
	AmountWei string `json:"amountWei"`
	TxHash    string `json:"txHash"`
}

// DetectResponse is the poll outcome.
type DetectResponse struct {
	Detected          bool               `json:"detected"`
	Expired           bool               `json:"expired,omitempty"`
	TxHash            string             `json:"txHash,omitempty"`
	Amount            string             `json:"amount,omitempty"`
	IncorrectTransfer *IncorrectTransfer `json:"incorrectTransfer,omitempty"`
}

// Detect validates the request and runs one detector poll.
func (s *PaymentService) Detect(ctx context.Context, req DetectRequest) (DetectResponse, error) {
	if req.SessionID == "" {
		return DetectResponse{}, fmt.Errorf("%w: sessionId is required", domain.ErrValidation)
	}
	for _, f := range []struct{ name, value string }{
		{"sender", req.Sender},
		{"recipient", req.Recipient},
		{"tokenAddress", req.TokenAddress},
	} {
		if !common.IsHexAddress(f.value) {
			return DetectResponse{}, fmt.Errorf("%w: malformed %s %q", domain.ErrValidation, f.name, f.value)
		}
	}
	if req.Amount == "" {
		return DetectResponse{}, fmt.Errorf("%w: amount is required", domain.ErrValidation)
	}

	det, err := s.detector.Poll(ctx, watcher.PollRequest{
		SessionID:     req.SessionID,
		Token:         common.HexToAddress(req.TokenAddress),
		Sender:        common.HexToAddress(req.Sender),
		Recipient:     common.HexToAddress(req.Recipient),
		Amount:        req.Amount,
		TokenDecimals: req.TokenDecimals,
	})
	if err != nil {
		return DetectResponse{}, err
	}

	switch det.Status {
	case domain.DetectionMatched:
		return DetectResponse{
			Detected: true,
			TxHash:   det.Transfer.TxHash,
			Amount:   det.Transfer.Amount,
		}, nil
	case domain.DetectionInvalid:
		return DetectResponse{
			Detected: false,
			IncorrectTransfer: &IncorrectTransfer{
				Amount:    det.Transfer.Amount,
				AmountWei: det.Transfer.AmountWei.String(),
				TxHash:    det.Transfer.TxHash,
			},
		}, nil
	case domain.DetectionExpired:
		return DetectResponse{Detected: false, Expired: true}, nil
	default:
		return DetectResponse{Detected: false}, nil
	}
}
