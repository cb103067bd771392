package service

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
	"github.com/Ortegaa03/vpnchain-router/internal/watcher"
)

type fakeDetector struct {
	detection domain.Detection
	err       error
	reqs      []watcher.PollRequest
}

func (f *fakeDetector) Poll(_ context.Context, req watcher.PollRequest) (domain.Detection, error) {
	f.reqs = append(f.reqs, req)
	return f.detection, f.err
}

const (
	testSender    = "0x1111111111111111111111111111111111111111"
	testRecipient = "0x2222222222222222222222222222222222222222"
	testToken     = "0x3333333333333333333333333333333333333333"
)

func validDetect() DetectRequest {
	return DetectRequest{
		SessionID:    "sess-1",
		Sender:       testSender,
		Recipient:    testRecipient,
		TokenAddress: testToken,
		Amount:       "7.5",
	}
}

func TestDetectMatched(t *testing.T) {
	det := &fakeDetector{detection: domain.Detection{
		Status: domain.DetectionMatched,
		Transfer: &domain.DetectedTransfer{
			TxHash: "0xmatch", Amount: "7.505", AmountWei: big.NewInt(7_505_000),
		},
	}}
	svc := NewPaymentService(det, newTestLogger())

	resp, err := svc.Detect(context.Background(), validDetect())
	require.NoError(t, err)

	assert.True(t, resp.Detected)
	assert.Equal(t, "0xmatch", resp.TxHash)
	assert.Equal(t, "7.505", resp.Amount)
	assert.Nil(t, resp.IncorrectTransfer)

	require.Len(t, det.reqs, 1)
	assert.Equal(t, "sess-1", det.reqs[0].SessionID)
	assert.Equal(t, "7.5", det.reqs[0].Amount)
}

func TestDetectInvalidSurfacesIncorrectTransfer(t *testing.T) {
	det := &fakeDetector{detection: domain.Detection{
		Status: domain.DetectionInvalid,
		Transfer: &domain.DetectedTransfer{
			TxHash: "0xwrong", Amount: "3.25", AmountWei: big.NewInt(3_250_000),
		},
	}}
	svc := NewPaymentService(det, newTestLogger())

	resp, err := svc.Detect(context.Background(), validDetect())
	require.NoError(t, err)

	assert.False(t, resp.Detected)
	require.NotNil(t, resp.IncorrectTransfer)
	assert.Equal(t, "3.25", resp.IncorrectTransfer.Amount)
	assert.Equal(t, "3250000", resp.IncorrectTransfer.AmountWei)
	assert.Equal(t, "0xwrong", resp.IncorrectTransfer.TxHash)
}

func TestDetectExpired(t *testing.T) {
	det := &fakeDetector{detection: domain.Detection{Status: domain.DetectionExpired}}
	svc := NewPaymentService(det, newTestLogger())

	resp, err := svc.Detect(context.Background(), validDetect())
	require.NoError(t, err)
	assert.False(t, resp.Detected)
	assert.True(t, resp.Expired)
}

func TestDetectValidation(t *testing.T) {
	svc := NewPaymentService(&fakeDetector{}, newTestLogger())

	cases := []struct {
		name   string
		mutate func(*DetectRequest)
	}{
		{"missing session", func(r *DetectRequest) { r.SessionID = "" }},
		{"bad sender", func(r *DetectRequest) { r.Sender = "nothex" }},
		{"bad recipient", func(r *DetectRequest) { r.Recipient = "0x12" }},
		{"bad token", func(r *DetectRequest) { r.TokenAddress = "" }},
		{"missing amount", func(r *DetectRequest) { r.Amount = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validDetect()
			tc.mutate(&req)
			_, err := svc.Detect(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}
