package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Ortegaa03/vpnchain-router/internal/domain"
)

// Signer submits transactions signed with the single shared hot wallet.
// Sends are serialized behind a mutex and the nonce is fetched fresh per
// transaction, so causally ordered writes (approve before swap, swap before
// route) never race on the nonce.
type Signer struct {
	client  *Client
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int

	mu sync.Mutex
}

// NewSigner builds a Signer from a hex private key (0x prefix optional).
func NewSigner(client *Client, privateKeyHex string, chainID int64) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("chain: private key: %w", domain.ErrConfiguration)
	}
	if len(privateKeyHex) > 2 && privateKeyHex[:2] == "0x" {
		privateKeyHex = privateKeyHex[2:]
	}
	key, err := gethcrypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("chain: parse private key: %w", err)
	}
	return &Signer{
		client:  client,
		key:     key,
		address: gethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
	}, nil
}

// Address returns the wallet address.
func (s *Signer) Address() common.Address {
	return s.address
}

// Send signs and submits a transaction to the given contract with the
// computed gas limit and price, returning the transaction hash.
func (s *Signer) Send(ctx context.Context, to common.Address, data []byte, gasLimit uint64, gasPrice *big.Int) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.client.eth.PendingNonceAt(ctx, s.address)
	if err != nil {
		return common.Hash{}, rpcErr("pending nonce", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: sign tx: %w", err)
	}
	if err := s.client.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("chain: send tx: %w", err)
	}
	return signed.Hash(), nil
}
