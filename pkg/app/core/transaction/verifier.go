package transaction

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/octagonpredict/clob/pkg/crypto"
)

var (
	// ErrNotConfigured is returned while no signing domain has been set.
	// Verification fails closed: nothing verifies until configuration.
	ErrNotConfigured = errors.New("signing domain not configured")

	// ErrAlreadyConfigured guards against re-pointing live signatures at a
	// different domain mid-flight.
	ErrAlreadyConfigured = errors.New("signing domain already configured")
)

// Verifier checks detached EIP-712 signatures on order and cancel payloads
// against one process-wide signing domain. The domain is set exactly once,
// typically with the exchange contract address after deployment.
type Verifier struct {
	mu     sync.RWMutex
	signer *crypto.EIP712Signer
}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// Configure sets the signing domain. A second call fails.
func (v *Verifier) Configure(domain crypto.EIP712Domain) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.signer != nil {
		return ErrAlreadyConfigured
	}
	v.signer = crypto.NewEIP712Signer(domain)
	return nil
}

// Configured reports whether a signing domain has been set.
func (v *Verifier) Configured() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.signer != nil
}

func (v *Verifier) current() (*crypto.EIP712Signer, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.signer == nil {
		return nil, ErrNotConfigured
	}
	return v.signer, nil
}

// VerifyOrder recovers the signer of the order payload and reports whether it
// equals the claimed maker. Any failure yields false, never a partial trust.
func (v *Verifier) VerifyOrder(p *OrderPayload) (bool, error) {
	signer, err := v.current()
	if err != nil {
		return false, err
	}

	order, err := p.ToEIP712()
	if err != nil {
		return false, fmt.Errorf("invalid order payload: %w", err)
	}

	sig, err := decodeSignature(p.Signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature: %w", err)
	}

	return signer.VerifyOrderSignature(order, sig)
}

// VerifyCancel recovers the signer of the cancel payload and reports whether
// it equals the claimed maker. Cancel signatures use a distinct typed
// structure, so an order signature never verifies here.
func (v *Verifier) VerifyCancel(p *CancelPayload) (bool, error) {
	signer, err := v.current()
	if err != nil {
		return false, err
	}

	cancel, err := p.ToEIP712()
	if err != nil {
		return false, fmt.Errorf("invalid cancel payload: %w", err)
	}

	sig, err := decodeSignature(p.Signature)
	if err != nil {
		return false, fmt.Errorf("invalid signature: %w", err)
	}

	return signer.VerifyCancelSignature(cancel, sig)
}

// OrderHash returns the deterministic EIP-712 digest of the payload's signed
// fields. Logically identical orders always hash identically.
func (v *Verifier) OrderHash(p *OrderPayload) (common.Hash, error) {
	signer, err := v.current()
	if err != nil {
		return common.Hash{}, err
	}

	order, err := p.ToEIP712()
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid order payload: %w", err)
	}

	digest, err := signer.HashOrder(order)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(digest), nil
}

// SigningPayload renders the eth_signTypedData_v4 JSON a wallet signs for
// this order.
func (v *Verifier) SigningPayload(p *OrderPayload) (string, error) {
	signer, err := v.current()
	if err != nil {
		return "", err
	}

	order, err := p.ToEIP712()
	if err != nil {
		return "", fmt.Errorf("invalid order payload: %w", err)
	}
	return signer.OrderToJSON(order)
}

// decodeSignature decodes a hex signature (with or without 0x prefix) and
// requires the 65-byte [R || S || V] form.
func decodeSignature(sig string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(sig, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}
	if len(raw) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(raw))
	}
	return raw, nil
}
