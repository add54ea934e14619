package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain is the typed-data domain separator. It scopes every signature
// to one protocol deployment so orders cannot replay across chains or
// exchange contracts.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// OrderEIP712 is the canonical signable order: exactly the fields a wallet
// signs, and nothing the engine assigns afterwards (id, createdAt,
// filledAmount, status stay out of the hash).
type OrderEIP712 struct {
	Maker        common.Address
	ConditionID  common.Hash // market condition identifier (bytes32)
	OutcomeIndex uint8
	IsBuy        bool
	Price        *big.Int // 1e18 fixed-point implied probability
	Amount       *big.Int // outcome token units
	Nonce        *big.Int
	Expiry       *big.Int // Unix seconds
}

// CancelEIP712 is the canonical signable cancellation. It uses a distinct
// primary type ("CancelOrder") so an order signature can never stand in for a
// cancel signature or vice versa.
type CancelEIP712 struct {
	OrderID string
	Maker   common.Address
	Nonce   *big.Int
}

// EIP712Signer hashes and verifies typed data under a fixed domain.
type EIP712Signer struct {
	domain EIP712Domain
}

func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

func (e *EIP712Signer) Domain() EIP712Domain { return e.domain }

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": []apitypes.Type{
		{Name: "maker", Type: "address"},
		{Name: "conditionId", Type: "bytes32"},
		{Name: "outcomeIndex", Type: "uint256"},
		{Name: "isBuy", Type: "bool"},
		{Name: "price", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "expiry", Type: "uint256"},
	},
}

var cancelTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"CancelOrder": []apitypes.Type{
		{Name: "orderId", Type: "string"},
		{Name: "maker", Type: "address"},
		{Name: "nonce", Type: "uint256"},
	},
}

func (e *EIP712Signer) typedDomain() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              e.domain.Name,
		Version:           e.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
		VerifyingContract: e.domain.VerifyingContract.Hex(),
	}
}

func orderMessage(order *OrderEIP712) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"maker":        order.Maker.Hex(),
		"conditionId":  order.ConditionID.Hex(),
		"outcomeIndex": fmt.Sprintf("%d", order.OutcomeIndex),
		"isBuy":        order.IsBuy,
		"price":        order.Price.String(),
		"amount":       order.Amount.String(),
		"nonce":        order.Nonce.String(),
		"expiry":       order.Expiry.String(),
	}
}

// HashOrder computes the EIP-712 digest of an order. Two logically identical
// orders always hash identically: the encoding is fixed by the type table, not
// by field arrival order.
func (e *EIP712Signer) HashOrder(order *OrderEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain:      e.typedDomain(),
		Message:     orderMessage(order),
	}
	return e.digest(typedData)
}

// HashCancel computes the EIP-712 digest of a cancellation request.
func (e *EIP712Signer) HashCancel(cancel *CancelEIP712) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       cancelTypes,
		PrimaryType: "CancelOrder",
		Domain:      e.typedDomain(),
		Message: apitypes.TypedDataMessage{
			"orderId": cancel.OrderID,
			"maker":   cancel.Maker.Hex(),
			"nonce":   cancel.Nonce.String(),
		},
	}
	return e.digest(typedData)
}

// digest computes keccak256("\x19\x01" || domainSeparator || structHash).
func (e *EIP712Signer) digest(typedData apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(structHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

// SignOrder signs an order with the given key.
func (e *EIP712Signer) SignOrder(signer *Signer, order *OrderEIP712) ([]byte, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return nil, fmt.Errorf("failed to hash order: %w", err)
	}
	return signer.Sign(hash)
}

// SignCancel signs a cancellation request with the given key.
func (e *EIP712Signer) SignCancel(signer *Signer, cancel *CancelEIP712) ([]byte, error) {
	hash, err := e.HashCancel(cancel)
	if err != nil {
		return nil, fmt.Errorf("failed to hash cancel: %w", err)
	}
	return signer.Sign(hash)
}

// VerifyOrderSignature reports whether signature recovers to order.Maker.
func (e *EIP712Signer) VerifyOrderSignature(order *OrderEIP712, signature []byte) (bool, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return false, fmt.Errorf("failed to hash order: %w", err)
	}

	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}

	// common.Address equality is byte equality, which is the case-insensitive
	// comparison of the hex forms.
	return recovered == order.Maker, nil
}

// VerifyCancelSignature reports whether signature recovers to cancel.Maker.
func (e *EIP712Signer) VerifyCancelSignature(cancel *CancelEIP712, signature []byte) (bool, error) {
	hash, err := e.HashCancel(cancel)
	if err != nil {
		return false, fmt.Errorf("failed to hash cancel: %w", err)
	}

	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}

	return recovered == cancel.Maker, nil
}

// RecoverOrderSigner returns the address that signed an order.
func (e *EIP712Signer) RecoverOrderSigner(order *OrderEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashOrder(order)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash order: %w", err)
	}
	return RecoverAddress(hash, signature)
}

// OrderToJSON renders the eth_signTypedData_v4 payload a wallet needs to sign
// this order.
func (e *EIP712Signer) OrderToJSON(order *OrderEIP712) (string, error) {
	typedData := map[string]interface{}{
		"types":       orderTypes,
		"primaryType": "Order",
		"domain": map[string]interface{}{
			"name":              e.domain.Name,
			"version":           e.domain.Version,
			"chainId":           e.domain.ChainID.String(),
			"verifyingContract": e.domain.VerifyingContract.Hex(),
		},
		"message": orderMessage(order),
	}

	jsonBytes, err := json.MarshalIndent(typedData, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return string(jsonBytes), nil
}
