package transaction

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/common"

	"github.com/octagonpredict/clob/pkg/app/core"
	"github.com/octagonpredict/clob/pkg/crypto"
)

// OrderPayload is the wire form of a signed order submission. Monetary fields
// travel as decimal strings so no client-side float ever touches them.
type OrderPayload struct {
	Maker        string `json:"maker"`        // 0x address
	ConditionID  string `json:"conditionId"`  // bytes32 hex
	OutcomeIndex int    `json:"outcomeIndex"` // 0-255
	IsBuy        bool   `json:"isBuy"`
	Price        string `json:"price"`  // 1e18 fixed-point
	Amount       string `json:"amount"` // outcome token units
	Nonce        string `json:"nonce"`
	Expiry       int64  `json:"expiry"`    // Unix seconds
	Signature    string `json:"signature"` // 0x-hex, 65 bytes
}

// CancelPayload is the wire form of a signed cancellation.
type CancelPayload struct {
	OrderID   string `json:"orderId"`
	Maker     string `json:"maker"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

var conditionIDRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Validate performs structural validation and returns every violated rule,
// not just the first. It checks no signatures and mutates nothing.
func (p *OrderPayload) Validate(now int64) (bool, []string) {
	var errs []string

	if !common.IsHexAddress(p.Maker) {
		errs = append(errs, "invalid maker address")
	}
	if !conditionIDRe.MatchString(p.ConditionID) {
		errs = append(errs, "invalid conditionId format (must be bytes32)")
	}
	if p.OutcomeIndex < 0 || p.OutcomeIndex > 255 {
		errs = append(errs, "invalid outcomeIndex (must be 0-255)")
	}

	price, ok := new(big.Int).SetString(p.Price, 10)
	if !ok || price.Sign() <= 0 || price.Cmp(core.PriceScale) >= 0 {
		errs = append(errs, "invalid price (must be 0 < price < 1e18)")
	}

	amount, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		errs = append(errs, "invalid amount (must be positive)")
	}

	if _, ok := new(big.Int).SetString(p.Nonce, 10); !ok {
		errs = append(errs, "invalid nonce")
	}

	if p.Expiry <= now {
		errs = append(errs, "order already expired")
	}

	return len(errs) == 0, errs
}

// ToEIP712 converts the payload to the canonical signable structure.
func (p *OrderPayload) ToEIP712() (*crypto.OrderEIP712, error) {
	price, ok := new(big.Int).SetString(p.Price, 10)
	if !ok {
		return nil, fmt.Errorf("invalid price: %s", p.Price)
	}
	amount, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %s", p.Amount)
	}
	nonce, ok := new(big.Int).SetString(p.Nonce, 10)
	if !ok {
		return nil, fmt.Errorf("invalid nonce: %s", p.Nonce)
	}
	if p.OutcomeIndex < 0 || p.OutcomeIndex > 255 {
		return nil, fmt.Errorf("invalid outcomeIndex: %d", p.OutcomeIndex)
	}

	return &crypto.OrderEIP712{
		Maker:        common.HexToAddress(p.Maker),
		ConditionID:  common.HexToHash(p.ConditionID),
		OutcomeIndex: uint8(p.OutcomeIndex),
		IsBuy:        p.IsBuy,
		Price:        price,
		Amount:       amount,
		Nonce:        nonce,
		Expiry:       big.NewInt(p.Expiry),
	}, nil
}

// ToOrder builds the engine's order record. The caller assigns the id;
// filledAmount starts at zero and status is set by the engine on submit.
func (p *OrderPayload) ToOrder(id string, createdAt int64) (*core.Order, error) {
	sig, err := p.ToEIP712()
	if err != nil {
		return nil, err
	}

	return &core.Order{
		ID:           id,
		Maker:        sig.Maker,
		ConditionID:  sig.ConditionID,
		OutcomeIndex: sig.OutcomeIndex,
		Side:         core.SideFromIsBuy(p.IsBuy),
		Price:        sig.Price,
		Amount:       sig.Amount,
		Nonce:        sig.Nonce,
		Expiry:       p.Expiry,
		Signature:    p.Signature,
		CreatedAt:    createdAt,
		FilledAmount: new(big.Int),
	}, nil
}

// ToEIP712 converts the cancel payload to the canonical signable structure.
func (p *CancelPayload) ToEIP712() (*crypto.CancelEIP712, error) {
	nonce, ok := new(big.Int).SetString(p.Nonce, 10)
	if !ok {
		return nil, fmt.Errorf("invalid nonce: %s", p.Nonce)
	}
	if p.OrderID == "" {
		return nil, fmt.Errorf("missing orderId")
	}
	if !common.IsHexAddress(p.Maker) {
		return nil, fmt.Errorf("invalid maker address: %s", p.Maker)
	}

	return &crypto.CancelEIP712{
		OrderID: p.OrderID,
		Maker:   common.HexToAddress(p.Maker),
		Nonce:   nonce,
	}, nil
}
