package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// SideFromIsBuy maps the wire-level isBuy flag to a Side.
func SideFromIsBuy(isBuy bool) Side {
	if isBuy {
		return Buy
	}
	return Sell
}

type OrderStatus string

const (
	StatusOpen      OrderStatus = "open"
	StatusPartial   OrderStatus = "partial"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusExpired   OrderStatus = "expired"
)

// Terminal reports whether no further mutation may apply to an order in this
// status. Status transitions are monotonic: open -> partial* -> terminal.
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusExpired
}

// PriceScale is the fixed-point denominator: a price of 1e18 is an implied
// probability of 100%. Valid order prices are strictly between 0 and PriceScale.
var PriceScale = big.NewInt(1_000_000_000_000_000_000)

// MarketKey identifies one tradable outcome token: a condition and the index
// of one of its outcomes. Each key owns exactly one order book.
type MarketKey struct {
	ConditionID  common.Hash
	OutcomeIndex uint8
}

// Order is the engine's canonical order record. The copy held in the id index
// is the single source of truth; price-level queues reference the same struct.
type Order struct {
	ID           string
	Maker        common.Address
	ConditionID  common.Hash
	OutcomeIndex uint8
	Side         Side
	Price        *big.Int // 1e18 fixed-point, 0 < Price < PriceScale
	Amount       *big.Int // outcome token units, > 0
	Nonce        *big.Int
	Expiry       int64  // Unix seconds
	Signature    string // 0x-prefixed 65-byte hex
	CreatedAt    int64  // Unix milliseconds
	FilledAmount *big.Int
	Status       OrderStatus
}

func (o *Order) Market() MarketKey {
	return MarketKey{ConditionID: o.ConditionID, OutcomeIndex: o.OutcomeIndex}
}

// Remaining returns Amount - FilledAmount as a fresh big.Int.
func (o *Order) Remaining() *big.Int {
	return new(big.Int).Sub(o.Amount, o.FilledAmount)
}

// Snapshot returns a deep copy of the order, detached from the live record.
// Fills carry snapshots so the settlement batch sees the orders as they were
// at fill time.
func (o *Order) Snapshot() Order {
	cp := *o
	cp.Price = new(big.Int).Set(o.Price)
	cp.Amount = new(big.Int).Set(o.Amount)
	cp.FilledAmount = new(big.Int).Set(o.FilledAmount)
	if o.Nonce != nil {
		cp.Nonce = new(big.Int).Set(o.Nonce)
	}
	return cp
}

// Trade records one match. Price is always the resting (maker) order's price.
// Settled flips false -> true exactly once when the settlement batch confirms.
type Trade struct {
	ID           string
	MakerOrderID string
	TakerOrderID string
	ConditionID  common.Hash
	OutcomeIndex uint8
	Price        *big.Int
	Amount       *big.Int
	MakerAddress common.Address
	TakerAddress common.Address
	Timestamp    int64 // Unix milliseconds
	Settled      bool
}

// Fill pairs maker/taker order snapshots with the filled amount, queued for
// external batch settlement. TradeID ties the fill to its trade so settlement
// confirmation removes exactly the confirmed fills.
type Fill struct {
	TradeID    string
	MakerOrder Order
	TakerOrder Order
	FillAmount *big.Int
}

// BestPrices is the top-of-book view. All fields are nil when either side of
// the book is empty.
type BestPrices struct {
	BestBid  *big.Int
	BestAsk  *big.Int
	Spread   *big.Int // BestAsk - BestBid
	Midpoint *big.Int // (BestBid + BestAsk) / 2, floor division
}
