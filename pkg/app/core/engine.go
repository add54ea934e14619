package core

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/octagonpredict/clob/pkg/util"
)

// MatchingEngine owns all order-book state: the order-by-id index, every
// per-market book, the trade log and the pending-fill queue. It is the only
// component that mutates this state.
//
// Mutating operations (submit, cancel, expiry sweep) take the write lock, so
// price-time-priority outcomes are determined purely by arrival order.
// Read queries take the read lock and never observe a level mid-mutation.
// No engine operation performs I/O; journaling and settlement happen outside.
type MatchingEngine struct {
	mu sync.RWMutex

	books  map[MarketKey]*OrderBook
	orders map[string]*Order // id index, authoritative; orders are never deleted

	trades     []*Trade
	tradesByID map[string]*Trade

	pendingFills []Fill

	clock util.Clock
	log   *zap.SugaredLogger
}

func NewMatchingEngine(clock util.Clock, logger *zap.Logger) *MatchingEngine {
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchingEngine{
		books:      make(map[MarketKey]*OrderBook),
		orders:     make(map[string]*Order),
		tradesByID: make(map[string]*Trade),
		clock:      clock,
		log:        logger.Sugar(),
	}
}

// book returns the market's order book, creating it lazily on first reference.
func (e *MatchingEngine) book(key MarketKey) *OrderBook {
	b, ok := e.books[key]
	if !ok {
		b = NewOrderBook(key)
		e.books[key] = b
	}
	return b
}

// SubmitOrder registers the order, matches it against the opposite side of
// its book under price-time priority, and rests any remainder. Trades execute
// at the resting (maker) order's price. Returns the trades this call produced.
//
// The order must be validated and signature-verified before submission.
func (e *MatchingEngine) SubmitOrder(o *Order) ([]*Trade, error) {
	if o.Price == nil || o.Amount == nil {
		return nil, fmt.Errorf("order %s: missing price or amount", o.ID)
	}

	e.mu.Lock()
	trades, err := e.submitLocked(o)
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}

	e.log.Infow("order_submitted",
		"order_id", o.ID,
		"maker", o.Maker.Hex(),
		"side", o.Side.String(),
		"price", o.Price.String(),
		"amount", o.Amount.String(),
		"status", string(o.Status),
		"trades", len(trades),
	)
	return trades, nil
}

func (e *MatchingEngine) submitLocked(o *Order) ([]*Trade, error) {
	if _, exists := e.orders[o.ID]; exists {
		return nil, fmt.Errorf("order %s already submitted", o.ID)
	}

	if o.FilledAmount == nil {
		o.FilledAmount = new(big.Int)
	}
	if o.CreatedAt == 0 {
		o.CreatedAt = e.clock.Now().UnixMilli()
	}
	o.Status = StatusOpen
	e.orders[o.ID] = o

	book := e.book(o.Market())
	remaining := o.Remaining()
	if remaining.Sign() < 0 {
		panic(fmt.Sprintf("engine: order %s has negative remaining amount", o.ID))
	}

	var trades []*Trade
	now := e.clock.Now().UnixMilli()

	for remaining.Sign() > 0 {
		level := book.OppositeBest(o.Side)
		if level == nil {
			break
		}

		// A buy crosses when its price >= best ask; a sell when <= best bid.
		cmp := o.Price.Cmp(level.Price)
		if (o.Side == Buy && cmp < 0) || (o.Side == Sell && cmp > 0) {
			break
		}

		// Consume resting orders strictly in arrival order.
		for remaining.Sign() > 0 && len(level.Orders) > 0 {
			maker := level.Orders[0]

			makerRemaining := maker.Remaining()
			fillAmount := new(big.Int).Set(remaining)
			if makerRemaining.Cmp(fillAmount) < 0 {
				fillAmount.Set(makerRemaining)
			}
			if fillAmount.Sign() <= 0 {
				panic(fmt.Sprintf("engine: non-positive fill matching %s against %s", o.ID, maker.ID))
			}

			maker.FilledAmount.Add(maker.FilledAmount, fillAmount)
			o.FilledAmount.Add(o.FilledAmount, fillAmount)
			remaining.Sub(remaining, fillAmount)
			level.Amount.Sub(level.Amount, fillAmount)

			if maker.FilledAmount.Cmp(maker.Amount) >= 0 {
				maker.Status = StatusFilled
				level.Orders = level.Orders[1:]
			} else {
				maker.Status = StatusPartial
			}

			trade := &Trade{
				ID:           "trade-" + uuid.NewString(),
				MakerOrderID: maker.ID,
				TakerOrderID: o.ID,
				ConditionID:  o.ConditionID,
				OutcomeIndex: o.OutcomeIndex,
				Price:        new(big.Int).Set(maker.Price), // maker's price, never the taker's
				Amount:       new(big.Int).Set(fillAmount),
				MakerAddress: maker.Maker,
				TakerAddress: o.Maker,
				Timestamp:    now,
			}
			trades = append(trades, trade)
			e.trades = append(e.trades, trade)
			e.tradesByID[trade.ID] = trade

			e.pendingFills = append(e.pendingFills, Fill{
				TradeID:    trade.ID,
				MakerOrder: maker.Snapshot(),
				TakerOrder: o.Snapshot(),
				FillAmount: new(big.Int).Set(fillAmount),
			})
		}

		if level.Amount.Sign() <= 0 || len(level.Orders) == 0 {
			book.DropOppositeBest(o.Side)
		}
	}

	switch {
	case remaining.Sign() == 0:
		// Fully filled; never enters the book.
		o.Status = StatusFilled
	case o.FilledAmount.Sign() > 0:
		o.Status = StatusPartial
		book.Insert(o)
	default:
		o.Status = StatusOpen
		book.Insert(o)
	}

	return trades, nil
}

// CancelOrder removes a resting order from its book and marks it cancelled.
// Returns false without mutation if the order is unknown or already terminal,
// so a second cancel on the same id is a no-op returning false.
func (e *MatchingEngine) CancelOrder(orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.orders[orderID]
	if !ok || o.Status.Terminal() {
		return false
	}

	if !e.book(o.Market()).Remove(o) {
		panic(fmt.Sprintf("engine: active order %s not resting in its book", orderID))
	}
	o.Status = StatusCancelled
	return true
}

// CleanExpiredOrders removes every non-terminal order whose expiry precedes
// now (Unix seconds) from its book, marking it expired (distinct from
// cancelled for audit). Returns the number of orders expired.
func (e *MatchingEngine) CleanExpiredOrders(now int64) int {
	e.mu.Lock()
	cleaned := 0
	for _, o := range e.orders {
		if o.Expiry >= now || o.Status.Terminal() {
			continue
		}
		if !e.book(o.Market()).Remove(o) {
			panic(fmt.Sprintf("engine: active order %s not resting in its book", o.ID))
		}
		o.Status = StatusExpired
		cleaned++
	}
	e.mu.Unlock()

	if cleaned > 0 {
		e.log.Infow("expired_orders_swept", "count", cleaned, "now", now)
	}
	return cleaned
}

// AggregatedBook returns the top depth price levels per side as aggregate
// (price, amount) pairs. Maker identities are never exposed here.
func (e *MatchingEngine) AggregatedBook(key MarketKey, depth int) (bids, asks []LevelView) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, ok := e.books[key]
	if !ok {
		return nil, nil
	}
	return b.Depth(depth)
}

// GetBestPrices returns best bid/ask with spread and floor midpoint.
// All fields are nil when either side of the book is empty.
func (e *MatchingEngine) GetBestPrices(key MarketKey) BestPrices {
	e.mu.RLock()
	defer e.mu.RUnlock()

	b, ok := e.books[key]
	if !ok {
		return BestPrices{}
	}
	bid, ask := b.BestBid(), b.BestAsk()
	if bid == nil || ask == nil {
		return BestPrices{}
	}

	bestBid := new(big.Int).Set(bid.Price)
	bestAsk := new(big.Int).Set(ask.Price)
	return BestPrices{
		BestBid:  bestBid,
		BestAsk:  bestAsk,
		Spread:   new(big.Int).Sub(bestAsk, bestBid),
		Midpoint: new(big.Int).Quo(new(big.Int).Add(bestBid, bestAsk), big.NewInt(2)),
	}
}

// GetOrder returns a snapshot of the order with the given id.
func (e *MatchingEngine) GetOrder(orderID string) (Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	o, ok := e.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return o.Snapshot(), true
}

// OrdersByMaker returns snapshots of the maker's active (open or partial)
// orders. Terminal orders, expired ones included, are excluded.
func (e *MatchingEngine) OrdersByMaker(maker common.Address) []Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []Order
	for _, o := range e.orders {
		if o.Maker == maker && !o.Status.Terminal() {
			out = append(out, o.Snapshot())
		}
	}
	return out
}

// RecentTrades returns up to limit trades for the market, newest first.
func (e *MatchingEngine) RecentTrades(key MarketKey, limit int) []Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Trade, 0, limit)
	for i := len(e.trades) - 1; i >= 0 && len(out) < limit; i-- {
		t := e.trades[i]
		if t.ConditionID == key.ConditionID && t.OutcomeIndex == key.OutcomeIndex {
			out = append(out, *t)
		}
	}
	return out
}

// PendingFills returns a copy of the fill queue awaiting batch settlement.
func (e *MatchingEngine) PendingFills() []Fill {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Fill, len(e.pendingFills))
	copy(out, e.pendingFills)
	return out
}

// ClearPendingFills marks the given trades settled and removes from the queue
// exactly the fills whose trade is now confirmed settled. Fills that cannot
// be correlated to a settled trade stay queued; re-confirming an already
// settled trade is a no-op. Returns the number of fills removed.
func (e *MatchingEngine) ClearPendingFills(settledTradeIDs []string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range settledTradeIDs {
		if t, ok := e.tradesByID[id]; ok && !t.Settled {
			t.Settled = true
		}
	}

	kept := e.pendingFills[:0]
	removed := 0
	for _, f := range e.pendingFills {
		if t, ok := e.tradesByID[f.TradeID]; ok && t.Settled {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	e.pendingFills = kept
	return removed
}
