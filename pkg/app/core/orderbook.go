package core

import "math/big"

// Level is one price level: the aggregate remaining amount and the FIFO queue
// of resting orders. Queue position is time priority.
type Level struct {
	Price  *big.Int
	Amount *big.Int
	Orders []*Order
}

// LevelView is the aggregate (price, amount) pair exposed in book snapshots.
// Order identities never leave the engine through this type.
type LevelView struct {
	Price  *big.Int
	Amount *big.Int
}

// OrderBook holds the resting orders of one (conditionId, outcomeIndex)
// market: bids sorted descending, asks ascending, so index 0 is always the
// best level.
//
// The book is plain data; the engine serializes all access to it.
type OrderBook struct {
	Key  MarketKey
	Bids []*Level
	Asks []*Level
}

func NewOrderBook(key MarketKey) *OrderBook {
	return &OrderBook{Key: key}
}

// BestBid returns the highest-priced bid level, or nil.
func (b *OrderBook) BestBid() *Level {
	if len(b.Bids) == 0 {
		return nil
	}
	return b.Bids[0]
}

// BestAsk returns the lowest-priced ask level, or nil.
func (b *OrderBook) BestAsk() *Level {
	if len(b.Asks) == 0 {
		return nil
	}
	return b.Asks[0]
}

// OppositeBest returns the best level an incoming order on side s matches
// against.
func (b *OrderBook) OppositeBest(s Side) *Level {
	if s == Buy {
		return b.BestAsk()
	}
	return b.BestBid()
}

// DropOppositeBest removes the top level of the side opposite s. Called after
// matching exhausts that level.
func (b *OrderBook) DropOppositeBest(s Side) {
	if s == Buy {
		b.Asks = b.Asks[1:]
	} else {
		b.Bids = b.Bids[1:]
	}
}

// Insert rests an order at its price on its side, creating the level if
// needed and preserving side ordering and FIFO order within the level.
func (b *OrderBook) Insert(o *Order) {
	side := &b.Asks
	if o.Side == Buy {
		side = &b.Bids
	}

	remaining := o.Remaining()

	// Find the level or the insertion point: bids stop at the first level
	// with a lower price, asks at the first with a higher one.
	at := len(*side)
	for i, level := range *side {
		cmp := level.Price.Cmp(o.Price)
		if cmp == 0 {
			level.Orders = append(level.Orders, o)
			level.Amount.Add(level.Amount, remaining)
			return
		}
		worse := cmp < 0
		if o.Side == Sell {
			worse = cmp > 0
		}
		if worse {
			at = i
			break
		}
	}

	level := &Level{
		Price:  new(big.Int).Set(o.Price),
		Amount: remaining,
		Orders: []*Order{o},
	}
	*side = append(*side, nil)
	copy((*side)[at+1:], (*side)[at:])
	(*side)[at] = level
}

// Remove takes a resting order out of its price-level queue, decrements the
// level's aggregate amount by the order's remaining quantity and prunes the
// level if it is now empty. Returns false if the order is not resting here.
func (b *OrderBook) Remove(o *Order) bool {
	side := &b.Asks
	if o.Side == Buy {
		side = &b.Bids
	}

	for li, level := range *side {
		if level.Price.Cmp(o.Price) != 0 {
			continue
		}
		for oi, resting := range level.Orders {
			if resting.ID != o.ID {
				continue
			}
			level.Orders = append(level.Orders[:oi], level.Orders[oi+1:]...)
			level.Amount.Sub(level.Amount, o.Remaining())
			if level.Amount.Sign() <= 0 || len(level.Orders) == 0 {
				*side = append((*side)[:li], (*side)[li+1:]...)
			}
			return true
		}
		return false
	}
	return false
}

// Depth returns up to depth aggregate (price, amount) levels per side,
// best first. A non-positive depth yields empty sides.
func (b *OrderBook) Depth(depth int) (bids, asks []LevelView) {
	if depth < 0 {
		depth = 0
	}
	take := func(side []*Level) []LevelView {
		n := len(side)
		if depth < n {
			n = depth
		}
		out := make([]LevelView, 0, n)
		for _, level := range side[:n] {
			out = append(out, LevelView{
				Price:  new(big.Int).Set(level.Price),
				Amount: new(big.Int).Set(level.Amount),
			})
		}
		return out
	}
	return take(b.Bids), take(b.Asks)
}
