package api

// API request/response types for REST endpoints and WebSocket messages.
// Monetary values are decimal strings end to end.

// ==============================
// REST Response Types
// ==============================

// PriceLevel is an aggregate (price, amount) pair. Order identities never
// appear in book views.
type PriceLevel struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// OrderBookResponse is the aggregated book for one market outcome.
type OrderBookResponse struct {
	ConditionID  string       `json:"conditionId"`
	OutcomeIndex int          `json:"outcomeIndex"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	Spread       *string      `json:"spread"`
	Midpoint     *string      `json:"midpoint"`
}

// BestPricesResponse is the quick top-of-book view. All pointers are null
// when either side of the book is empty.
type BestPricesResponse struct {
	ConditionID   string   `json:"conditionId"`
	OutcomeIndex  int      `json:"outcomeIndex"`
	BestBid       *string  `json:"bestBid"`
	BestAsk       *string  `json:"bestAsk"`
	Spread        *string  `json:"spread"`
	Midpoint      *string  `json:"midpoint"`
	BidPercentage *float64 `json:"bidPercentage"`
	AskPercentage *float64 `json:"askPercentage"`
}

// TradeInfo is one executed trade.
type TradeInfo struct {
	ID              string  `json:"id"`
	Price           string  `json:"price"`
	PricePercentage float64 `json:"pricePercentage"`
	Amount          string  `json:"amount"`
	Timestamp       int64   `json:"timestamp"`
	Settled         bool    `json:"settled"`
}

// SubmitOrderResponse reports the outcome of an order submission.
type SubmitOrderResponse struct {
	OrderID      string      `json:"orderId"`
	Status       string      `json:"status"`
	FilledAmount string      `json:"filledAmount"`
	Trades       []TradeInfo `json:"trades"`
}

// OrderInfo is one order as seen by its maker.
type OrderInfo struct {
	ID              string  `json:"id"`
	ConditionID     string  `json:"conditionId"`
	OutcomeIndex    int     `json:"outcomeIndex"`
	IsBuy           bool    `json:"isBuy"`
	Price           string  `json:"price"`
	PricePercentage float64 `json:"pricePercentage"`
	Amount          string  `json:"amount"`
	FilledAmount    string  `json:"filledAmount"`
	Status          string  `json:"status"`
	Expiry          int64   `json:"expiry"`
	CreatedAt       int64   `json:"createdAt"`
}

// MakerOrdersResponse lists a maker's active orders.
type MakerOrdersResponse struct {
	Maker  string      `json:"maker"`
	Orders []OrderInfo `json:"orders"`
}

// TradesResponse lists recent trades for a market outcome.
type TradesResponse struct {
	ConditionID  string      `json:"conditionId"`
	OutcomeIndex int         `json:"outcomeIndex"`
	Trades       []TradeInfo `json:"trades"`
}

/// FillOrderInfo is the order snapshot inside a pending fill: the signed
// fields the settlement operator relays on-chain.
type FillOrderInfo struct {
	ID           string `json:"id"`
	Maker        string `json:"maker"`
	ConditionID  string `json:"conditionId"`
	OutcomeIndex int    `json:"outcomeIndex"`
	IsBuy        bool   `json:"isBuy"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	Nonce        string `json:"nonce"`
	Expiry       int64  `json:"expiry"`
	Signature    string `json:"signature"`
}

// FillInfo is one fill awaiting batch settlement.
type FillInfo struct {
	TradeID    string        `json:"tradeId"`
	MakerOrder FillOrderInfo `json:"makerOrder"`
	TakerOrder FillOrderInfo `json:"takerOrder"`
	FillAmount string        `json:"fillAmount"`
}

// PendingFillsResponse is the settlement operator's work queue.
type PendingFillsResponse struct {
	Count int        `json:"count"`
	Fills []FillInfo `json:"fills"`
}

// SettlementConfirmResponse acknowledges a settlement confirmation.
type SettlementConfirmResponse struct {
	Success      bool   `json:"success"`
	ClearedFills int    `json:"clearedFills"`
	TxHash       string `json:"txHash,omitempty"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// ==============================
// REST Request Types
// ==============================

// ConfigExchangeRequest sets the verifying contract address after deployment.
type ConfigExchangeRequest struct {
	ExchangeAddress string `json:"exchangeAddress"`
}

// CancelOrderRequest is the body of DELETE /order/{orderId}.
type CancelOrderRequest struct {
	Maker     string `json:"maker"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// SettlementConfirmRequest marks trades settled after the on-chain batch.
type SettlementConfirmRequest struct {
	TradeIDs []string `json:"tradeIds"`
	TxHash   string   `json:"txHash"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions,
/// e.g. {"op":"subscribe","channels":["trades:0xabc..:0","book:0xabc..:0"]}.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// TradeUpdate is broadcast on the trades channel when a match executes.
type TradeUpdate struct {
	Type            string  `json:"type"` // "trade"
	ConditionID     string  `json:"conditionId"`
	OutcomeIndex    int     `json:"outcomeIndex"`
	Price           string  `json:"price"`
	PricePercentage float64 `json:"pricePercentage"`
	Amount          string  `json:"amount"`
	Timestamp       int64   `json:"timestamp"`
}

// BookUpdate is broadcast on the book channel after the book changes.
type BookUpdate struct {
	Type         string       `json:"type"` // "book"
	ConditionID  string       `json:"conditionId"`
	OutcomeIndex int          `json:"outcomeIndex"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	Timestamp    int64        `json:"timestamp"`
}
