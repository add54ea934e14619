package api

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/octagonpredict/clob/pkg/app/core"
	"github.com/octagonpredict/clob/pkg/app/core/transaction"
	"github.com/octagonpredict/clob/pkg/crypto"
	"github.com/octagonpredict/clob/pkg/storage"
	"github.com/octagonpredict/clob/pkg/util"
)

const defaultBookDepth = 10

// Server is the REST and WebSocket surface over the matching engine. It runs
// the submission pipeline: structural validation, then signature
// verification, then the engine — the engine itself sees only verified
// orders. Journal writes happen here, after the engine returns.
type Server struct {
	engine   *core.MatchingEngine
	verifier *transaction.Verifier
	journal  storage.Journal
	hub      *Hub
	router   *mux.Router
	clock    util.Clock
	origins  []string
	signing  crypto.EIP712Domain // domain template; contract address comes from /config/exchange
	log      *zap.SugaredLogger
}

func NewServer(
	engine *core.MatchingEngine,
	verifier *transaction.Verifier,
	journal storage.Journal,
	signing crypto.EIP712Domain,
	origins []string,
	clock util.Clock,
	logger *zap.Logger,
) *Server {
	if journal == nil {
		journal = storage.NewNopJournal()
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		engine:   engine,
		verifier: verifier,
		journal:  journal,
		hub:      NewHub(logger),
		router:   mux.NewRouter(),
		clock:    clock,
		origins:  origins,
		signing:  signing,
		log:      logger.Sugar(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/config/exchange", s.handleConfigExchange).Methods("POST")

	api.HandleFunc("/book/{conditionId}/{outcomeIndex}", s.handleGetBook).Methods("GET")
	api.HandleFunc("/prices/{conditionId}/{outcomeIndex}", s.handleGetPrices).Methods("GET")
	api.HandleFunc("/trades/{conditionId}/{outcomeIndex}", s.handleGetTrades).Methods("GET")

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/signing-payload", s.handleSigningPayload).Methods("POST")
	api.HandleFunc("/orders/{orderId}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{orderId}", s.handleCancelOrder).Methods("DELETE")
	api.HandleFunc("/accounts/{maker}/orders", s.handleGetMakerOrders).Methods("GET")

	api.HandleFunc("/settlement/pending", s.handleGetPendingFills).Methods("GET")
	api.HandleFunc("/settlement/confirm", s.handleSettlementConfirm).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Router exposes the handler tree; used by tests and by Start.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the WebSocket hub and serves HTTP until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// Configuration
// ==============================

func (s *Server) handleConfigExchange(w http.ResponseWriter, r *http.Request) {
	var req ConfigExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !common.IsHexAddress(req.ExchangeAddress) {
		respondError(w, http.StatusBadRequest, "invalid exchange address")
		return
	}

	domain := s.signing
	domain.VerifyingContract = common.HexToAddress(req.ExchangeAddress)

	if err := s.verifier.Configure(domain); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	s.log.Infow("exchange_configured", "address", domain.VerifyingContract.Hex())
	respondJSON(w, map[string]any{"success": true, "exchangeAddress": domain.VerifyingContract.Hex()})
}

// ==============================
// Book and price queries
// ==============================

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	key, ok := parseMarket(w, r)
	if !ok {
		return
	}

	depth := defaultBookDepth
	if d, err := strconv.Atoi(r.URL.Query().Get("depth")); err == nil && d > 0 {
		depth = d
	}

	bids, asks := s.engine.AggregatedBook(key, depth)
	prices := s.engine.GetBestPrices(key)

	respondJSON(w, OrderBookResponse{
		ConditionID:  key.ConditionID.Hex(),
		OutcomeIndex: int(key.OutcomeIndex),
		Bids:         toPriceLevels(bids),
		Asks:         toPriceLevels(asks),
		Spread:       bigString(prices.Spread),
		Midpoint:     bigString(prices.Midpoint),
	})
}

func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	key, ok := parseMarket(w, r)
	if !ok {
		return
	}

	prices := s.engine.GetBestPrices(key)

	respondJSON(w, BestPricesResponse{
		ConditionID:   key.ConditionID.Hex(),
		OutcomeIndex:  int(key.OutcomeIndex),
		BestBid:       bigString(prices.BestBid),
		BestAsk:       bigString(prices.BestAsk),
		Spread:        bigString(prices.Spread),
		Midpoint:      bigString(prices.Midpoint),
		BidPercentage: percentage(prices.BestBid),
		AskPercentage: percentage(prices.BestAsk),
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	key, ok := parseMarket(w, r)
	if !ok {
		return
	}

	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	trades := s.engine.RecentTrades(key, limit)
	infos := make([]TradeInfo, 0, len(trades))
	for _, t := range trades {
		infos = append(infos, tradeInfo(t))
	}

	respondJSON(w, TradesResponse{
		ConditionID:  key.ConditionID.Hex(),
		OutcomeIndex: int(key.OutcomeIndex),
		Trades:       infos,
	})
}

// ==============================
// Order submission and cancellation
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	if !s.verifier.Configured() {
		respondError(w, http.StatusServiceUnavailable, "exchange not configured")
		return
	}

	var payload transaction.OrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := s.clock.Now()
	if valid, errs := payload.Validate(now.Unix()); !valid {
		respondErrorDetails(w, http.StatusBadRequest, "invalid order", errs)
		return
	}

	// Categorical rejection: the client learns the signature failed, nothing
	// about why.
	if valid, err := s.verifier.VerifyOrder(&payload); err != nil || !valid {
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	order, err := payload.ToOrder("order-"+uuid.NewString(), now.UnixMilli())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order")
		return
	}

	trades, err := s.engine.SubmitOrder(order)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	s.journalOrder(order)
	s.broadcastTrades(trades)
	s.broadcastBook(order.Market())

	snapshot, _ := s.engine.GetOrder(order.ID)
	infos := make([]TradeInfo, 0, len(trades))
	for _, t := range trades {
		infos = append(infos, tradeInfo(*t))
	}

	respondJSON(w, SubmitOrderResponse{
		OrderID:      snapshot.ID,
		Status:       string(snapshot.Status),
		FilledAmount: snapshot.FilledAmount.String(),
		Trades:       infos,
	})
}

func (s *Server) handleSigningPayload(w http.ResponseWriter, r *http.Request) {
	var payload transaction.OrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	typed, err := s.verifier.SigningPayload(&payload)
	if err == transaction.ErrNotConfigured {
		respondError(w, http.StatusServiceUnavailable, "exchange not configured")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(typed))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if !s.verifier.Configured() {
		respondError(w, http.StatusServiceUnavailable, "exchange not configured")
		return
	}

	orderID := mux.Vars(r)["orderId"]

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Maker == "" || req.Signature == "" || req.Nonce == "" {
		respondError(w, http.StatusBadRequest, "missing maker, nonce, or signature")
		return
	}

	order, found := s.engine.GetOrder(orderID)
	if !found {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}

	if !common.IsHexAddress(req.Maker) || common.HexToAddress(req.Maker) != order.Maker {
		respondError(w, http.StatusForbidden, "not order owner")
		return
	}

	cancel := transaction.CancelPayload{
		OrderID:   orderID,
		Maker:     req.Maker,
		Nonce:     req.Nonce,
		Signature: req.Signature,
	}
	if valid, err := s.verifier.VerifyCancel(&cancel); err != nil || !valid {
		respondError(w, http.StatusUnauthorized, "invalid cancel signature")
		return
	}

	if !s.engine.CancelOrder(orderID) {
		respondError(w, http.StatusBadRequest, "cannot cancel order")
		return
	}

	s.broadcastBook(order.Market())
	respondJSON(w, map[string]any{"success": true, "orderId": orderID})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, found := s.engine.GetOrder(mux.Vars(r)["orderId"])
	if !found {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, orderInfo(order))
}

func (s *Server) handleGetMakerOrders(w http.ResponseWriter, r *http.Request) {
	maker := mux.Vars(r)["maker"]
	if !common.IsHexAddress(maker) {
		respondError(w, http.StatusBadRequest, "invalid maker address")
		return
	}

	addr := common.HexToAddress(maker)
	orders := s.engine.OrdersByMaker(addr)

	infos := make([]OrderInfo, 0, len(orders))
	for _, o := range orders {
		infos = append(infos, orderInfo(o))
	}

	respondJSON(w, MakerOrdersResponse{
		Maker:  crypto.EIP55(addr.Bytes()),
		Orders: infos,
	})
}

// ==============================
// Settlement
// ==============================

func (s *Server) handleGetPendingFills(w http.ResponseWriter, r *http.Request) {
	fills := s.engine.PendingFills()

	infos := make([]FillInfo, 0, len(fills))
	for _, f := range fills {
		infos = append(infos, FillInfo{
			TradeID:    f.TradeID,
			MakerOrder: fillOrderInfo(f.MakerOrder),
			TakerOrder: fillOrderInfo(f.TakerOrder),
			FillAmount: f.FillAmount.String(),
		})
	}

	respondJSON(w, PendingFillsResponse{Count: len(infos), Fills: infos})
}

func (s *Server) handleSettlementConfirm(w http.ResponseWriter, r *http.Request) {
	var req SettlementConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.TradeIDs) == 0 {
		respondError(w, http.StatusBadRequest, "invalid trade IDs")
		return
	}

	cleared := s.engine.ClearPendingFills(req.TradeIDs)
	s.log.Infow("settlement_confirmed", "trades", len(req.TradeIDs), "cleared_fills", cleared, "tx_hash", req.TxHash)

	respondJSON(w, SettlementConfirmResponse{
		Success:      true,
		ClearedFills: cleared,
		TxHash:       req.TxHash,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{"status": "ok", "timestamp": s.clock.Now().UnixMilli()})
}

// ==============================
// Journal and broadcast
// ==============================

func (s *Server) journalOrder(order *core.Order) {
	snapshot, ok := s.engine.GetOrder(order.ID)
	if !ok {
		return
	}
	if err := s.journal.RecordOrder(snapshot); err != nil {
		s.log.Errorw("journal_order_failed", "order_id", order.ID, "err", err)
	}
}

func (s *Server) broadcastTrades(trades []*core.Trade) {
	for _, t := range trades {
		if err := s.journal.RecordTrade(*t); err != nil {
			s.log.Errorw("journal_trade_failed", "trade_id", t.ID, "err", err)
		}

		channel := fmt.Sprintf("trades:%s:%d", t.ConditionID.Hex(), t.OutcomeIndex)
		s.hub.BroadcastToChannel(channel, TradeUpdate{
			Type:            "trade",
			ConditionID:     t.ConditionID.Hex(),
			OutcomeIndex:    int(t.OutcomeIndex),
			Price:           t.Price.String(),
			PricePercentage: core.PriceToPercentage(t.Price),
			Amount:          t.Amount.String(),
			Timestamp:       t.Timestamp,
		})
	}
}

func (s *Server) broadcastBook(key core.MarketKey) {
	bids, asks := s.engine.AggregatedBook(key, defaultBookDepth)
	channel := fmt.Sprintf("book:%s:%d", key.ConditionID.Hex(), key.OutcomeIndex)
	s.hub.BroadcastToChannel(channel, BookUpdate{
		Type:         "book",
		ConditionID:  key.ConditionID.Hex(),
		OutcomeIndex: int(key.OutcomeIndex),
		Bids:         toPriceLevels(bids),
		Asks:         toPriceLevels(asks),
		Timestamp:    s.clock.Now().UnixMilli(),
	})
}

// ==============================
// Helpers
// ==============================

var conditionIDRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

func parseMarket(w http.ResponseWriter, r *http.Request) (core.MarketKey, bool) {
	vars := mux.Vars(r)

	conditionID := vars["conditionId"]
	if !conditionIDRe.MatchString(conditionID) {
		respondError(w, http.StatusBadRequest, "invalid conditionId")
		return core.MarketKey{}, false
	}

	idx, err := strconv.Atoi(vars["outcomeIndex"])
	if err != nil || idx < 0 || idx > 255 {
		respondError(w, http.StatusBadRequest, "invalid outcomeIndex")
		return core.MarketKey{}, false
	}

	return core.MarketKey{
		ConditionID:  common.HexToHash(conditionID),
		OutcomeIndex: uint8(idx),
	}, true
}

func toPriceLevels(levels []core.LevelView) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, PriceLevel{Price: l.Price.String(), Amount: l.Amount.String()})
	}
	return out
}

func tradeInfo(t core.Trade) TradeInfo {
	return TradeInfo{
		ID:              t.ID,
		Price:           t.Price.String(),
		PricePercentage: core.PriceToPercentage(t.Price),
		Amount:          t.Amount.String(),
		Timestamp:       t.Timestamp,
		Settled:         t.Settled,
	}
}

func orderInfo(o core.Order) OrderInfo {
	return OrderInfo{
		ID:              o.ID,
		ConditionID:     o.ConditionID.Hex(),
		OutcomeIndex:    int(o.OutcomeIndex),
		IsBuy:           o.Side == core.Buy,
		Price:           o.Price.String(),
		PricePercentage: core.PriceToPercentage(o.Price),
		Amount:          o.Amount.String(),
		FilledAmount:    o.FilledAmount.String(),
		Status:          string(o.Status),
		Expiry:          o.Expiry,
		CreatedAt:       o.CreatedAt,
	}
}

func fillOrderInfo(o core.Order) FillOrderInfo {
	nonce := "0"
	if o.Nonce != nil {
		nonce = o.Nonce.String()
	}
	return FillOrderInfo{
		ID:           o.ID,
		Maker:        crypto.EIP55(o.Maker.Bytes()),
		ConditionID:  o.ConditionID.Hex(),
		OutcomeIndex: int(o.OutcomeIndex),
		IsBuy:        o.Side == core.Buy,
		Price:        o.Price.String(),
		Amount:       o.Amount.String(),
		Nonce:        nonce,
		Expiry:       o.Expiry,
		Signature:    o.Signature,
	}
}

func bigString(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func percentage(price *big.Int) *float64 {
	if price == nil {
		return nil
	}
	p := core.PriceToPercentage(price)
	return &p
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

func respondErrorDetails(w http.ResponseWriter, status int, msg string, details []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Details: details})
}
