package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/octagonpredict/clob/pkg/app/core"
	"github.com/octagonpredict/clob/pkg/app/core/transaction"
	"github.com/octagonpredict/clob/pkg/crypto"
)

const testExchange = "0x0000000000000000000000000000000000000001"

var testConditionID = "0x" + fmt.Sprintf("%064x", 42)

func testDomainTemplate() crypto.EIP712Domain {
	return crypto.EIP712Domain{
		Name:    "OctagonPredict",
		Version: "1",
		ChainID: big.NewInt(100010),
	}
}

func newTestServer(t *testing.T, configured bool) *Server {
	t.Helper()

	engine := core.NewMatchingEngine(nil, nil)
	verifier := transaction.NewVerifier()
	if configured {
		domain := testDomainTemplate()
		domain.VerifyingContract = common.HexToAddress(testExchange)
		if err := verifier.Configure(domain); err != nil {
			t.Fatal(err)
		}
	}
	return NewServer(engine, verifier, nil, testDomainTemplate(), nil, nil, nil)
}

func signOrderPayload(t *testing.T, signer *crypto.Signer, isBuy bool, price, amount string) transaction.OrderPayload {
	t.Helper()

	p := transaction.OrderPayload{
		Maker:        signer.Address().Hex(),
		ConditionID:  testConditionID,
		OutcomeIndex: 0,
		IsBuy:        isBuy,
		Price:        price,
		Amount:       amount,
		Nonce:        "1",
		Expiry:       time.Now().Add(time.Hour).Unix(),
	}

	order, err := p.ToEIP712()
	if err != nil {
		t.Fatal(err)
	}
	domain := testDomainTemplate()
	domain.VerifyingContract = common.HexToAddress(testExchange)
	sig, err := crypto.NewEIP712Signer(domain).SignOrder(signer, order)
	if err != nil {
		t.Fatal(err)
	}
	p.Signature = fmt.Sprintf("0x%x", sig)
	return p
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func submitOrder(t *testing.T, s *Server, signer *crypto.Signer, isBuy bool, price, amount string) SubmitOrderResponse {
	t.Helper()

	w := doJSON(t, s, "POST", "/api/v1/orders", signOrderPayload(t, signer, isBuy, price, amount))
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body %s", w.Code, w.Body.String())
	}
	var resp SubmitOrderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestSubmitOrderUnconfigured(t *testing.T) {
	s := newTestServer(t, false)
	signer, _ := crypto.GenerateKey()

	w := doJSON(t, s, "POST", "/api/v1/orders", signOrderPayload(t, signer, true, "500000000000000000", "100"))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestConfigExchange(t *testing.T) {
	s := newTestServer(t, false)

	w := doJSON(t, s, "POST", "/api/v1/config/exchange", ConfigExchangeRequest{ExchangeAddress: "garbage"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid address status = %d, want 400", w.Code)
	}

	w = doJSON(t, s, "POST", "/api/v1/config/exchange", ConfigExchangeRequest{ExchangeAddress: testExchange})
	if w.Code != http.StatusOK {
		t.Fatalf("configure status = %d, body %s", w.Code, w.Body.String())
	}

	// Reconfiguration is rejected.
	w = doJSON(t, s, "POST", "/api/v1/config/exchange", ConfigExchangeRequest{ExchangeAddress: testExchange})
	if w.Code != http.StatusConflict {
		t.Errorf("reconfigure status = %d, want 409", w.Code)
	}

	// The domain set through the endpoint verifies real signatures.
	signer, _ := crypto.GenerateKey()
	resp := submitOrder(t, s, signer, true, "500000000000000000", "100")
	if resp.Status != "open" {
		t.Errorf("order status = %s, want open", resp.Status)
	}
}

func TestSubmitOrderValidation(t *testing.T) {
	s := newTestServer(t, true)
	signer, _ := crypto.GenerateKey()

	p := signOrderPayload(t, signer, true, "500000000000000000", "100")
	p.Price = "0"
	p.Amount = "-1"

	w := doJSON(t, s, "POST", "/api/v1/orders", p)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Details) != 2 {
		t.Errorf("details = %v, want both violations", resp.Details)
	}
}

func TestSubmitOrderBadSignature(t *testing.T) {
	s := newTestServer(t, true)
	signer, _ := crypto.GenerateKey()

	// Tampering a signed field after signing must be a 401, not a match.
	p := signOrderPayload(t, signer, true, "500000000000000000", "100")
	p.Price = "600000000000000000"

	w := doJSON(t, s, "POST", "/api/v1/orders", p)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSubmitAndMatchFlow(t *testing.T) {
	s := newTestServer(t, true)
	seller, _ := crypto.GenerateKey()
	buyer, _ := crypto.GenerateKey()

	ask := submitOrder(t, s, seller, false, "500000000000000000", "100")
	if ask.Status != "open" || len(ask.Trades) != 0 {
		t.Fatalf("ask = %+v", ask)
	}

	buy := submitOrder(t, s, buyer, true, "600000000000000000", "150")
	if buy.Status != "partial" {
		t.Errorf("buy status = %s, want partial", buy.Status)
	}
	if buy.FilledAmount != "100" {
		t.Errorf("buy filled = %s, want 100", buy.FilledAmount)
	}
	if len(buy.Trades) != 1 || buy.Trades[0].Price != "500000000000000000" {
		t.Fatalf("trades = %+v, want one at maker price", buy.Trades)
	}

	// Book now shows only the buyer's remainder.
	w := doJSON(t, s, "GET", "/api/v1/book/"+testConditionID+"/0", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("book status = %d", w.Code)
	}
	var book OrderBookResponse
	json.Unmarshal(w.Body.Bytes(), &book)
	if len(book.Asks) != 0 || len(book.Bids) != 1 {
		t.Fatalf("book = %+v", book)
	}
	if book.Bids[0].Amount != "50" {
		t.Errorf("resting bid amount = %s, want 50", book.Bids[0].Amount)
	}

	// Trade feed sees the match.
	w = doJSON(t, s, "GET", "/api/v1/trades/"+testConditionID+"/0", nil)
	var trades TradesResponse
	json.Unmarshal(w.Body.Bytes(), &trades)
	if len(trades.Trades) != 1 || trades.Trades[0].Amount != "100" {
		t.Fatalf("trades = %+v", trades)
	}

	// Maker's active orders: the ask is filled, so only live orders remain.
	w = doJSON(t, s, "GET", "/api/v1/accounts/"+seller.Address().Hex()+"/orders", nil)
	var mine MakerOrdersResponse
	json.Unmarshal(w.Body.Bytes(), &mine)
	if len(mine.Orders) != 0 {
		t.Errorf("seller active orders = %+v, want none", mine.Orders)
	}
}

func TestGetPrices(t *testing.T) {
	s := newTestServer(t, true)
	maker, _ := crypto.GenerateKey()

	// One-sided book: all nulls.
	submitOrder(t, s, maker, true, "400000000000000000", "100")
	w := doJSON(t, s, "GET", "/api/v1/prices/"+testConditionID+"/0", nil)
	var p BestPricesResponse
	json.Unmarshal(w.Body.Bytes(), &p)
	if p.BestBid != nil || p.Midpoint != nil || p.BidPercentage != nil {
		t.Errorf("one-sided prices = %+v, want all null", p)
	}

	submitOrder(t, s, maker, false, "600000000000000000", "100")
	w = doJSON(t, s, "GET", "/api/v1/prices/"+testConditionID+"/0", nil)
	json.Unmarshal(w.Body.Bytes(), &p)
	if p.BestBid == nil || *p.BestBid != "400000000000000000" {
		t.Fatalf("bestBid = %v", p.BestBid)
	}
	if *p.Spread != "200000000000000000" || *p.Midpoint != "500000000000000000" {
		t.Errorf("spread/midpoint = %v/%v", *p.Spread, *p.Midpoint)
	}
	if *p.BidPercentage != 40.0 || *p.AskPercentage != 60.0 {
		t.Errorf("percentages = %v/%v", *p.BidPercentage, *p.AskPercentage)
	}
}

func TestMarketParamValidation(t *testing.T) {
	s := newTestServer(t, true)

	for _, path := range []string{
		"/api/v1/book/0x1234/0",
		"/api/v1/book/" + testConditionID + "/300",
		"/api/v1/book/" + testConditionID + "/-1",
	} {
		if w := doJSON(t, s, "GET", path, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, w.Code)
		}
	}
}

func signCancel(t *testing.T, signer *crypto.Signer, orderID, nonce string) CancelOrderRequest {
	t.Helper()

	domain := testDomainTemplate()
	domain.VerifyingContract = common.HexToAddress(testExchange)

	n, _ := new(big.Int).SetString(nonce, 10)
	sig, err := crypto.NewEIP712Signer(domain).SignCancel(signer, &crypto.CancelEIP712{
		OrderID: orderID,
		Maker:   signer.Address(),
		Nonce:   n,
	})
	if err != nil {
		t.Fatal(err)
	}
	return CancelOrderRequest{
		Maker:     signer.Address().Hex(),
		Nonce:     nonce,
		Signature: fmt.Sprintf("0x%x", sig),
	}
}

func TestCancelOrderFlow(t *testing.T) {
	s := newTestServer(t, true)
	maker, _ := crypto.GenerateKey()
	stranger, _ := crypto.GenerateKey()

	resp := submitOrder(t, s, maker, true, "400000000000000000", "100")

	// Unknown order.
	w := doJSON(t, s, "DELETE", "/api/v1/orders/order-unknown", signCancel(t, maker, "order-unknown", "1"))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown order status = %d, want 404", w.Code)
	}

	// Not the owner.
	w = doJSON(t, s, "DELETE", "/api/v1/orders/"+resp.OrderID, signCancel(t, stranger, resp.OrderID, "1"))
	if w.Code != http.StatusForbidden {
		t.Errorf("stranger cancel status = %d, want 403", w.Code)
	}

	// Owner but bad signature (signed for a different order id).
	bad := signCancel(t, maker, "order-other", "1")
	w = doJSON(t, s, "DELETE", "/api/v1/orders/"+resp.OrderID, bad)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad signature status = %d, want 401", w.Code)
	}

	// Proper cancel.
	w = doJSON(t, s, "DELETE", "/api/v1/orders/"+resp.OrderID, signCancel(t, maker, resp.OrderID, "1"))
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body %s", w.Code, w.Body.String())
	}

	var info OrderInfo
	w = doJSON(t, s, "GET", "/api/v1/orders/"+resp.OrderID, nil)
	json.Unmarshal(w.Body.Bytes(), &info)
	if info.Status != "cancelled" {
		t.Errorf("status after cancel = %s", info.Status)
	}

	// Cancelling a terminal order is a 400.
	w = doJSON(t, s, "DELETE", "/api/v1/orders/"+resp.OrderID, signCancel(t, maker, resp.OrderID, "1"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("double cancel status = %d, want 400", w.Code)
	}
}

func TestSettlementFlow(t *testing.T) {
	s := newTestServer(t, true)
	seller, _ := crypto.GenerateKey()
	buyer, _ := crypto.GenerateKey()

	submitOrder(t, s, seller, false, "500000000000000000", "100")
	submitOrder(t, s, buyer, true, "500000000000000000", "100")

	w := doJSON(t, s, "GET", "/api/v1/settlement/pending", nil)
	var pending PendingFillsResponse
	json.Unmarshal(w.Body.Bytes(), &pending)
	if pending.Count != 1 {
		t.Fatalf("pending = %+v, want 1 fill", pending)
	}
	fill := pending.Fills[0]
	if fill.MakerOrder.Signature == "" || fill.TakerOrder.Signature == "" {
		t.Error("fill snapshots missing signatures")
	}

	w = doJSON(t, s, "POST", "/api/v1/settlement/confirm", SettlementConfirmRequest{
		TradeIDs: []string{fill.TradeID},
		TxHash:   "0xbeef",
	})
	var conf SettlementConfirmResponse
	json.Unmarshal(w.Body.Bytes(), &conf)
	if !conf.Success || conf.ClearedFills != 1 {
		t.Fatalf("confirm = %+v", conf)
	}

	w = doJSON(t, s, "GET", "/api/v1/settlement/pending", nil)
	json.Unmarshal(w.Body.Bytes(), &pending)
	if pending.Count != 0 {
		t.Errorf("pending after confirm = %d, want 0", pending.Count)
	}
}

func TestSigningPayloadEndpoint(t *testing.T) {
	s := newTestServer(t, true)
	signer, _ := crypto.GenerateKey()

	p := signOrderPayload(t, signer, true, "500000000000000000", "100")
	p.Signature = "" // not needed to render the typed data

	w := doJSON(t, s, "POST", "/api/v1/orders/signing-payload", p)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var typed map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &typed); err != nil {
		t.Fatalf("response is not typed-data JSON: %v", err)
	}
	if typed["primaryType"] != "Order" {
		t.Errorf("primaryType = %v", typed["primaryType"])
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, true)
	w := doJSON(t, s, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}
