package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/octagonpredict/clob/pkg/app/core"
)

// Journal is an append-only audit record of accepted orders and executed
// trades. It is written by the submission pipeline after the engine returns,
// never inside the engine's critical section, and nothing is ever read back:
// the engine stays non-durable by design.
type Journal interface {
	RecordOrder(o core.Order) error
	RecordTrade(t core.Trade) error
	Close() error
}

type orderRecord struct {
	ID           string `json:"id"`
	Maker        string `json:"maker"`
	ConditionID  string `json:"conditionId"`
	OutcomeIndex uint8  `json:"outcomeIndex"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	Nonce        string `json:"nonce"`
	Expiry       int64  `json:"expiry"`
	Signature    string `json:"signature"`
	CreatedAt    int64  `json:"createdAt"`
}

type tradeRecord struct {
	ID           string `json:"id"`
	MakerOrderID string `json:"makerOrderId"`
	TakerOrderID string `json:"takerOrderId"`
	ConditionID  string `json:"conditionId"`
	OutcomeIndex uint8  `json:"outcomeIndex"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	MakerAddress string `json:"makerAddress"`
	TakerAddress string `json:"takerAddress"`
	Timestamp    int64  `json:"timestamp"`
}

func newOrderRecord(o core.Order) orderRecord {
	nonce := "0"
	if o.Nonce != nil {
		nonce = o.Nonce.String()
	}
	return orderRecord{
		ID:           o.ID,
		Maker:        o.Maker.Hex(),
		ConditionID:  o.ConditionID.Hex(),
		OutcomeIndex: o.OutcomeIndex,
		Side:         o.Side.String(),
		Price:        o.Price.String(),
		Amount:       o.Amount.String(),
		Nonce:        nonce,
		Expiry:       o.Expiry,
		Signature:    o.Signature,
		CreatedAt:    o.CreatedAt,
	}
}

func newTradeRecord(t core.Trade) tradeRecord {
	return tradeRecord{
		ID:           t.ID,
		MakerOrderID: t.MakerOrderID,
		TakerOrderID: t.TakerOrderID,
		ConditionID:  t.ConditionID.Hex(),
		OutcomeIndex: t.OutcomeIndex,
		Price:        t.Price.String(),
		Amount:       t.Amount.String(),
		MakerAddress: t.MakerAddress.Hex(),
		TakerAddress: t.TakerAddress.Hex(),
		Timestamp:    t.Timestamp,
	}
}

// NopJournal discards everything. Used in tests and when journaling is off.
type NopJournal struct{}

func NewNopJournal() *NopJournal                  { return &NopJournal{} }
func (*NopJournal) RecordOrder(core.Order) error  { return nil }
func (*NopJournal) RecordTrade(core.Trade) error  { return nil }
func (*NopJournal) Close() error                  { return nil }

// FileJournal appends JSON lines to a single file.
type FileJournal struct {
	mu sync.Mutex
	f  *os.File
}

func NewFileJournal(path string) (*FileJournal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileJournal{f: f}, nil
}

func (j *FileJournal) append(kind string, v any) error {
	line := struct {
		Kind string `json:"kind"`
		Data any    `json:"data"`
	}{Kind: kind, Data: v}

	raw, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", kind, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = fmt.Fprintln(j.f, string(raw))
	return err
}

func (j *FileJournal) RecordOrder(o core.Order) error {
	return j.append("order", newOrderRecord(o))
}

func (j *FileJournal) RecordTrade(t core.Trade) error {
	return j.append("trade", newTradeRecord(t))
}

func (j *FileJournal) Close() error { return j.f.Close() }

var (
	_ Journal = (*NopJournal)(nil)
	_ Journal = (*FileJournal)(nil)
)
