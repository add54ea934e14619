package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/octagonpredict/clob/pkg/app/core"
)

// PebbleJournal stores order and trade records in a pebble database.
// keys: o:<order-id>, t:<trade-id>
type PebbleJournal struct {
	db *pebble.DB
}

func NewPebbleJournal(path string) (*PebbleJournal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleJournal{db: db}, nil
}

func kOrder(id string) []byte { return append([]byte("o:"), id...) }
func kTrade(id string) []byte { return append([]byte("t:"), id...) }

func (j *PebbleJournal) set(key []byte, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	return j.db.Set(key, val, pebble.Sync)
}

func (j *PebbleJournal) RecordOrder(o core.Order) error {
	return j.set(kOrder(o.ID), newOrderRecord(o))
}

func (j *PebbleJournal) RecordTrade(t core.Trade) error {
	return j.set(kTrade(t.ID), newTradeRecord(t))
}

func (j *PebbleJournal) Close() error { return j.db.Close() }

var _ Journal = (*PebbleJournal)(nil)
