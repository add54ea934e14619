package storage

import (
	"bufio"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/octagonpredict/clob/pkg/app/core"
)

func sampleOrder() core.Order {
	return core.Order{
		ID:           "order-1",
		Maker:        common.HexToAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"),
		ConditionID:  common.HexToHash("0x01"),
		OutcomeIndex: 0,
		Side:         core.Buy,
		Price:        big.NewInt(500_000_000_000_000_000),
		Amount:       big.NewInt(100),
		Nonce:        big.NewInt(7),
		Expiry:       1_800_000_000,
		Signature:    "0xdead",
		CreatedAt:    1_700_000_000_000,
		FilledAmount: big.NewInt(0),
		Status:       core.StatusOpen,
	}
}

func sampleTrade() core.Trade {
	return core.Trade{
		ID:           "trade-1",
		MakerOrderID: "order-1",
		TakerOrderID: "order-2",
		ConditionID:  common.HexToHash("0x01"),
		OutcomeIndex: 0,
		Price:        big.NewInt(500_000_000_000_000_000),
		Amount:       big.NewInt(50),
		MakerAddress: common.HexToAddress("0x01"),
		TakerAddress: common.HexToAddress("0x02"),
		Timestamp:    1_700_000_000_500,
	}
}

func TestFileJournalAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")

	j, err := NewFileJournal(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := j.RecordOrder(sampleOrder()); err != nil {
		t.Fatalf("record order: %v", err)
	}
	if err := j.RecordTrade(sampleTrade()); err != nil {
		t.Fatalf("record trade: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	var lines []struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("bad journal line %q: %v", sc.Text(), err)
		}
		lines = append(lines, line)
	}

	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0].Kind != "order" || lines[1].Kind != "trade" {
		t.Errorf("kinds = %s, %s", lines[0].Kind, lines[1].Kind)
	}

	var rec orderRecord
	if err := json.Unmarshal(lines[0].Data, &rec); err != nil {
		t.Fatalf("decode order record: %v", err)
	}
	if rec.ID != "order-1" || rec.Price != "500000000000000000" || rec.Side != "buy" {
		t.Errorf("order record = %+v", rec)
	}
}

func TestFileJournalAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")

	j1, err := NewFileJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	j1.RecordOrder(sampleOrder())
	j1.Close()

	j2, err := NewFileJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	o := sampleOrder()
	o.ID = "order-2"
	j2.RecordOrder(o)
	j2.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, b := range raw {
		if b == '\n' {
			count++
		}
	}
	if count != 2 {
		t.Errorf("journal has %d lines after reopen, want 2", count)
	}
}

func TestPebbleJournalRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := NewPebbleJournal(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := j.RecordOrder(sampleOrder()); err != nil {
		t.Fatalf("record order: %v", err)
	}
	if err := j.RecordTrade(sampleTrade()); err != nil {
		t.Fatalf("record trade: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Reopen raw to check what was persisted.
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	val, closer, err := db.Get([]byte("o:order-1"))
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	var rec orderRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	closer.Close()
	if rec.Maker != sampleOrder().Maker.Hex() || rec.Amount != "100" {
		t.Errorf("order record = %+v", rec)
	}

	val, closer, err = db.Get([]byte("t:trade-1"))
	if err != nil {
		t.Fatalf("get trade: %v", err)
	}
	var tr tradeRecord
	if err := json.Unmarshal(val, &tr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	closer.Close()
	if tr.MakerOrderID != "order-1" || tr.Amount != "50" {
		t.Errorf("trade record = %+v", tr)
	}
}
