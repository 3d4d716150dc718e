package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/AndreyZakrevsky/btt/utilities"
)

func tempJournal(t *testing.T) *TradeJournal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trades.db")
	journal, err := NewTradeJournal(utilities.DatabaseConfig{DBPath: path})
	if err != nil {
		t.Fatalf("Expected journal to initialize, got %v", err)
	}
	t.Cleanup(func() { journal.Close() })
	return journal
}

func TestJournalRequiresPath(t *testing.T) {
	if _, err := NewTradeJournal(utilities.DatabaseConfig{}); err == nil {
		t.Error("Expected an error for an empty database path")
	}
}

func TestJournalEmpty(t *testing.T) {
	journal := tempJournal(t)

	records, err := journal.RecentTrades(10)
	if err != nil {
		t.Fatalf("Expected query on an empty journal to succeed, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

func TestJournalRecordAndQuery(t *testing.T) {
	journal := tempJournal(t)
	placed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fills := []TradeRecord{
		{Symbol: "XRPUSDT", Side: "sell", Amount: dec("20"), Price: dec("100.5"), Fee: dec("0.05"), Profit: dec("0"), CreatedAt: placed},
		{Symbol: "XRPUSDT", Side: "sell", Amount: dec("20"), Price: dec("101"), Fee: dec("0.05"), Profit: dec("0"), CreatedAt: placed.Add(time.Minute)},
		{Symbol: "XRPUSDT", Side: "buy", Amount: dec("40"), Price: dec("99.7"), Fee: dec("0.1"), Profit: dec("42.1"), CreatedAt: placed.Add(2 * time.Minute)},
	}
	for _, rec := range fills {
		if err := journal.RecordTrade(rec); err != nil {
			t.Fatalf("Expected record to succeed, got %v", err)
		}
	}

	records, err := journal.RecentTrades(10)
	if err != nil {
		t.Fatalf("Expected query to succeed, got %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}

	// Newest first.
	newest := records[0]
	if newest.Side != "buy" {
		t.Errorf("Expected the buy-back first, got side %s", newest.Side)
	}
	if !newest.Amount.Equal(dec("40")) || !newest.Price.Equal(dec("99.7")) {
		t.Errorf("Expected amount 40 at 99.7, got %s at %s", newest.Amount, newest.Price)
	}
	if !newest.Profit.Equal(dec("42.1")) {
		t.Errorf("Expected realized profit 42.1, got %s", newest.Profit)
	}
	if !newest.CreatedAt.Equal(placed.Add(2 * time.Minute)) {
		t.Errorf("Expected timestamp to survive, got %s", newest.CreatedAt)
	}
	if records[2].ID >= newest.ID {
		t.Errorf("Expected descending ids, got %d then %d", newest.ID, records[2].ID)
	}
}

func TestJournalLimit(t *testing.T) {
	journal := tempJournal(t)

	for i := 0; i < 5; i++ {
		rec := TradeRecord{Symbol: "XRPUSDT", Side: "sell", Amount: dec("20"), Price: dec("100"), Fee: dec("0"), Profit: dec("0")}
		if err := journal.RecordTrade(rec); err != nil {
			t.Fatalf("Expected record to succeed, got %v", err)
		}
	}

	records, err := journal.RecentTrades(2)
	if err != nil {
		t.Fatalf("Expected query to succeed, got %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected the limit to cap results at 2, got %d", len(records))
	}
}

func TestJournalDefaultsZeroTimestamp(t *testing.T) {
	journal := tempJournal(t)

	rec := TradeRecord{Symbol: "XRPUSDT", Side: "sell", Amount: dec("20"), Price: dec("100"), Fee: dec("0"), Profit: dec("0")}
	if err := journal.RecordTrade(rec); err != nil {
		t.Fatalf("Expected record to succeed, got %v", err)
	}

	records, err := journal.RecentTrades(1)
	if err != nil {
		t.Fatalf("Expected query to succeed, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].CreatedAt.IsZero() {
		t.Error("Expected a zero CreatedAt to default to the insert time")
	}
}
