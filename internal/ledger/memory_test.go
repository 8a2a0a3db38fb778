package ledger

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, _ := store.GetPosition(ctx, "ABC"); ok {
		t.Fatalf("expected empty store")
	}

	pos := Position{Symbol: "ABC", State: Long, EntryPrice: 10, Shares: 100, TradeID: "t1"}
	if err := store.PutPosition(ctx, pos); err != nil {
		t.Fatalf("PutPosition returned error: %v", err)
	}
	got, ok, _ := store.GetPosition(ctx, "ABC")
	if !ok || got != pos {
		t.Fatalf("expected %+v, got %+v (ok=%v)", pos, got, ok)
	}
}

func TestMemoryStoreTradesAndAudit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.AppendTrade(ctx, Trade{TradeID: "t1", Symbol: "ABC"})
	_ = store.Append(ctx, AuditRow{Symbol: "ABC", Status: "dry_run"})

	if trades := store.Trades(); len(trades) != 1 || trades[0].TradeID != "t1" {
		t.Fatalf("unexpected trades snapshot: %+v", trades)
	}
	if rows := store.AuditRows(); len(rows) != 1 || rows[0].Status != "dry_run" {
		t.Fatalf("unexpected audit snapshot: %+v", rows)
	}

	store.Reset()
	if len(store.Trades()) != 0 || len(store.AuditRows()) != 0 {
		t.Fatalf("expected Reset to clear state")
	}
}
