package store

import (
	"context"
	"testing"
	"time"

	"copyflow/internal/config"
	"copyflow/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func floatp(v float64) *float64 { return &v }

func TestIntentRepo_RoundTrip(t *testing.T) {
	repo, err := NewIntentRepo(newTestStore(t))
	if err != nil {
		t.Fatalf("NewIntentRepo returned error: %v", err)
	}
	ctx := context.Background()

	intent := &model.TradeIntent{
		ID:        "intent-1",
		MasterID:  "master-1",
		Symbol:    "XAUUSD",
		Side:      model.SideSell,
		OrderType: model.OrderTypeZone,
		ZoneLow:   floatp(5190),
		ZoneHigh:  floatp(5187.5),
		SL:        floatp(5205),
		TPs: []model.TakeProfit{
			{N: 1, Price: 5170},
			{N: 1, Price: 5180},
			{N: 2, Price: 5150},
		},
		RawText:   "XAUUSD SELL ZONE 5190-5187.5 SL 5205",
		Status:    model.IntentStatusNew,
		CreatedAt: time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.Insert(ctx, intent); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	got, err := repo.Get(ctx, "intent-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected intent, got nil")
	}
	if got.Symbol != "XAUUSD" || got.Side != model.SideSell || got.OrderType != model.OrderTypeZone {
		t.Errorf("unexpected head fields: %+v", got)
	}
	if got.Entry != nil {
		t.Errorf("expected nil entry, got %v", *got.Entry)
	}
	if got.ZoneLow == nil || *got.ZoneLow != 5190 || got.ZoneHigh == nil || *got.ZoneHigh != 5187.5 {
		t.Errorf("unexpected zone: %v %v", got.ZoneLow, got.ZoneHigh)
	}
	if len(got.TPs) != 3 || got.TPs[1].N != 1 || got.TPs[1].Price != 5180 {
		t.Errorf("unexpected tps: %v", got.TPs)
	}
	if got.RawText != intent.RawText {
		t.Errorf("unexpected raw text: %q", got.RawText)
	}
	if !got.CreatedAt.Equal(intent.CreatedAt) {
		t.Errorf("unexpected created_at: %v", got.CreatedAt)
	}
}

func TestIntentRepo_GetMissingReturnsNil(t *testing.T) {
	repo, err := NewIntentRepo(newTestStore(t))
	if err != nil {
		t.Fatalf("NewIntentRepo returned error: %v", err)
	}

	got, err := repo.Get(context.Background(), "no-such-intent")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing intent, got %+v", got)
	}
}

func TestIntentRepo_UpdateStatus(t *testing.T) {
	repo, err := NewIntentRepo(newTestStore(t))
	if err != nil {
		t.Fatalf("NewIntentRepo returned error: %v", err)
	}
	ctx := context.Background()

	intent := &model.TradeIntent{
		ID:        "intent-2",
		MasterID:  "master-1",
		Symbol:    "EURUSD",
		Side:      model.SideBuy,
		OrderType: model.OrderTypeMarket,
		Status:    model.IntentStatusNew,
	}
	if err := repo.Insert(ctx, intent); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	if err := repo.UpdateStatus(ctx, "intent-2", model.IntentStatusQueued); err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}

	got, err := repo.Get(ctx, "intent-2")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != model.IntentStatusQueued {
		t.Errorf("expected status %s, got %s", model.IntentStatusQueued, got.Status)
	}
}

func TestIntentRepo_ListNewestFirst(t *testing.T) {
	repo, err := NewIntentRepo(newTestStore(t))
	if err != nil {
		t.Fatalf("NewIntentRepo returned error: %v", err)
	}
	ctx := context.Background()

	base := time.Date(2025, 1, 3, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		intent := &model.TradeIntent{
			ID:        id,
			MasterID:  "master-1",
			Symbol:    "XAUUSD",
			Side:      model.SideBuy,
			OrderType: model.OrderTypeMarket,
			Status:    model.IntentStatusNew,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Insert(ctx, intent); err != nil {
			t.Fatalf("Insert %s returned error: %v", id, err)
		}
	}

	intents, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(intents) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(intents))
	}
	if intents[0].ID != "new" || intents[1].ID != "mid" {
		t.Errorf("unexpected order: %s, %s", intents[0].ID, intents[1].ID)
	}
}
