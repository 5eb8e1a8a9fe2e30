package ingest

import (
	"context"
	"errors"
	"testing"

	"copyflow/internal/config"
	"copyflow/internal/model"
	"copyflow/internal/signal"
	"copyflow/internal/store"
)

type fakeEnqueuer struct {
	ids []string
	err error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, intentID string) error {
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, intentID)
	return nil
}

type fakeExtractor struct {
	parsed *signal.ParsedSignal
	ok     bool
	err    error
	calls  int
}

func (f *fakeExtractor) ExtractSignal(ctx context.Context, text string) (*signal.ParsedSignal, bool, error) {
	f.calls++
	return f.parsed, f.ok, f.err
}

func newTestRepos(t *testing.T) (*store.MasterRepo, *store.IntentRepo) {
	t.Helper()

	st, err := store.NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	masters, err := store.NewMasterRepo(st)
	if err != nil {
		t.Fatalf("master repo: %v", err)
	}
	intents, err := store.NewIntentRepo(st)
	if err != nil {
		t.Fatalf("intent repo: %v", err)
	}
	return masters, intents
}

func seedMaster(t *testing.T, masters *store.MasterRepo, source string, active bool) *model.Master {
	t.Helper()
	m := &model.Master{ID: "master-1", Name: "gold channel", Source: source, IsActive: active}
	if err := masters.Insert(context.Background(), m); err != nil {
		t.Fatalf("seed master: %v", err)
	}
	return m
}

func TestHandle_CreatesAndQueuesIntent(t *testing.T) {
	masters, intents := newTestRepos(t)
	seedMaster(t, masters, "telegram", true)
	enq := &fakeEnqueuer{}

	svc, err := New(masters, intents, enq, nil, true, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	raw := "XAUUSD SELL ZONE 5187.5-5190 SL 5205 TP1 5170"
	intent, err := svc.Handle(context.Background(), "telegram", raw)
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if intent == nil {
		t.Fatal("expected intent to be created")
	}
	if intent.Status != model.IntentStatusQueued {
		t.Errorf("expected QUEUED, got %s", intent.Status)
	}
	if intent.RawText != raw {
		t.Errorf("expected raw text preserved, got %q", intent.RawText)
	}

	if len(enq.ids) != 1 || enq.ids[0] != intent.ID {
		t.Errorf("expected intent enqueued, got %v", enq.ids)
	}

	stored, err := intents.Get(context.Background(), intent.ID)
	if err != nil {
		t.Fatalf("reload intent: %v", err)
	}
	if stored == nil || stored.Status != model.IntentStatusQueued {
		t.Errorf("unexpected stored intent: %+v", stored)
	}
	if stored.Symbol != "XAUUSD" || stored.OrderType != model.OrderTypeZone {
		t.Errorf("unexpected parsed fields: %+v", stored)
	}
}

func TestHandle_AutoQueueDisabledLeavesIntentNew(t *testing.T) {
	masters, intents := newTestRepos(t)
	seedMaster(t, masters, "telegram", true)
	enq := &fakeEnqueuer{}

	svc, err := New(masters, intents, enq, nil, false, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	intent, err := svc.Handle(context.Background(), "telegram", "EURUSD BUY NOW")
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if intent == nil {
		t.Fatal("expected intent to be created")
	}
	if intent.Status != model.IntentStatusNew {
		t.Errorf("expected NEW, got %s", intent.Status)
	}
	if len(enq.ids) != 0 {
		t.Errorf("expected no enqueue, got %v", enq.ids)
	}
}

func TestHandle_NoMatchDiscardedSilently(t *testing.T) {
	masters, intents := newTestRepos(t)
	seedMaster(t, masters, "telegram", true)

	svc, err := New(masters, intents, &fakeEnqueuer{}, nil, true, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	intent, err := svc.Handle(context.Background(), "telegram", "good morning traders")
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if intent != nil {
		t.Fatalf("expected discard, got %+v", intent)
	}

	stored, err := intents.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("list intents: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("expected no stored intents, got %d", len(stored))
	}
}

func TestHandle_NoActiveMasterDiscards(t *testing.T) {
	masters, intents := newTestRepos(t)
	seedMaster(t, masters, "telegram", false)

	svc, err := New(masters, intents, &fakeEnqueuer{}, nil, true, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	intent, err := svc.Handle(context.Background(), "telegram", "EURUSD BUY NOW")
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if intent != nil {
		t.Fatalf("expected discard without active master, got %+v", intent)
	}
}

func TestHandle_ExtractorFallbackOnNoMatch(t *testing.T) {
	masters, intents := newTestRepos(t)
	seedMaster(t, masters, "telegram", true)

	entry := 1.0850
	extractor := &fakeExtractor{
		parsed: &signal.ParsedSignal{
			Symbol:    "EURUSD",
			Side:      model.SideBuy,
			OrderType: model.OrderTypeLimit,
			Entry:     &entry,
		},
		ok: true,
	}

	svc, err := New(masters, intents, &fakeEnqueuer{}, extractor, true, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	intent, err := svc.Handle(context.Background(), "telegram", "buying euro at 1.0850 limit")
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if intent == nil {
		t.Fatal("expected intent from extractor fallback")
	}
	if extractor.calls != 1 {
		t.Errorf("expected single extractor call, got %d", extractor.calls)
	}
	if intent.Symbol != "EURUSD" || intent.OrderType != model.OrderTypeLimit {
		t.Errorf("unexpected intent fields: %+v", intent)
	}
}

func TestHandle_ExtractorNotCalledWhenGrammarMatches(t *testing.T) {
	masters, intents := newTestRepos(t)
	seedMaster(t, masters, "telegram", true)
	extractor := &fakeExtractor{}

	svc, err := New(masters, intents, &fakeEnqueuer{}, extractor, true, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := svc.Handle(context.Background(), "telegram", "EURUSD BUY NOW"); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if extractor.calls != 0 {
		t.Errorf("extractor should not run when the grammar matches, calls=%d", extractor.calls)
	}
}

func TestHandle_ExtractorErrorDiscardsMessage(t *testing.T) {
	masters, intents := newTestRepos(t)
	seedMaster(t, masters, "telegram", true)
	extractor := &fakeExtractor{err: errors.New("model unavailable")}

	svc, err := New(masters, intents, &fakeEnqueuer{}, extractor, true, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	intent, err := svc.Handle(context.Background(), "telegram", "buying euro soon")
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if intent != nil {
		t.Fatalf("expected discard on extractor error, got %+v", intent)
	}
}
