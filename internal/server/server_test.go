package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"copyflow/internal/config"
	"copyflow/internal/ingest"
	"copyflow/internal/model"
	"copyflow/internal/store"
)

type fakeEnqueuer struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, intentID)
	return nil
}

type fixture struct {
	srv      *httptest.Server
	intents  *store.IntentRepo
	masters  *store.MasterRepo
	enqueuer *fakeEnqueuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.NewSQLite(config.DatabaseConfig{
		InMemory:     true,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("NewSQLite returned error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	masters, err := store.NewMasterRepo(st)
	if err != nil {
		t.Fatalf("NewMasterRepo returned error: %v", err)
	}
	accounts, err := store.NewAccountRepo(st)
	if err != nil {
		t.Fatalf("NewAccountRepo returned error: %v", err)
	}
	copySets, err := store.NewCopySetRepo(st)
	if err != nil {
		t.Fatalf("NewCopySetRepo returned error: %v", err)
	}
	profiles, err := store.NewProfileRepo(st)
	if err != nil {
		t.Fatalf("NewProfileRepo returned error: %v", err)
	}
	intents, err := store.NewIntentRepo(st)
	if err != nil {
		t.Fatalf("NewIntentRepo returned error: %v", err)
	}
	execLogs, err := store.NewExecLogRepo(st)
	if err != nil {
		t.Fatalf("NewExecLogRepo returned error: %v", err)
	}

	enqueuer := &fakeEnqueuer{}
	ingestSvc, err := ingest.New(masters, intents, enqueuer, nil, true, nil)
	if err != nil {
		t.Fatalf("ingest.New returned error: %v", err)
	}

	s, err := New(Deps{
		Masters:  masters,
		Accounts: accounts,
		CopySets: copySets,
		Profiles: profiles,
		Intents:  intents,
		ExecLogs: execLogs,
		Ingest:   ingestSvc,
		Enqueuer: enqueuer,
	}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, intents: intents, masters: masters, enqueuer: enqueuer}
}

func (f *fixture) do(t *testing.T, method, path, groups string, body interface{}) *http.Response {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, payload)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Auth-Request-Preferred-Username", "tester")
	if groups != "" {
		req.Header.Set("X-Auth-Request-Groups", groups)
	}

	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestServer_ForbiddenWithoutRole(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/props", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without roles, got %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodPost, "/api/props", "viewer", map[string]interface{}{"name": "FTMO"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer on write endpoint, got %d", resp.StatusCode)
	}
}

func TestServer_PropFirmCreateAndList(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/props", "admin", map[string]interface{}{
		"name":            "FTMO",
		"weekend_trading": false,
		"news_red_block":  true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create prop: expected 200, got %d", resp.StatusCode)
	}
	var created map[string]string
	decodeJSON(t, resp, &created)
	if created["id"] == "" {
		t.Fatal("expected generated prop firm id")
	}

	resp = f.do(t, http.MethodGet, "/api/props", "viewer", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list props: expected 200, got %d", resp.StatusCode)
	}
	var firms []map[string]interface{}
	decodeJSON(t, resp, &firms)
	if len(firms) != 1 || firms[0]["name"] != "FTMO" {
		t.Fatalf("unexpected prop list: %v", firms)
	}
	if firms[0]["news_red_block"] != true {
		t.Errorf("expected news_red_block true, got %v", firms[0]["news_red_block"])
	}
}

func TestServer_IngestSignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	master := &model.Master{ID: "master-1", Name: "Gold Channel", Source: "tg:gold", IsActive: true}
	if err := f.masters.Insert(ctx, master); err != nil {
		t.Fatalf("seed master: %v", err)
	}

	resp := f.do(t, http.MethodPost, "/api/signals", "operator", map[string]string{
		"source": "tg:gold",
		"text":   "XAUUSD SELL ZONE 5190-5187.5 SL 5205 TP1 5170",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest: expected 200, got %d", resp.StatusCode)
	}
	var out map[string]interface{}
	decodeJSON(t, resp, &out)
	if out["matched"] != true {
		t.Fatalf("expected matched signal, got %v", out)
	}
	if out["status"] != string(model.IntentStatusQueued) {
		t.Errorf("expected QUEUED status, got %v", out["status"])
	}
	if len(f.enqueuer.ids) != 1 {
		t.Errorf("expected one enqueued intent, got %d", len(f.enqueuer.ids))
	}

	resp = f.do(t, http.MethodPost, "/api/signals", "operator", map[string]string{
		"source": "tg:gold",
		"text":   "good morning traders",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest chatter: expected 200, got %d", resp.StatusCode)
	}
	out = nil
	decodeJSON(t, resp, &out)
	if out["matched"] != false {
		t.Fatalf("expected unmatched chatter, got %v", out)
	}
}

func TestServer_QueueIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	intent := &model.TradeIntent{
		ID:        "intent-1",
		MasterID:  "master-1",
		Symbol:    "EURUSD",
		Side:      model.SideBuy,
		OrderType: model.OrderTypeMarket,
		Status:    model.IntentStatusNew,
	}
	if err := f.intents.Insert(ctx, intent); err != nil {
		t.Fatalf("seed intent: %v", err)
	}

	resp := f.do(t, http.MethodPost, "/api/trade_intents/intent-1/queue", "admin", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("queue: expected 200, got %d", resp.StatusCode)
	}
	var out map[string]string
	decodeJSON(t, resp, &out)
	if out["status"] != string(model.IntentStatusQueued) {
		t.Errorf("expected QUEUED in response, got %v", out)
	}

	got, err := f.intents.Get(ctx, "intent-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Status != model.IntentStatusQueued {
		t.Errorf("expected persisted QUEUED, got %s", got.Status)
	}
	if len(f.enqueuer.ids) != 1 || f.enqueuer.ids[0] != "intent-1" {
		t.Errorf("unexpected enqueued ids: %v", f.enqueuer.ids)
	}
}

func TestServer_QueueMissingIntent(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/trade_intents/no-such/queue", "admin", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing intent, got %d", resp.StatusCode)
	}
	var out map[string]string
	decodeJSON(t, resp, &out)
	if out["error"] != "not_found" {
		t.Errorf("unexpected body: %v", out)
	}
	if len(f.enqueuer.ids) != 0 {
		t.Errorf("expected no enqueue for missing intent, got %v", f.enqueuer.ids)
	}
}

func TestServer_HealthOpenToAll(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on health, got %d", resp.StatusCode)
	}
	var out map[string]interface{}
	decodeJSON(t, resp, &out)
	if out["ok"] != true || out["user"] != "tester" {
		t.Errorf("unexpected health body: %v", out)
	}
}
