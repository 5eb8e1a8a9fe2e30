package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"copyflow/internal/ingest"
	"copyflow/internal/model"
	"copyflow/internal/store"
)

// Deps 聚合管理接口的协作方。
type Deps struct {
	Masters  *store.MasterRepo
	Accounts *store.AccountRepo
	CopySets *store.CopySetRepo
	Profiles *store.ProfileRepo
	Intents  *store.IntentRepo
	ExecLogs *store.ExecLogRepo
	Ingest   *ingest.Service
	Enqueuer ingest.Enqueuer
}

// Server 暴露实体管理与入队动作的 HTTP 接口。
type Server struct {
	deps   Deps
	logger *zap.Logger
}

// New 创建管理接口服务。
func New(deps Deps, logger *zap.Logger) (*Server, error) {
	if deps.Masters == nil || deps.Accounts == nil || deps.CopySets == nil ||
		deps.Profiles == nil || deps.Intents == nil || deps.ExecLogs == nil {
		return nil, errors.New("server: 仓储依赖不完整")
	}
	if deps.Ingest == nil {
		return nil, errors.New("server: ingest 服务不能为空")
	}
	if deps.Enqueuer == nil {
		return nil, errors.New("server: enqueuer 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, logger: logger}, nil
}

// Handler 构建完整路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/props", s.requireRoles(s.createProp, roleAdmin, roleOperator))
	mux.HandleFunc("GET /api/props", s.requireRoles(s.listProps, roleAdmin, roleOperator, roleViewer))
	mux.HandleFunc("POST /api/risk_profiles", s.requireRoles(s.createRiskProfile, roleAdmin, roleOperator))
	mux.HandleFunc("POST /api/accounts", s.requireRoles(s.createAccount, roleAdmin, roleOperator))
	mux.HandleFunc("GET /api/accounts", s.requireRoles(s.listAccounts, roleAdmin, roleOperator, roleViewer))
	mux.HandleFunc("POST /api/masters", s.requireRoles(s.createMaster, roleAdmin, roleOperator))
	mux.HandleFunc("GET /api/masters", s.requireRoles(s.listMasters, roleAdmin, roleOperator, roleViewer))
	mux.HandleFunc("POST /api/copysets", s.requireRoles(s.createCopySet, roleAdmin, roleOperator))
	mux.HandleFunc("POST /api/copysets/slaves", s.requireRoles(s.addSlave, roleAdmin, roleOperator))
	mux.HandleFunc("GET /api/trade_intents", s.requireRoles(s.listIntents, roleAdmin, roleOperator, roleViewer))
	mux.HandleFunc("GET /api/trade_intents/{id}/logs", s.requireRoles(s.listIntentLogs, roleAdmin, roleOperator, roleViewer))
	mux.HandleFunc("POST /api/trade_intents/{id}/queue", s.requireRoles(s.queueIntent, roleAdmin, roleOperator))
	mux.HandleFunc("POST /api/signals", s.requireRoles(s.ingestSignal, roleAdmin, roleOperator))
	mux.HandleFunc("GET /api/health", s.health)

	return mux
}

// Start 启动 HTTP 服务并在 ctx 取消时优雅关闭。
func (s *Server) Start(ctx context.Context, port int, shutdownTimeout time.Duration) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			s.logger.Warn("关闭管理接口失败", zap.Error(err))
		}
	}()

	s.logger.Info("管理接口已启动", zap.String("addr", addr))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: 管理接口异常: %w", err)
	}
	return nil
}

func (s *Server) requireRoles(next http.HandlerFunc, allowed ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := userFromRequest(r)
		if !u.hasAnyRole(allowed...) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("写入响应失败", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Error("管理接口处理失败", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("server: 解析请求体失败: %w", err)
	}
	return nil
}

type propFirmIn struct {
	Name           string `json:"name"`
	WeekendTrading bool   `json:"weekend_trading"`
	NewsRedBlock   bool   `json:"news_red_block"`
}

func (s *Server) createProp(w http.ResponseWriter, r *http.Request) {
	var in propFirmIn
	if err := decodeBody(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := &model.PropFirm{
		ID:             uuid.NewString(),
		Name:           in.Name,
		WeekendTrading: in.WeekendTrading,
		NewsRedBlock:   in.NewsRedBlock,
	}
	if err := s.deps.Profiles.InsertPropFirm(r.Context(), p); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": p.ID})
}

func (s *Server) listProps(w http.ResponseWriter, r *http.Request) {
	firms, err := s.deps.Profiles.ListPropFirms(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(firms))
	for _, p := range firms {
		out = append(out, map[string]interface{}{
			"id":              p.ID,
			"name":            p.Name,
			"weekend_trading": p.WeekendTrading,
			"news_red_block":  p.NewsRedBlock,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type riskProfileIn struct {
	Name        string  `json:"name"`
	Method      string  `json:"method"`
	RiskPercent float64 `json:"risk_percent"`
	FixedLot    float64 `json:"fixed_lot"`
	MaxLot      float64 `json:"max_lot"`
}

func (s *Server) createRiskProfile(w http.ResponseWriter, r *http.Request) {
	var in riskProfileIn
	if err := decodeBody(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := &model.RiskProfile{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Method:      model.SizingMethod(in.Method),
		RiskPercent: in.RiskPercent,
		FixedLot:    in.FixedLot,
		MaxLot:      in.MaxLot,
	}
	if err := s.deps.Profiles.InsertRiskProfile(r.Context(), p); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": p.ID})
}

type accountIn struct {
	Name          string `json:"name"`
	Platform      string `json:"platform"`
	ExternalID    string `json:"external_id"`
	PropFirmID    string `json:"prop_firm_id"`
	RiskProfileID string `json:"risk_profile_id"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var in accountIn
	if err := decodeBody(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	acc := &model.Account{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Platform:      model.Platform(in.Platform),
		ExternalID:    in.ExternalID,
		PropFirmID:    in.PropFirmID,
		RiskProfileID: in.RiskProfileID,
	}
	if err := s.deps.Accounts.Insert(r.Context(), acc); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": acc.ID})
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.deps.Accounts.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, map[string]interface{}{
			"id":              a.ID,
			"name":            a.Name,
			"platform":        string(a.Platform),
			"external_id":     a.ExternalID,
			"prop_firm_id":    a.PropFirmID,
			"risk_profile_id": a.RiskProfileID,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type masterIn struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	IsActive bool   `json:"is_active"`
}

func (s *Server) createMaster(w http.ResponseWriter, r *http.Request) {
	var in masterIn
	if err := decodeBody(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m := &model.Master{
		ID:       uuid.NewString(),
		Name:     in.Name,
		Source:   in.Source,
		IsActive: in.IsActive,
	}
	if err := s.deps.Masters.Insert(r.Context(), m); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": m.ID})
}

func (s *Server) listMasters(w http.ResponseWriter, r *http.Request) {
	masters, err := s.deps.Masters.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(masters))
	for _, m := range masters {
		out = append(out, map[string]interface{}{
			"id":        m.ID,
			"name":      m.Name,
			"source":    m.Source,
			"is_active": m.IsActive,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

type copySetIn struct {
	Name     string `json:"name"`
	MasterID string `json:"master_id"`
	IsActive bool   `json:"is_active"`
}

func (s *Server) createCopySet(w http.ResponseWriter, r *http.Request) {
	var in copySetIn
	if err := decodeBody(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cs := &model.CopySet{
		ID:       uuid.NewString(),
		Name:     in.Name,
		MasterID: in.MasterID,
		IsActive: in.IsActive,
	}
	if err := s.deps.CopySets.Insert(r.Context(), cs); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": cs.ID})
}

type copySetSlaveIn struct {
	CopySetID string `json:"copy_set_id"`
	AccountID string `json:"account_id"`
}

func (s *Server) addSlave(w http.ResponseWriter, r *http.Request) {
	var in copySetSlaveIn
	if err := decodeBody(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	slave := &model.CopySetSlave{
		ID:        uuid.NewString(),
		CopySetID: in.CopySetID,
		AccountID: in.AccountID,
	}
	if err := s.deps.CopySets.AddSlave(r.Context(), slave); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": slave.ID})
}

func (s *Server) listIntents(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if qs := r.URL.Query().Get("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			if v > 1000 {
				v = 1000
			}
			limit = v
		}
	}

	intents, err := s.deps.Intents.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(intents))
	for _, t := range intents {
		out = append(out, map[string]interface{}{
			"id":         t.ID,
			"master_id":  t.MasterID,
			"symbol":     t.Symbol,
			"side":       string(t.Side),
			"order_type": string(t.OrderType),
			"entry":      t.Entry,
			"zone_low":   t.ZoneLow,
			"zone_high":  t.ZoneHigh,
			"sl":         t.SL,
			"tps":        t.TPs,
			"status":     string(t.Status),
			"created_at": t.CreatedAt.Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) listIntentLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.deps.ExecLogs.ListByIntent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(logs))
	for _, entry := range logs {
		out = append(out, map[string]interface{}{
			"id":         entry.ID,
			"account_id": entry.AccountID,
			"outcome":    string(entry.Outcome),
			"message":    entry.Message,
			"created_at": entry.CreatedAt.Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) queueIntent(w http.ResponseWriter, r *http.Request) {
	intentID := r.PathValue("id")

	intent, err := s.deps.Intents.Get(r.Context(), intentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if intent == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}

	if err := s.deps.Intents.UpdateStatus(r.Context(), intentID, model.IntentStatusQueued); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.deps.Enqueuer.Enqueue(r.Context(), intentID); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"intent_id": intentID, "status": string(model.IntentStatusQueued)})
}

type signalIn struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

func (s *Server) ingestSignal(w http.ResponseWriter, r *http.Request) {
	var in signalIn
	if err := decodeBody(r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	intent, err := s.deps.Ingest.Handle(r.Context(), in.Source, in.Text)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if intent == nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"matched": false})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"matched":   true,
		"intent_id": intent.ID,
		"status":    string(intent.Status),
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	u := userFromRequest(r)

	roles := make([]string, 0, len(u.Roles))
	for role := range u.Roles {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"user":  u.Username,
		"roles": roles,
	})
}
