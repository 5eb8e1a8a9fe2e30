package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"copyflow/internal/model"
)

// IntentRepo 负责交易意图的持久化。
type IntentRepo struct {
	db *sql.DB
}

// NewIntentRepo 创建仓储并初始化表结构。
func NewIntentRepo(store *Store) (*IntentRepo, error) {
	if store == nil {
		return nil, errors.New("store: store 不能为空")
	}

	r := &IntentRepo{db: store.DB()}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *IntentRepo) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS trade_intents (
	id TEXT PRIMARY KEY,
	master_id TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	order_type TEXT NOT NULL,
	entry REAL,
	zone_low REAL,
	zone_high REAL,
	sl REAL,
	tps TEXT,
	raw_text TEXT,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_intents_master ON trade_intents(master_id);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化 trade_intents 表失败: %w", err)
	}
	return nil
}

// Insert 写入一条新的交易意图。
func (r *IntentRepo) Insert(ctx context.Context, intent *model.TradeIntent) error {
	if intent == nil {
		return errors.New("store: intent 不能为空")
	}

	var tps sql.NullString
	if len(intent.TPs) > 0 {
		raw, err := json.Marshal(intent.TPs)
		if err != nil {
			return fmt.Errorf("store: 序列化止盈列表失败: %w", err)
		}
		tps = sql.NullString{String: string(raw), Valid: true}
	}

	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trade_intents (id, master_id, symbol, side, order_type, entry, zone_low, zone_high, sl, tps, raw_text, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		intent.ID, intent.MasterID, intent.Symbol, string(intent.Side), string(intent.OrderType),
		nullFloat(intent.Entry), nullFloat(intent.ZoneLow), nullFloat(intent.ZoneHigh), nullFloat(intent.SL),
		tps, intent.RawText, string(intent.Status), intent.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: 写入交易意图失败: %w", err)
	}
	return nil
}

// Get 按标识查询交易意图，不存在时返回 nil。
func (r *IntentRepo) Get(ctx context.Context, id string) (*model.TradeIntent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, master_id, symbol, side, order_type, entry, zone_low, zone_high, sl, tps, raw_text, status, created_at
		 FROM trade_intents WHERE id = ?`, id)

	intent, err := scanIntent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: 查询交易意图失败: %w", err)
	}
	return intent, nil
}

// UpdateStatus 只更新状态字段，作为独立的持久化单元。
func (r *IntentRepo) UpdateStatus(ctx context.Context, id string, status model.IntentStatus) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE trade_intents SET status = ? WHERE id = ?`, string(status), id,
	); err != nil {
		return fmt.Errorf("store: 更新意图状态失败: %w", err)
	}
	return nil
}

// List 按时间倒序返回最近的交易意图。
func (r *IntentRepo) List(ctx context.Context, limit int) ([]model.TradeIntent, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, master_id, symbol, side, order_type, entry, zone_low, zone_high, sl, tps, raw_text, status, created_at
		 FROM trade_intents ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: 查询交易意图列表失败: %w", err)
	}
	defer rows.Close()

	intents := make([]model.TradeIntent, 0, limit)
	for rows.Next() {
		intent, err := scanIntent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: 读取交易意图失败: %w", err)
		}
		intents = append(intents, *intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历交易意图失败: %w", err)
	}
	return intents, nil
}

func scanIntent(scan func(dest ...interface{}) error) (*model.TradeIntent, error) {
	var (
		intent  model.TradeIntent
		side    string
		otype   string
		status  string
		entry   sql.NullFloat64
		zoneLo  sql.NullFloat64
		zoneHi  sql.NullFloat64
		sl      sql.NullFloat64
		tps     sql.NullString
		raw     sql.NullString
		created string
	)

	if err := scan(&intent.ID, &intent.MasterID, &intent.Symbol, &side, &otype,
		&entry, &zoneLo, &zoneHi, &sl, &tps, &raw, &status, &created); err != nil {
		return nil, err
	}

	intent.Side = model.Side(side)
	intent.OrderType = model.OrderType(otype)
	intent.Status = model.IntentStatus(status)
	intent.Entry = floatPtr(entry)
	intent.ZoneLow = floatPtr(zoneLo)
	intent.ZoneHigh = floatPtr(zoneHi)
	intent.SL = floatPtr(sl)
	if raw.Valid {
		intent.RawText = raw.String
	}
	if tps.Valid && tps.String != "" {
		if err := json.Unmarshal([]byte(tps.String), &intent.TPs); err != nil {
			return nil, fmt.Errorf("解析止盈列表失败: %w", err)
		}
	}
	if ts, err := time.Parse(time.RFC3339, created); err == nil {
		intent.CreatedAt = ts
	}

	return &intent, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
