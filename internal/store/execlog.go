package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"copyflow/internal/model"
)

// ExecLogRepo 负责执行审计记录的持久化，只提供追加与查询。
type ExecLogRepo struct {
	db *sql.DB
}

// NewExecLogRepo 创建仓储并初始化表结构。
func NewExecLogRepo(store *Store) (*ExecLogRepo, error) {
	if store == nil {
		return nil, errors.New("store: store 不能为空")
	}

	r := &ExecLogRepo{db: store.DB()}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ExecLogRepo) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS execution_logs (
	id TEXT PRIMARY KEY,
	trade_intent_id TEXT NOT NULL,
	account_id TEXT NOT NULL,
	outcome TEXT NOT NULL,
	message TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_execution_logs_intent ON execution_logs(trade_intent_id);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化 execution_logs 表失败: %w", err)
	}
	return nil
}

// Append 追加一条审计记录，每条记录是独立的持久化单元。
func (r *ExecLogRepo) Append(ctx context.Context, entry *model.ExecutionLog) error {
	if entry == nil {
		return errors.New("store: execution log 不能为空")
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO execution_logs (id, trade_intent_id, account_id, outcome, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TradeIntentID, entry.AccountID, string(entry.Outcome),
		entry.Message, entry.CreatedAt.Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("store: 写入审计记录失败: %w", err)
	}
	return nil
}

// ListByIntent 返回某个意图的全部审计记录，按写入顺序排列。
func (r *ExecLogRepo) ListByIntent(ctx context.Context, intentID string) ([]model.ExecutionLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trade_intent_id, account_id, outcome, message, created_at
		 FROM execution_logs WHERE trade_intent_id = ? ORDER BY created_at, id`, intentID)
	if err != nil {
		return nil, fmt.Errorf("store: 查询审计记录失败: %w", err)
	}
	defer rows.Close()

	logs := make([]model.ExecutionLog, 0, 8)
	for rows.Next() {
		var (
			entry   model.ExecutionLog
			outcome string
			message sql.NullString
			created string
		)
		if err := rows.Scan(&entry.ID, &entry.TradeIntentID, &entry.AccountID, &outcome, &message, &created); err != nil {
			return nil, fmt.Errorf("store: 读取审计记录失败: %w", err)
		}
		entry.Outcome = model.LogOutcome(outcome)
		entry.Message = message.String
		if ts, err := time.Parse(time.RFC3339, created); err == nil {
			entry.CreatedAt = ts
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历审计记录失败: %w", err)
	}
	return logs, nil
}
