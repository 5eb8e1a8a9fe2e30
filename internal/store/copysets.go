package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"copyflow/internal/model"
)

// CopySetRepo 负责跟单分组及其成员的持久化。
type CopySetRepo struct {
	db *sql.DB
}

// NewCopySetRepo 创建仓储并初始化表结构。
func NewCopySetRepo(store *Store) (*CopySetRepo, error) {
	if store == nil {
		return nil, errors.New("store: store 不能为空")
	}

	r := &CopySetRepo{db: store.DB()}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CopySetRepo) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS copy_sets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	master_id TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_copy_sets_master ON copy_sets(master_id);
CREATE TABLE IF NOT EXISTS copy_set_slaves (
	id TEXT PRIMARY KEY,
	copy_set_id TEXT NOT NULL,
	account_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_copy_set_slaves_set ON copy_set_slaves(copy_set_id);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化 copy_sets 表失败: %w", err)
	}
	return nil
}

// Insert 写入一个跟单分组。
func (r *CopySetRepo) Insert(ctx context.Context, cs *model.CopySet) error {
	if cs == nil {
		return errors.New("store: copyset 不能为空")
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO copy_sets (id, name, master_id, is_active) VALUES (?, ?, ?, ?)`,
		cs.ID, cs.Name, cs.MasterID, boolInt(cs.IsActive),
	); err != nil {
		return fmt.Errorf("store: 写入跟单分组失败: %w", err)
	}
	return nil
}

// AddSlave 将账户加入分组。
func (r *CopySetRepo) AddSlave(ctx context.Context, slave *model.CopySetSlave) error {
	if slave == nil {
		return errors.New("store: slave 不能为空")
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO copy_set_slaves (id, copy_set_id, account_id) VALUES (?, ?, ?)`,
		slave.ID, slave.CopySetID, slave.AccountID,
	); err != nil {
		return fmt.Errorf("store: 写入分组成员失败: %w", err)
	}
	return nil
}

// ActiveByMaster 返回指定信号源下全部启用的分组。
func (r *CopySetRepo) ActiveByMaster(ctx context.Context, masterID string) ([]model.CopySet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, master_id, is_active FROM copy_sets WHERE master_id = ? AND is_active = 1`, masterID)
	if err != nil {
		return nil, fmt.Errorf("store: 查询启用分组失败: %w", err)
	}
	defer rows.Close()

	sets := make([]model.CopySet, 0, 4)
	for rows.Next() {
		var (
			cs     model.CopySet
			active int
		)
		if err := rows.Scan(&cs.ID, &cs.Name, &cs.MasterID, &active); err != nil {
			return nil, fmt.Errorf("store: 读取分组失败: %w", err)
		}
		cs.IsActive = active == 1
		sets = append(sets, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历分组失败: %w", err)
	}
	return sets, nil
}

// SlavesByCopySet 返回分组内全部成员。
func (r *CopySetRepo) SlavesByCopySet(ctx context.Context, copySetID string) ([]model.CopySetSlave, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, copy_set_id, account_id FROM copy_set_slaves WHERE copy_set_id = ?`, copySetID)
	if err != nil {
		return nil, fmt.Errorf("store: 查询分组成员失败: %w", err)
	}
	defer rows.Close()

	slaves := make([]model.CopySetSlave, 0, 8)
	for rows.Next() {
		var s model.CopySetSlave
		if err := rows.Scan(&s.ID, &s.CopySetID, &s.AccountID); err != nil {
			return nil, fmt.Errorf("store: 读取分组成员失败: %w", err)
		}
		slaves = append(slaves, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历分组成员失败: %w", err)
	}
	return slaves, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
