package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"copyflow/internal/model"
)

// MasterRepo 负责信号源的持久化。
type MasterRepo struct {
	db *sql.DB
}

// NewMasterRepo 创建仓储并初始化表结构。
func NewMasterRepo(store *Store) (*MasterRepo, error) {
	if store == nil {
		return nil, errors.New("store: store 不能为空")
	}

	r := &MasterRepo{db: store.DB()}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MasterRepo) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS masters (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	source TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1
);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化 masters 表失败: %w", err)
	}
	return nil
}

// Insert 写入一个信号源。
func (r *MasterRepo) Insert(ctx context.Context, m *model.Master) error {
	if m == nil {
		return errors.New("store: master 不能为空")
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO masters (id, name, source, is_active) VALUES (?, ?, ?, ?)`,
		m.ID, m.Name, m.Source, boolInt(m.IsActive),
	); err != nil {
		return fmt.Errorf("store: 写入信号源失败: %w", err)
	}
	return nil
}

// ActiveBySource 返回指定来源下第一个启用的信号源，不存在时返回 nil。
func (r *MasterRepo) ActiveBySource(ctx context.Context, source string) (*model.Master, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, source, is_active FROM masters WHERE source = ? AND is_active = 1 LIMIT 1`, source)

	m, err := scanMaster(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: 查询信号源失败: %w", err)
	}
	return m, nil
}

// List 返回全部信号源。
func (r *MasterRepo) List(ctx context.Context) ([]model.Master, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, source, is_active FROM masters ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: 查询信号源列表失败: %w", err)
	}
	defer rows.Close()

	masters := make([]model.Master, 0, 8)
	for rows.Next() {
		m, err := scanMaster(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: 读取信号源失败: %w", err)
		}
		masters = append(masters, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历信号源失败: %w", err)
	}
	return masters, nil
}

func scanMaster(scan func(dest ...interface{}) error) (*model.Master, error) {
	var (
		m      model.Master
		active int
	)
	if err := scan(&m.ID, &m.Name, &m.Source, &active); err != nil {
		return nil, err
	}
	m.IsActive = active == 1
	return &m, nil
}
