package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"copyflow/internal/model"
)

// ProfileRepo 负责合规档案与风险档案的持久化。
type ProfileRepo struct {
	db *sql.DB
}

// NewProfileRepo 创建仓储并初始化表结构。
func NewProfileRepo(store *Store) (*ProfileRepo, error) {
	if store == nil {
		return nil, errors.New("store: store 不能为空")
	}

	r := &ProfileRepo{db: store.DB()}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ProfileRepo) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS prop_firms (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	weekend_trading INTEGER NOT NULL DEFAULT 0,
	news_red_block INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS risk_profiles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	method TEXT NOT NULL,
	risk_percent REAL,
	fixed_lot REAL,
	max_lot REAL
);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化档案表失败: %w", err)
	}
	return nil
}

// InsertPropFirm 写入一个合规档案。
func (r *ProfileRepo) InsertPropFirm(ctx context.Context, p *model.PropFirm) error {
	if p == nil {
		return errors.New("store: prop firm 不能为空")
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO prop_firms (id, name, weekend_trading, news_red_block) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, boolInt(p.WeekendTrading), boolInt(p.NewsRedBlock),
	); err != nil {
		return fmt.Errorf("store: 写入合规档案失败: %w", err)
	}
	return nil
}

// GetPropFirm 按标识查询合规档案，不存在时返回 nil。
func (r *ProfileRepo) GetPropFirm(ctx context.Context, id string) (*model.PropFirm, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, weekend_trading, news_red_block FROM prop_firms WHERE id = ?`, id)

	var (
		p       model.PropFirm
		weekend int
		newsRed int
	)
	switch err := row.Scan(&p.ID, &p.Name, &weekend, &newsRed); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("store: 查询合规档案失败: %w", err)
	}

	p.WeekendTrading = weekend == 1
	p.NewsRedBlock = newsRed == 1
	return &p, nil
}

// ListPropFirms 返回全部合规档案。
func (r *ProfileRepo) ListPropFirms(ctx context.Context) ([]model.PropFirm, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, weekend_trading, news_red_block FROM prop_firms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: 查询合规档案列表失败: %w", err)
	}
	defer rows.Close()

	firms := make([]model.PropFirm, 0, 8)
	for rows.Next() {
		var (
			p       model.PropFirm
			weekend int
			newsRed int
		)
		if err := rows.Scan(&p.ID, &p.Name, &weekend, &newsRed); err != nil {
			return nil, fmt.Errorf("store: 读取合规档案失败: %w", err)
		}
		p.WeekendTrading = weekend == 1
		p.NewsRedBlock = newsRed == 1
		firms = append(firms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历合规档案失败: %w", err)
	}
	return firms, nil
}

// InsertRiskProfile 写入一个风险档案。
func (r *ProfileRepo) InsertRiskProfile(ctx context.Context, p *model.RiskProfile) error {
	if p == nil {
		return errors.New("store: risk profile 不能为空")
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO risk_profiles (id, name, method, risk_percent, fixed_lot, max_lot) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Method), p.RiskPercent, p.FixedLot, p.MaxLot,
	); err != nil {
		return fmt.Errorf("store: 写入风险档案失败: %w", err)
	}
	return nil
}

// GetRiskProfile 按标识查询风险档案，不存在时返回 nil。
func (r *ProfileRepo) GetRiskProfile(ctx context.Context, id string) (*model.RiskProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, method, risk_percent, fixed_lot, max_lot FROM risk_profiles WHERE id = ?`, id)

	var (
		p      model.RiskProfile
		method string
	)
	switch err := row.Scan(&p.ID, &p.Name, &method, &p.RiskPercent, &p.FixedLot, &p.MaxLot); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("store: 查询风险档案失败: %w", err)
	}

	p.Method = model.SizingMethod(method)
	return &p, nil
}
