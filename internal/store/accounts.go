package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"copyflow/internal/model"
)

// AccountRepo 负责下游账户的持久化。
type AccountRepo struct {
	db *sql.DB
}

// NewAccountRepo 创建仓储并初始化表结构。
func NewAccountRepo(store *Store) (*AccountRepo, error) {
	if store == nil {
		return nil, errors.New("store: store 不能为空")
	}

	r := &AccountRepo{db: store.DB()}
	if err := r.initSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *AccountRepo) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	platform TEXT NOT NULL,
	external_id TEXT,
	prop_firm_id TEXT,
	risk_profile_id TEXT
);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: 初始化 accounts 表失败: %w", err)
	}
	return nil
}

// Insert 写入一个账户。
func (r *AccountRepo) Insert(ctx context.Context, acc *model.Account) error {
	if acc == nil {
		return errors.New("store: account 不能为空")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, platform, external_id, prop_firm_id, risk_profile_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		acc.ID, acc.Name, string(acc.Platform), nullString(acc.ExternalID),
		nullString(acc.PropFirmID), nullString(acc.RiskProfileID),
	)
	if err != nil {
		return fmt.Errorf("store: 写入账户失败: %w", err)
	}
	return nil
}

// Get 按标识查询账户，不存在时返回 nil。
func (r *AccountRepo) Get(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, platform, external_id, prop_firm_id, risk_profile_id FROM accounts WHERE id = ?`, id)

	acc, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: 查询账户失败: %w", err)
	}
	return acc, nil
}

// List 返回全部账户。
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, platform, external_id, prop_firm_id, risk_profile_id FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: 查询账户列表失败: %w", err)
	}
	defer rows.Close()

	accounts := make([]model.Account, 0, 16)
	for rows.Next() {
		acc, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("store: 读取账户失败: %w", err)
		}
		accounts = append(accounts, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历账户失败: %w", err)
	}
	return accounts, nil
}

func scanAccount(scan func(dest ...interface{}) error) (*model.Account, error) {
	var (
		acc      model.Account
		platform string
		external sql.NullString
		propID   sql.NullString
		riskID   sql.NullString
	)

	if err := scan(&acc.ID, &acc.Name, &platform, &external, &propID, &riskID); err != nil {
		return nil, err
	}

	acc.Platform = model.Platform(platform)
	acc.ExternalID = external.String
	acc.PropFirmID = propID.String
	acc.RiskProfileID = riskID.String
	return &acc, nil
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
