package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresAllowListRepo はPostgreSQLを使用した許可リストリポジトリ。
// allowed_usersテーブルは一般ロールから参照できないため、特権接続を渡すこと。
type PostgresAllowListRepo struct {
	db *sql.DB
}

// NewPostgresAllowListRepo はPostgresAllowListRepoを生成する。
func NewPostgresAllowListRepo(adminDB *sql.DB) *PostgresAllowListRepo {
	return &PostgresAllowListRepo{db: adminDB}
}

// Exists は指定種別とパターンに一致するエントリが存在するかを返す。
func (r *PostgresAllowListRepo) Exists(ctx context.Context, entryType model.AllowListEntryType, pattern string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM allowed_users WHERE type = $1 AND pattern = $2 LIMIT 1`,
		string(entryType), pattern,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query allow list: %w", err)
	}
	return true, nil
}

// List は全エントリを種別、パターンの順で返す。
func (r *PostgresAllowListRepo) List(ctx context.Context) ([]*model.AllowListEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, pattern, created_at FROM allowed_users ORDER BY type, pattern`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list allow list: %w", err)
	}
	defer rows.Close()

	var entries []*model.AllowListEntry
	for rows.Next() {
		var entry model.AllowListEntry
		var entryType string
		if err := rows.Scan(&entry.ID, &entryType, &entry.Pattern, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allow list entry: %w", err)
		}
		entry.Type = model.AllowListEntryType(entryType)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allow list: %w", err)
	}
	return entries, nil
}

// Add はエントリを追加する。同じ種別とパターンが既にあれば何もしない。
func (r *PostgresAllowListRepo) Add(ctx context.Context, entry *model.AllowListEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO allowed_users (id, type, pattern)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (type, pattern) DO NOTHING`,
		entry.ID, string(entry.Type), entry.Pattern,
	)
	if err != nil {
		return fmt.Errorf("failed to add allow list entry: %w", err)
	}
	return nil
}

// Remove はパターンに一致するエントリを削除する。
func (r *PostgresAllowListRepo) Remove(ctx context.Context, pattern string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM allowed_users WHERE pattern = $1`,
		pattern,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove allow list entry: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ AllowListRepository = (*PostgresAllowListRepo)(nil)
