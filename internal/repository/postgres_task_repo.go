package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
)

const taskColumns = `id, title, description, status, priority, user_id, created_at, updated_at`

// taskRow はtasksテーブルの1行をそのまま表す。
type taskRow struct {
	id          string
	title       string
	description string
	status      string
	priority    string
	userID      string
	createdAt   time.Time
	updatedAt   time.Time
}

// toTask はストレージの行をドメインモデルに変換する。
func (row *taskRow) toTask() *model.Task {
	return &model.Task{
		ID:          row.id,
		Title:       row.title,
		Description: row.description,
		Status:      model.TaskStatus(row.status),
		Priority:    model.TaskPriority(row.priority),
		UserID:      row.userID,
		CreatedAt:   row.createdAt,
		UpdatedAt:   row.updatedAt,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(s rowScanner) (*model.Task, error) {
	var row taskRow
	if err := s.Scan(&row.id, &row.title, &row.description, &row.status,
		&row.priority, &row.userID, &row.createdAt, &row.updatedAt); err != nil {
		return nil, err
	}
	return row.toTask(), nil
}

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// 低権限接続で動作し、トランザクションごとに app.user_id を設定して
// RLSポリシーの判定対象にする。SQLにも所有者条件を必ず含める。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// withOwner は所有者IDをセッション変数に設定したトランザクション内でfnを実行する。
func (r *PostgresTaskRepo) withOwner(ctx context.Context, ownerID string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT set_config('app.user_id', $1, true)`, ownerID); err != nil {
		return fmt.Errorf("failed to set owner context: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListByOwner は所有者のタスクを作成日時の降順で返す。
func (r *PostgresTaskRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Task, error) {
	tasks := []*model.Task{}
	err := r.withOwner(ctx, ownerID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+taskColumns+`
			 FROM tasks
			 WHERE user_id = $1
			 ORDER BY created_at DESC`,
			ownerID,
		)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			task, err := scanTask(rows)
			if err != nil {
				return fmt.Errorf("failed to scan task: %w", err)
			}
			tasks = append(tasks, task)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// FindByID は所有者のタスクを取得する。
// 存在しない場合、他ユーザーの場合、IDがUUID形式でない場合はいずれもnilを返す。
func (r *PostgresTaskRepo) FindByID(ctx context.Context, ownerID, id string) (*model.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var task *model.Task
	err := r.withOwner(ctx, ownerID, func(tx *sql.Tx) error {
		found, err := scanTask(tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+`
			 FROM tasks
			 WHERE id = $1 AND user_id = $2`,
			id, ownerID,
		))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find task: %w", err)
		}
		task = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Create はタスクを作成する。IDはアプリケーション側で採番し、タイムスタンプはDBが設定する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	var created *model.Task
	err := r.withOwner(ctx, task.UserID, func(tx *sql.Tx) error {
		found, err := scanTask(tx.QueryRowContext(ctx,
			`INSERT INTO tasks (id, title, description, status, priority, user_id)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+taskColumns,
			task.ID, task.Title, task.Description, string(task.Status), string(task.Priority), task.UserID,
		))
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		created = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update は指定フィールドのみ更新する。updated_atは常に現在時刻に更新する。
// 対象がない場合はnilを返す。
func (r *PostgresTaskRepo) Update(ctx context.Context, ownerID, id string, patch model.TaskPatch) (*model.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var sets []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Status != nil {
		set("status", string(*patch.Status))
	}
	if patch.Priority != nil {
		set("priority", string(*patch.Priority))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id, ownerID)

	query := fmt.Sprintf(
		`UPDATE tasks SET %s WHERE id = $%d AND user_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), taskColumns,
	)

	var updated *model.Task
	err := r.withOwner(ctx, ownerID, func(tx *sql.Tx) error {
		found, err := scanTask(tx.QueryRowContext(ctx, query, args...))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		updated = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete はタスクを削除する。削除対象がなかった場合はfalseを返す。
func (r *PostgresTaskRepo) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	var deleted bool
	err := r.withOwner(ctx, ownerID, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
			id, ownerID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		deleted = rowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
