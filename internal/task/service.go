// Package task はタスク管理のドメインロジックを提供する。
package task

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// CreateInput はタスク作成の入力。StatusとPriorityは省略時に既定値を使う。
type CreateInput struct {
	Title       string
	Description *string
	Status      *string
	Priority    *string
}

// UpdateInput はタスク更新の入力。nilのフィールドは更新しない。
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
}

// Service はタスク管理のサービス層。
// 入力の正規化と検証を行い、所有者を限定したリポジトリ操作を呼び出す。
type Service struct {
	repo    repository.TaskRepository
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(repo repository.TaskRepository, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{repo: repo, metrics: collector}
}

// List は所有者のタスクを作成日時の降順で返す。
func (s *Service) List(ctx context.Context, ownerID string) ([]*model.Task, error) {
	tasks, err := s.repo.ListByOwner(ctx, ownerID)
	s.metrics.RecordTaskOperation("list", err == nil)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	return tasks, nil
}

// Create はタスクを作成する。
// タイトルと説明は前後の空白を除去し、省略された項目には既定値を設定する。
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Task, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}

	t := &model.Task{
		Title:    title,
		Status:   model.TaskStatusTodo,
		Priority: model.TaskPriorityMedium,
		UserID:   ownerID,
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		status, err := parseStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		t.Status = status
	}
	if in.Priority != nil {
		priority, err := parsePriority(*in.Priority)
		if err != nil {
			return nil, err
		}
		t.Priority = priority
	}

	created, err := s.repo.Create(ctx, t)
	s.metrics.RecordTaskOperation("create", err == nil)
	if err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return created, nil
}

// Get は所有者のタスクを返す。
// 存在しないID、他ユーザーのID、不正な形式のIDはいずれも TASK_NOT_FOUND になる。
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Task, error) {
	t, err := s.repo.FindByID(ctx, ownerID, id)
	s.metrics.RecordTaskOperation("get", err == nil)
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(id)
	}
	return t, nil
}

// Update は指定されたフィールドのみ更新する。
// フィールドが1つも指定されていない場合はストアにアクセスせずにエラーを返す。
func (s *Service) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*model.Task, error) {
	patch, err := buildPatch(in)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, model.NewNoFieldsToUpdateError()
	}

	t, err := s.repo.Update(ctx, ownerID, id, patch)
	s.metrics.RecordTaskOperation("update", err == nil)
	if err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTaskNotFoundError(id)
	}
	return t, nil
}

// Delete は所有者のタスクを削除する。
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	deleted, err := s.repo.Delete(ctx, ownerID, id)
	s.metrics.RecordTaskOperation("delete", err == nil)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewTaskNotFoundError(id)
	}
	return nil
}

func buildPatch(in UpdateInput) (model.TaskPatch, error) {
	var patch model.TaskPatch
	if in.Title != nil {
		title, err := normalizeTitle(*in.Title)
		if err != nil {
			return patch, err
		}
		patch.Title = &title
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		patch.Description = &description
	}
	if in.Status != nil {
		status, err := parseStatus(*in.Status)
		if err != nil {
			return patch, err
		}
		patch.Status = &status
	}
	if in.Priority != nil {
		priority, err := parsePriority(*in.Priority)
		if err != nil {
			return patch, err
		}
		patch.Priority = &priority
	}
	return patch, nil
}

// normalizeTitle は前後の空白を除去したタイトルを検証して返す。
func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", model.NewInvalidTitleError("空のタイトルは指定できません")
	}
	if utf8.RuneCountInString(title) > model.TitleMaxLength {
		return "", model.NewInvalidTitleError(fmt.Sprintf("%d文字を超えています", model.TitleMaxLength))
	}
	return title, nil
}

func parseStatus(raw string) (model.TaskStatus, error) {
	status := model.TaskStatus(raw)
	if !status.IsValid() {
		return "", model.NewInvalidStatusError(raw)
	}
	return status, nil
}

func parsePriority(raw string) (model.TaskPriority, error) {
	priority := model.TaskPriority(raw)
	if !priority.IsValid() {
		return "", model.NewInvalidPriorityError(raw)
	}
	return priority, nil
}
