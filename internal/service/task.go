package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/BuzzLyutic/todo-api/internal/apperr"
	"github.com/BuzzLyutic/todo-api/internal/model"
	"github.com/BuzzLyutic/todo-api/internal/repo"
)

var (
	ErrTextRequired  = apperr.Validation("Description is required")
	ErrTextTooLong   = apperr.Validation(fmt.Sprintf("Description cannot exceed %d characters", model.MaxTextLength))
	ErrNothingToEdit = apperr.Validation("At least one field to update is required")
	ErrTaskNotFound  = apperr.NotFound("Task not found")
)

type TaskService struct {
	repo     repo.TaskRepository
	maxTasks int
	now      func() time.Time
}

func NewTaskService(repo repo.TaskRepository, maxTasks int) *TaskService {
	return &TaskService{
		repo:     repo,
		maxTasks: maxTasks,
		now:      time.Now,
	}
}

// WithClock подменяет источник времени (для тестов).
func (s *TaskService) WithClock(now func() time.Time) *TaskService {
	s.now = now
	return s
}

func (s *TaskService) Create(ctx context.Context, scope model.Scope, text string) (model.Task, error) {
	text, err := normalizeText(text) // Валидация текста задачи
	if err != nil {
		return model.Task{}, err
	}

	// Проверка квоты до вставки: не атомарно, два параллельных запроса могут превысить лимит на один
	count, err := s.repo.CountActive(ctx, scope)
	if err != nil {
		return model.Task{}, errors.Wrap(err, "count active tasks")
	}
	if count >= s.maxTasks {
		return model.Task{}, apperr.New(apperr.ErrQuotaExceeded, fmt.Sprintf("Task limit of %d reached", s.maxTasks))
	}

	task, err := s.repo.Create(ctx, scope, model.Task{
		Text:      text,
		Completed: false,
		IsDeleted: false,
		OwnerID:   scope.OwnerID,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return model.Task{}, errors.Wrap(err, "create task")
	}
	return task, nil
}

func (s *TaskService) GetAll(ctx context.Context, scope model.Scope) ([]model.Task, error) {
	tasks, err := s.repo.FindAll(ctx, scope)
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	return tasks, nil
}

func (s *TaskService) GetByID(ctx context.Context, scope model.Scope, id int64) (model.Task, error) {
	task, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return model.Task{}, errors.Wrap(err, "find task")
	}
	if task == nil {
		return model.Task{}, ErrTaskNotFound
	}
	return *task, nil
}

func (s *TaskService) Update(ctx context.Context, scope model.Scope, id int64, patch model.TaskPatch) (model.Task, error) {
	// Сначала проверяем существование и владельца
	if _, err := s.GetByID(ctx, scope, id); err != nil {
		return model.Task{}, err
	}

	if patch.Empty() {
		return model.Task{}, ErrNothingToEdit
	}
	if patch.Text != nil {
		text, err := normalizeText(*patch.Text)
		if err != nil {
			return model.Task{}, err
		}
		patch.Text = &text
	}

	task, err := s.repo.Update(ctx, scope, id, patch, s.now().UTC())
	if err != nil {
		return model.Task{}, errors.Wrap(err, "update task")
	}
	if task == nil { // удалена между проверкой и обновлением
		return model.Task{}, ErrTaskNotFound
	}
	return *task, nil
}

// Delete выполняет мягкое удаление: строка остается, но исключается из всех чтений.
func (s *TaskService) Delete(ctx context.Context, scope model.Scope, id int64) error {
	if _, err := s.GetByID(ctx, scope, id); err != nil {
		return err
	}

	ok, err := s.repo.SoftDelete(ctx, scope, id, s.now().UTC())
	if err != nil {
		return errors.Wrap(err, "delete task")
	}
	if !ok {
		return ErrTaskNotFound
	}
	return nil
}

func normalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrTextRequired
	}
	if utf8.RuneCountInString(text) > model.MaxTextLength {
		return "", ErrTextTooLong
	}
	return text, nil
}
