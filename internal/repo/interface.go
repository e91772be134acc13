package repo

import (
	"context"
	"time"

	"github.com/BuzzLyutic/todo-api/internal/model"
)

// TaskRepository определяет интерфейс для работы с задачами.
// Все вызовы выполняются от имени владельца (scope); для отсутствующей строки возвращается nil без ошибки.
type TaskRepository interface {
	Create(ctx context.Context, scope model.Scope, t model.Task) (model.Task, error)
	FindAll(ctx context.Context, scope model.Scope) ([]model.Task, error)
	FindByID(ctx context.Context, scope model.Scope, id int64) (*model.Task, error)
	Update(ctx context.Context, scope model.Scope, id int64, patch model.TaskPatch, updatedAt time.Time) (*model.Task, error)
	SoftDelete(ctx context.Context, scope model.Scope, id int64, at time.Time) (bool, error)
	CountActive(ctx context.Context, scope model.Scope) (int, error)
}
