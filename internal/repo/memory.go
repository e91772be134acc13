package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BuzzLyutic/todo-api/internal/model"
)

// MemoryTaskRepo хранит задачи в памяти процесса (STORAGE_DRIVER=memory, тесты).
type MemoryTaskRepo struct {
	mu     sync.RWMutex
	nextID int64
	tasks  map[int64]*model.Task
}

func NewMemoryTaskRepo() *MemoryTaskRepo {
	return &MemoryTaskRepo{
		tasks: make(map[int64]*model.Task),
	}
}

func (r *MemoryTaskRepo) Create(_ context.Context, scope model.Scope, t model.Task) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	t.ID = r.nextID
	t.OwnerID = scope.OwnerID
	t.IsDeleted = false
	t.UpdatedAt = nil
	t.DeletedAt = nil

	stored := t
	r.tasks[t.ID] = &stored
	return t, nil
}

func (r *MemoryTaskRepo) FindAll(_ context.Context, scope model.Scope) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]model.Task, 0)
	for _, t := range r.tasks {
		if r.visible(t, scope) {
			tasks = append(tasks, *t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (r *MemoryTaskRepo) FindByID(_ context.Context, scope model.Scope, id int64) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok || !r.visible(t, scope) {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *MemoryTaskRepo) Update(_ context.Context, scope model.Scope, id int64, patch model.TaskPatch, updatedAt time.Time) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || !r.visible(t, scope) {
		return nil, nil
	}
	if patch.Text != nil {
		t.Text = *patch.Text
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	at := updatedAt
	t.UpdatedAt = &at

	cp := *t
	return &cp, nil
}

func (r *MemoryTaskRepo) SoftDelete(_ context.Context, scope model.Scope, id int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || !r.visible(t, scope) {
		return false, nil
	}
	stamp := at
	t.IsDeleted = true
	t.DeletedAt = &stamp
	t.UpdatedAt = &stamp
	return true, nil
}

func (r *MemoryTaskRepo) CountActive(_ context.Context, scope model.Scope) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, t := range r.tasks {
		if r.visible(t, scope) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryTaskRepo) visible(t *model.Task, scope model.Scope) bool {
	return t.OwnerID == scope.OwnerID && !t.IsDeleted
}
