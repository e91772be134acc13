package client

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/BuzzLyutic/todo-api/internal/model"
)

// TaskState mirrors the server's task list for the signed-in user.
type TaskState struct {
	Items     []model.Task
	IsLoading bool
	Error     string
}

// TaskAPI is the part of the REST client the task store calls.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, text string) (model.Task, error)
	UpdateTask(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

func tasksLoading(s TaskState) TaskState {
	s.IsLoading = true
	s.Error = ""
	return s
}

func tasksFailed(err error, fallback string) func(TaskState) TaskState {
	return func(s TaskState) TaskState {
		s.IsLoading = false
		s.Error = errorMessage(err, fallback)
		return s
	}
}

func tasksLoaded(items []model.Task) func(TaskState) TaskState {
	return func(TaskState) TaskState {
		return TaskState{Items: append([]model.Task(nil), items...)}
	}
}

func taskAdded(t model.Task) func(TaskState) TaskState {
	return func(s TaskState) TaskState {
		items := make([]model.Task, 0, len(s.Items)+1)
		items = append(items, s.Items...)
		return TaskState{Items: append(items, t)}
	}
}

func taskReplaced(t model.Task) func(TaskState) TaskState {
	return func(s TaskState) TaskState {
		items := make([]model.Task, len(s.Items))
		for i, item := range s.Items {
			if item.ID == t.ID {
				item = t
			}
			items[i] = item
		}
		return TaskState{Items: items}
	}
}

func taskRemoved(id int64) func(TaskState) TaskState {
	return func(s TaskState) TaskState {
		items := make([]model.Task, 0, len(s.Items))
		for _, item := range s.Items {
			if item.ID != id {
				items = append(items, item)
			}
		}
		return TaskState{Items: items}
	}
}

type TaskStore struct {
	api   TaskAPI
	state *observable[TaskState]
	fetch singleflight.Group
}

func NewTaskStore(api TaskAPI) *TaskStore {
	return &TaskStore{api: api, state: newObservable(TaskState{})}
}

func (s *TaskStore) State() TaskState {
	return s.state.get()
}

func (s *TaskStore) Subscribe(fn func(TaskState)) (unsubscribe func()) {
	return s.state.subscribe(fn)
}

// FetchTasks reloads the list. Concurrent calls share one request.
func (s *TaskStore) FetchTasks(ctx context.Context) error {
	_, err, _ := s.fetch.Do("tasks", func() (interface{}, error) {
		s.state.apply(tasksLoading)

		items, err := s.api.ListTasks(ctx)
		if err != nil {
			s.state.apply(tasksFailed(err, "Failed to fetch tasks"))
			return nil, err
		}
		s.state.apply(tasksLoaded(items))
		return nil, nil
	})
	return err
}

func (s *TaskStore) AddTask(ctx context.Context, text string) (model.Task, error) {
	s.state.apply(tasksLoading)

	task, err := s.api.CreateTask(ctx, text)
	if err != nil {
		s.state.apply(tasksFailed(err, "Failed to add task"))
		return model.Task{}, err
	}
	s.state.apply(taskAdded(task))
	return task, nil
}

func (s *TaskStore) UpdateTask(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error) {
	s.state.apply(tasksLoading)

	task, err := s.api.UpdateTask(ctx, id, patch)
	if err != nil {
		s.state.apply(tasksFailed(err, "Failed to update task"))
		return model.Task{}, err
	}
	s.state.apply(taskReplaced(task))
	return task, nil
}

func (s *TaskStore) RemoveTask(ctx context.Context, id int64) error {
	s.state.apply(tasksLoading)

	if err := s.api.DeleteTask(ctx, id); err != nil {
		s.state.apply(tasksFailed(err, "Failed to delete task"))
		return err
	}
	s.state.apply(taskRemoved(id))
	return nil
}
