package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-api/internal/auth"
	"github.com/BuzzLyutic/todo-api/internal/model"
	"github.com/BuzzLyutic/todo-api/internal/service"
	"github.com/BuzzLyutic/todo-api/pkg/respond"
)

type TaskHandler struct {
	service *service.TaskService
	errors  *ErrorWriter
	logger  *zap.Logger
}

func NewTaskHandler(srv *service.TaskService, errs *ErrorWriter, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service: srv,
		errors:  errs,
		logger:  logger,
	}
}

type createTaskRequest struct {
	Text string `json:"text"`
}

type listTasksResponse struct {
	Data    []model.Task `json:"data"`
	Message string       `json:"message,omitempty"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("failed to decode json", zap.Error(err))
		h.errors.Write(w, r, errInvalidJSON)
		return
	}

	task, err := h.service.Create(r.Context(), scope, req.Text)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/todos/%d", task.ID))
	respond.JSON(w, r, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.GetAll(r.Context(), scope)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}

	resp := listTasksResponse{Data: tasks}
	if len(tasks) == 0 {
		resp.Data = []model.Task{}
		resp.Message = "No tasks found"
	}
	respond.JSON(w, r, http.StatusOK, resp)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	task, err := h.service.GetByID(r.Context(), scope, id)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	var patch model.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.logger.Debug("failed to decode json", zap.Error(err))
		h.errors.Write(w, r, errInvalidJSON)
		return
	}

	task, err := h.service.Update(r.Context(), scope, id, patch)
	if err != nil {
		h.errors.Write(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, task)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), scope, id); err != nil {
		h.errors.Write(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) scope(w http.ResponseWriter, r *http.Request) (model.Scope, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.errors.Write(w, r, auth.ErrMissingToken)
		return model.Scope{}, false
	}
	return id.Scope(), true
}

// taskID парсит :id; нечисловой id неотличим от отсутствующей задачи.
func (h *TaskHandler) taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.errors.Write(w, r, service.ErrTaskNotFound)
		return 0, false
	}
	return id, true
}
