package handler

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-api/internal/apperr"
	"github.com/BuzzLyutic/todo-api/pkg/respond"
)

const internalErrorMessage = "Internal server error"

var errInvalidJSON = apperr.Validation("Invalid JSON body")

// ErrorWriter сериализует любую ошибку в {success:false, message, path}.
type ErrorWriter struct {
	logger  *zap.Logger
	devMode bool
}

// NewErrorWriter creates the central error writer. In devMode 500 responses carry a stack trace.
func NewErrorWriter(logger *zap.Logger, devMode bool) *ErrorWriter {
	return &ErrorWriter{logger: logger, devMode: devMode}
}

func (e *ErrorWriter) Write(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)

	if status != http.StatusInternalServerError {
		body := respond.ErrorBody{Message: http.StatusText(status)}
		if ae, ok := apperr.As(err); ok {
			body.Message = ae.Message
			body.Code = ae.Code
			body.RequiresLogin = ae.RequiresLogin
		}
		respond.Fail(w, r, status, body)
		return
	}

	// Детали только в лог, клиенту - общее сообщение
	e.logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)

	body := respond.ErrorBody{Message: internalErrorMessage}
	if e.devMode {
		body.Stack = fmt.Sprintf("%+v", err)
	}
	respond.Fail(w, r, status, body)
}
