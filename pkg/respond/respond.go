package respond

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the envelope of every non-2xx response.
type ErrorBody struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Path          string `json:"path"`
	Code          string `json:"code,omitempty"`
	RequiresLogin bool   `json:"requiresLogin,omitempty"`
	Stack         string `json:"stack,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func Error(w http.ResponseWriter, r *http.Request, code int, message string) {
	Fail(w, r, code, ErrorBody{Message: message})
}

// Fail пишет ErrorBody, проставляя success=false и путь запроса.
func Fail(w http.ResponseWriter, r *http.Request, code int, body ErrorBody) {
	body.Success = false
	body.Path = r.URL.Path
	JSON(w, r, code, body)
}
