// pkg/middleware/validation.go
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

const maxBodySize = 1 << 20

// ErrorResponse стандартный формат ошибки API
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ValidateRequest проверяет корректность запроса перед передачей его обработчику
func ValidateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			// Проверка Content-Type для POST/PUT запросов
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				writeError(w, http.StatusBadRequest, "invalid Content-Type, expected application/json")
				return
			}
			// Пустое тело для POST/PUT не принимаем
			if r.ContentLength == 0 {
				writeError(w, http.StatusBadRequest, "request body cannot be empty")
				return
			}
		}

		// Максимальный размер тела запроса (1MB)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}
