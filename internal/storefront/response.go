package storefront

import (
	"encoding/json"
	"net/http"
	"time"

	"ms-storefront/internal/checkout"
	"ms-storefront/internal/logger"
)

type APIResponse struct {
	Success   bool                 `json:"success"`
	Message   string               `json:"message"`
	Data      interface{}          `json:"data,omitempty"`
	Error     string               `json:"error,omitempty"`
	Fields    checkout.FieldErrors `json:"fields,omitempty"`
	Retryable bool                 `json:"retryable,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Timestamp: time.Now(),
	}
}

func writeJSON(w http.ResponseWriter, log *logger.Logger, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("HTTP", "failed to encode response: "+err.Error())
	}
}
