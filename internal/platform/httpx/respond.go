// Package httpx writes JSON responses for the few machine-readable endpoints.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON error payload.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// JSON sends a JSON response with the given status code. Responses are never
// cached since they reflect live backend state.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends an ErrorBody.
func Error(w http.ResponseWriter, status int, message, kind string) {
	if message == "" {
		message = http.StatusText(status)
	}
	JSON(w, status, ErrorBody{Error: message, Kind: kind})
}
