package api

import (
	"encoding/json"
	"net/http"
)

type InvokeRequest struct {
	Args map[string]any `json:"args"`
}

type InvokeResponse struct {
	Operation string `json:"operation"`
	Result    any    `json:"result"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
