package apiserver

import (
	"encoding/json"
	"log"
	"net/http"
)

// successEnvelope is the uniform success response shape.
type successEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// errorEnvelope is the uniform failure response shape.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeJSONResponse writes data wrapped in the success envelope.
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(successEnvelope{Success: true, Data: data}); err != nil {
		log.Printf("writing JSON response: %v", err)
	}
}

// writeJSONError writes the failure envelope with the given message.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(errorEnvelope{Success: false, Error: message}); err != nil {
		log.Printf("writing JSON error: %v", err)
	}
}
