// Package middleware holds the gateway's HTTP middleware: CORS, per-client
// rate limiting, and OpenAPI request validation. Request logging lives in the
// server package next to the routes it instruments.
package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

// writeJSONError writes the gateway error envelope shared by all middleware.
func writeJSONError(w http.ResponseWriter, status int, errType, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errBody := map[string]interface{}{
		"message": message,
		"type":    errType,
		"code":    status,
	}
	for k, v := range details {
		errBody[k] = v
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     errBody,
		"timestamp": time.Now().Unix(),
	})
}
