package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

const (
	apiKeyHeader = "X-API-Key"
	// apiKeyParam carries the key on stream upgrades, since browser
	// websockets cannot set request headers.
	apiKeyParam = "api_key"
)

// requireAPIKey rejects requests that do not present the configured key.
func requireAPIKey(expectedKey string) func(http.Handler) http.Handler {
	want := []byte(expectedKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(apiKeyHeader)
			if key == "" && websocket.IsWebSocketUpgrade(r) {
				key = r.URL.Query().Get(apiKeyParam)
			}
			if key == "" {
				sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), want) != 1 {
				sendError(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeResponse(w http.ResponseWriter, statusCode int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, data interface{}) {
	writeResponse(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// sendError sends an error JSON response
func sendError(w http.ResponseWriter, message string, statusCode int) {
	writeResponse(w, statusCode, APIResponse{Success: false, Error: message})
}
