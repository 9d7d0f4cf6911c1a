package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wordtally/apiserver/internal/token"
)

type contextKey string

const contextClaimsKey contextKey = "claims"

// claimsFromContext extracts the verified identity the auth middleware
// attached to the request.
func claimsFromContext(ctx context.Context) (token.Claims, error) {
	claims, ok := ctx.Value(contextClaimsKey).(token.Claims)
	if !ok {
		return token.Claims{}, errors.New("missing claims")
	}
	return claims, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeError renders the uniform error payload; the error field is the
// status text (e.g. "Unauthorized"), the message field carries the
// human-readable reason.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: message})
}

// ErrorResponse is the error payload returned by every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
