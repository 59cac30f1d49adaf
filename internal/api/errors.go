package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/efebarandurmaz/ragrelay/internal/llm"
)

// errorBody is the JSON error envelope returned on all failures.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Kind: kind, Message: message}}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// statusForError maps a chat failure to an HTTP status and error kind.
func statusForError(err error) (int, string) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, "invalid_request"
	}

	kind := llm.Classify(err)
	switch kind {
	case llm.KindRateLimited:
		return http.StatusTooManyRequests, string(kind)
	case llm.KindInvalidRequest:
		return http.StatusUnprocessableEntity, string(kind)
	case llm.KindTimeout:
		return http.StatusGatewayTimeout, string(kind)
	default:
		return http.StatusBadGateway, string(llm.KindUnavailable)
	}
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, kind := statusForError(err)
	writeError(w, status, kind, err.Error())
}
