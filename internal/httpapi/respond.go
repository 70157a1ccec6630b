package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"chainstate/pkg/chainerr"
)

func newRequestID() string { return "req_" + uuid.NewString() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]any{
		"request_id": newRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	})
}

// writeChainError maps coded errors onto HTTP statuses.
func writeChainError(w http.ResponseWriter, err error) {
	code := chainerr.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case chainerr.CodeNotFound:
		status = http.StatusNotFound
	case chainerr.CodeDuplicateChain, chainerr.CodeDuplicateKey, chainerr.CodeLastChain:
		status = http.StatusConflict
	case chainerr.CodeInvalidInput:
		status = http.StatusBadRequest
	case chainerr.CodePersistence:
		status = http.StatusServiceUnavailable
	case "":
		code = chainerr.CodeInternal
	}
	var details map[string]any
	var ce *chainerr.Error
	if errors.As(err, &ce) {
		details = ce.Details
	}
	writeError(w, status, string(code), err.Error(), details)
}
