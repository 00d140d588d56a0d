package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ravi-parthasarathy/openagi/pkg/workflow"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "err", err)
	}
}

// writeError renders err as the banner body the editor displays.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{
		Error: workflow.UserMessage(err),
		Code:  workflow.ErrorCode(err),
	})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}

func statusFor(err error) int {
	switch workflow.ErrorCode(err) {
	case workflow.CodeUnknownKind, workflow.CodeInvalidPatch:
		return http.StatusBadRequest
	case workflow.CodeDuplicateKind, workflow.CodeRunSuperseded:
		return http.StatusConflict
	case workflow.CodeInvalidConnection, workflow.CodeMissingConfiguration:
		return http.StatusUnprocessableEntity
	case workflow.CodeRequestFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
