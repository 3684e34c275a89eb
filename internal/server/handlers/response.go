package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/statesync/pkg/api"
)

// maxSnapshotBody ограничивает размер тела push
const maxSnapshotBody = 4 << 20

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, code, message string) {
	writeJSON(w, logger, status, api.ErrorResponse{Error: code, Message: message})
}
