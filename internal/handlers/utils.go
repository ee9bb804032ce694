// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cabogame/cabo-service/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an engine error to an HTTP status and a structured
// body carrying the error kind, so clients can branch without parsing
// messages.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		kind = string(appErr.Kind)
		switch appErr.Kind {
		case apperrors.KindValidation:
			status = http.StatusBadRequest
		case apperrors.KindIllegalAction:
			status = http.StatusConflict
		case apperrors.KindRoomNotFound:
			status = http.StatusNotFound
		case apperrors.KindRoomFull:
			status = http.StatusConflict
		case apperrors.KindActionTimeout, apperrors.KindStoreUnavailable:
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
}
