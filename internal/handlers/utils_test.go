// internal/handlers/utils_test.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cabogame/cabo-service/internal/apperrors"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{apperrors.Validationf("bad input"), http.StatusBadRequest, "validation"},
		{apperrors.Illegalf("not your turn"), http.StatusConflict, "illegal_action"},
		{apperrors.NotFound(uuid.New()), http.StatusNotFound, "room_not_found"},
		{apperrors.Full(uuid.New()), http.StatusConflict, "room_full"},
		{apperrors.Timeout("room is busy"), http.StatusServiceUnavailable, "action_timeout"},
		{apperrors.StoreUnavailable(errors.New("db down")), http.StatusServiceUnavailable, "store_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, c.err)
		assert.Equal(t, c.status, rec.Code, "kind %s", c.kind)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, c.kind, body["kind"])
		assert.NotEmpty(t, body["error"])
	}
}
