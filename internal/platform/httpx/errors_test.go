package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrodistri/agrodistri/internal/platform/lock"
	"github.com/agrodistri/agrodistri/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		title  string
		detail string
	}{
		{"validation", shared.NewValidationError("quantity", "must be positive"), http.StatusBadRequest, "Validation Failed", ""},
		{"not found", fmt.Errorf("order: %w", shared.ErrNotFound), http.StatusNotFound, "Not Found", ""},
		{"busy", lock.ErrBusy, http.StatusConflict, "Busy", ""},
		{"backend", shared.Backend("orders.insert", errors.New("connection reset by peer")), http.StatusInternalServerError, "Backend Error", "orders.insert: connection reset by peer"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal Error", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)
			require.Equal(t, tc.status, rr.Code)
			assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

			var body ProblemDetail
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.title, body.Title)
			assert.Equal(t, tc.status, body.Status)
			if tc.detail != "" {
				assert.Equal(t, tc.detail, body.Detail)
			}
		})
	}
}

func TestRespondErrorStockShortage(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, &shared.InsufficientStockError{ProductID: 7, ProductName: "Urea", Available: 4, Requested: 10})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var body StockProblem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, int64(7), body.ProductID)
	assert.Equal(t, 4, body.Available)
	assert.Equal(t, 10, body.Requested)
}
