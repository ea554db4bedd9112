package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/limit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doError(t *testing.T, err error) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, err)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRespondErrorKinds(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"slot occupied", apperr.New(apperr.KindSlotOccupied, "slot is taken"), http.StatusConflict, "time_slot_occupied"},
		{"machine not found", apperr.New(apperr.KindMachineNotFound, "machine 7 does not exist"), http.StatusNotFound, "machine_not_found"},
		{"permission denied", apperr.New(apperr.KindPermissionDenied, "no"), http.StatusForbidden, "permission_denied"},
		{"past slot", apperr.New(apperr.KindPastSlot, "too late"), http.StatusBadRequest, "past_time_slot"},
		{"untyped error", errors.New("pq: connection refused"), http.StatusInternalServerError, "database_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := doError(t, tc.err)

			require.Equal(t, tc.wantStatus, w.Code)
			require.False(t, body.Success)
			require.Equal(t, tc.wantType, body.ErrorType)
		})
	}
}

// Сырая ошибка хранилища не должна просачиваться в ответ.
func TestRespondErrorHidesStorageDetails(t *testing.T) {
	_, body := doError(t, errors.New("pq: password authentication failed for user postgres"))

	require.NotContains(t, body.Message, "postgres")
	require.NotContains(t, body.Message, "password")
}

func TestRespondErrorWindowDetails(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	v := &limit.Violation{
		WindowStart: start,
		WindowEnd:   start.Add(20 * time.Hour),
		Count:       4,
		Limit:       3,
	}
	err := apperr.Wrap(apperr.KindWindowExceeded, v, "window already holds %d bookings, limit is %d", v.Count, v.Limit)

	w, body := doError(t, err)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "usage_limit_exceeded", body.ErrorType)

	details, ok := body.Details.(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 4, details["bookings_in_window"])
	require.EqualValues(t, 3, details["max_bookings"])
}
