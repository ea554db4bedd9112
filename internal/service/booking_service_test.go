package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
)

func TestCancellable(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		booking *model.Booking
		wantErr bool
	}{
		{
			"active future booking",
			&model.Booking{Status: model.BookingStatusActive, TimeSlot: now.Add(4 * time.Hour)},
			false,
		},
		{
			"already cancelled",
			&model.Booking{Status: model.BookingStatusCancelled, TimeSlot: now.Add(4 * time.Hour)},
			true,
		},
		{
			"slot already started",
			&model.Booking{Status: model.BookingStatusActive, TimeSlot: now.Add(-2 * time.Hour)},
			true,
		},
		{
			// Строго до начала: на границе отменить уже нельзя
			"slot starts right now",
			&model.Booking{Status: model.BookingStatusActive, TimeSlot: now},
			true,
		},
		{
			"one second before start",
			&model.Booking{Status: model.BookingStatusActive, TimeSlot: now.Add(time.Second)},
			false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Cancellable(tc.booking, now)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.True(t, apperr.IsKind(err, apperr.KindInvalidTransition),
				"expected invalid transition, got %v", err)
		})
	}
}
