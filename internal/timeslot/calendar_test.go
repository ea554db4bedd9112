package timeslot

import (
	"errors"
	"testing"
	"time"
)

func taipei(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Taipei")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestNormalize(t *testing.T) {
	loc := taipei(t)
	c := NewCalendar(loc)

	cases := []struct {
		name string
		in   time.Time
		ok   bool
	}{
		{"midnight", time.Date(2025, 3, 10, 0, 0, 0, 0, loc), true},
		{"hour 8", time.Date(2025, 3, 10, 8, 0, 0, 0, loc), true},
		{"hour 20", time.Date(2025, 3, 10, 20, 0, 0, 0, loc), true},
		{"hour 7", time.Date(2025, 3, 10, 7, 0, 0, 0, loc), false},
		{"hour 23", time.Date(2025, 3, 10, 23, 0, 0, 0, loc), false},
		{"nonzero minutes", time.Date(2025, 3, 10, 8, 30, 0, 0, loc), false},
		{"nonzero seconds", time.Date(2025, 3, 10, 8, 0, 1, 0, loc), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Normalize(tc.in)
			if tc.ok && err != nil {
				t.Fatalf("expected valid slot, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidSlot) {
				t.Fatalf("expected ErrInvalidSlot, got %v", err)
			}
		})
	}
}

func TestNormalizeConvertsZone(t *testing.T) {
	loc := taipei(t)
	c := NewCalendar(loc)

	// 04:00 台北 = 20:00 UTC предыдущего дня
	utc := time.Date(2025, 3, 9, 20, 0, 0, 0, time.UTC)
	slot, err := c.Normalize(utc)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if slot.Hour() != 4 || slot.Day() != 10 {
		t.Fatalf("expected 2025-03-10 04:00 taipei, got %s", slot)
	}
}

func TestParseSlot(t *testing.T) {
	loc := taipei(t)
	c := NewCalendar(loc)

	got, err := c.ParseSlot("2025/03/10/08")
	if err != nil {
		t.Fatalf("parse slash format: %v", err)
	}
	want := time.Date(2025, 3, 10, 8, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	got, err = c.ParseSlot("2025-03-10 12:00:00")
	if err != nil {
		t.Fatalf("parse full format: %v", err)
	}
	want = time.Date(2025, 3, 10, 12, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}

	if _, err := c.ParseSlot("10.03.2025 8:00"); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot for unknown format, got %v", err)
	}
}

func TestNextPrev(t *testing.T) {
	loc := taipei(t)
	c := NewCalendar(loc)
	slot := time.Date(2025, 3, 10, 20, 0, 0, 0, loc)

	next := c.Next(slot)
	if next.Day() != 11 || next.Hour() != 0 {
		t.Fatalf("expected next day midnight, got %s", next)
	}
	if !c.Prev(next).Equal(slot) {
		t.Fatalf("prev(next) != slot")
	}
}

func TestWindowEnd(t *testing.T) {
	loc := taipei(t)
	c := NewCalendar(loc)
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)

	// Окно из 6 слотов покрывает [00:00, 20:00] включительно
	end := c.WindowEnd(start, 6)
	if end.Hour() != 20 || end.Day() != 10 {
		t.Fatalf("expected 20:00 same day, got %s", end)
	}
	if !c.WindowStart(end, 6).Equal(start) {
		t.Fatalf("WindowStart is not inverse of WindowEnd")
	}
	// Окно из одного слота вырождается в точку
	if !c.WindowEnd(start, 1).Equal(start) {
		t.Fatalf("window of size 1 must equal its start")
	}
}

func TestCeiling(t *testing.T) {
	loc := taipei(t)
	c := NewCalendar(loc)

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			// Час валидный: минуты отбрасываются, слот ещё идёт
			"inside slot",
			time.Date(2025, 3, 10, 8, 30, 0, 0, loc),
			time.Date(2025, 3, 10, 8, 0, 0, 0, loc),
		},
		{
			"exactly on grid",
			time.Date(2025, 3, 10, 12, 0, 0, 0, loc),
			time.Date(2025, 3, 10, 12, 0, 0, 0, loc),
		},
		{
			"invalid hour rounds up",
			time.Date(2025, 3, 10, 9, 30, 0, 0, loc),
			time.Date(2025, 3, 10, 12, 0, 0, 0, loc),
		},
		{
			"late evening rolls to next day",
			time.Date(2025, 3, 10, 23, 10, 0, 0, loc),
			time.Date(2025, 3, 11, 0, 0, 0, 0, loc),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Ceiling(tc.now)
			if !got.Equal(tc.want) {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestInWindow(t *testing.T) {
	loc := taipei(t)
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	end := time.Date(2025, 3, 10, 20, 0, 0, 0, loc)

	if !InWindow(start, start, end) || !InWindow(end, start, end) {
		t.Fatalf("window bounds must be inclusive")
	}
	if InWindow(end.Add(SlotDuration), start, end) {
		t.Fatalf("slot after window must be excluded")
	}
}
