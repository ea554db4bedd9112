// Package limit реализует проверку скользящего окна: в любых WindowSize
// последовательных слотах у пользователя не более MaxBookings активных
// бронирований на машине. Проверка перспективная: кандидат считается уже
// добавленным.
package limit

import (
	"fmt"
	"sort"
	"time"

	"github.com/makerlab/booking-api/internal/timeslot"
)

// Rule параметры правила скользящего окна.
type Rule struct {
	WindowSize  int // Число последовательных слотов в окне
	MaxBookings int // Максимум бронирований в окне
}

// Violation найденное нарушение: окно и число бронирований в нём.
type Violation struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Count       int
	Limit       int
	Slots       []time.Time // Бронирования внутри нарушенного окна
}

func (v *Violation) Error() string {
	return fmt.Sprintf("rolling window %s..%s holds %d bookings, limit %d",
		v.WindowStart.Format("2006-01-02 15:04"), v.WindowEnd.Format("2006-01-02 15:04"),
		v.Count, v.Limit)
}

// Check проверяет, не нарушит ли добавление candidate правило rule при
// существующих будущих активных бронированиях existing. Возвращает nil если
// бронирование допустимо, иначе первое найденное нарушение.
//
// Для каждого слота строятся два окна: вперёд [s, s+(N-1)·4ч] и назад
// [s-(N-1)·4ч, s]. Одной прямой конструкции недостаточно: нарушенное окно
// может начинаться раньше любого занятого слота.
func Check(existing []time.Time, candidate time.Time, rule Rule) *Violation {
	slots := make([]time.Time, 0, len(existing)+1)
	slots = append(slots, existing...)
	slots = append(slots, candidate)
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })

	span := time.Duration(rule.WindowSize-1) * timeslot.SlotDuration

	for _, s := range slots {
		if v := countWindow(slots, s, s.Add(span), rule); v != nil {
			return v
		}
		if v := countWindow(slots, s.Add(-span), s, rule); v != nil {
			return v
		}
	}
	return nil
}

// countWindow считает бронирования в окне [start, end] включительно.
func countWindow(slots []time.Time, start, end time.Time, rule Rule) *Violation {
	var inWindow []time.Time
	for _, s := range slots {
		if timeslot.InWindow(s, start, end) {
			inWindow = append(inWindow, s)
		}
	}
	if len(inWindow) > rule.MaxBookings {
		return &Violation{
			WindowStart: start,
			WindowEnd:   end,
			Count:       len(inWindow),
			Limit:       rule.MaxBookings,
			Slots:       inWindow,
		}
	}
	return nil
}

// Status текущее состояние пользователя относительно правила, для фронтенда.
type Status struct {
	HasLimit     bool      `json:"has_limit"`
	WindowSize   int       `json:"window_size"`
	MaxBookings  int       `json:"max_bookings"`
	CurrentUsage int       `json:"current_usage"`
	Remaining    int       `json:"remaining_bookings"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	UsagePercent float64   `json:"usage_percentage"`
}

// NewStatus собирает отчёт по окну [windowStart, windowEnd] с usage
// активными бронированиями.
func NewStatus(rule Rule, usage int, windowStart, windowEnd time.Time) Status {
	remaining := rule.MaxBookings - usage
	if remaining < 0 {
		remaining = 0
	}
	var percent float64
	if rule.MaxBookings > 0 {
		percent = float64(usage) / float64(rule.MaxBookings) * 100
	}
	return Status{
		HasLimit:     true,
		WindowSize:   rule.WindowSize,
		MaxBookings:  rule.MaxBookings,
		CurrentUsage: usage,
		Remaining:    remaining,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		UsagePercent: percent,
	}
}
