package timeslot

import (
	"errors"
	"fmt"
	"time"
)

// SlotDuration длительность одного слота бронирования.
const SlotDuration = 4 * time.Hour

// ErrInvalidSlot время не лежит на сетке слотов (часы 0,4,8,12,16,20, минуты и секунды нулевые).
var ErrInvalidSlot = errors.New("time is not a valid slot start")

// Часы начала слотов в течение суток.
var validHours = map[int]bool{0: true, 4: true, 8: true, 12: true, 16: true, 20: true}

// Форматы, принимаемые от фронтенда.
const (
	slotLayoutSlash = "2006/01/02/15"
	slotLayoutFull  = "2006-01-02 15:04:05"
)

// Calendar сетка 4-часовых слотов в одном фиксированном часовом поясе.
// Все методы интерпретируют и возвращают время в этом поясе.
type Calendar struct {
	loc *time.Location
}

func NewCalendar(loc *time.Location) *Calendar {
	return &Calendar{loc: loc}
}

// Location возвращает часовой пояс календаря.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now текущее время в поясе календаря.
func (c *Calendar) Now() time.Time {
	return time.Now().In(c.loc)
}

// Normalize проверяет что время совпадает с точкой сетки и приводит его к поясу календаря.
func (c *Calendar) Normalize(t time.Time) (time.Time, error) {
	t = t.In(c.loc)
	if !validHours[t.Hour()] || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidSlot, t.Format(slotLayoutFull))
	}
	return t, nil
}

// ParseSlot разбирает строку слота в форматах YYYY/MM/DD/HH или
// YYYY-MM-DD HH:MM:SS (локальное время пояса календаря).
func (c *Calendar) ParseSlot(s string) (time.Time, error) {
	t, err := time.ParseInLocation(slotLayoutSlash, s, c.loc)
	if err != nil {
		t, err = time.ParseInLocation(slotLayoutFull, s, c.loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSlot, s)
		}
	}
	return t, nil
}

// Next следующий слот сетки.
func (c *Calendar) Next(slot time.Time) time.Time {
	return slot.Add(SlotDuration)
}

// Prev предыдущий слот сетки.
func (c *Calendar) Prev(slot time.Time) time.Time {
	return slot.Add(-SlotDuration)
}

// WindowEnd начало последнего слота окна из n последовательных слотов,
// начинающегося в start. Границы окна включительные.
func (c *Calendar) WindowEnd(start time.Time, n int) time.Time {
	return start.Add(time.Duration(n-1) * SlotDuration)
}

// WindowStart начало окна из n последовательных слотов, заканчивающегося в end.
func (c *Calendar) WindowStart(end time.Time, n int) time.Time {
	return end.Add(-time.Duration(n-1) * SlotDuration)
}

// Ceiling ближайшая точка сетки не раньше начала часа now: если час уже
// валидный, минуты отбрасываются, иначе берётся следующий валидный час.
// Используется как якорь окна статуса "от текущего момента в будущее".
func (c *Calendar) Ceiling(now time.Time) time.Time {
	t := now.In(c.loc)
	year, month, day := t.Date()
	hour := t.Hour()
	if validHours[hour] {
		return time.Date(year, month, day, hour, 0, 0, 0, c.loc)
	}
	next := hour + (4 - hour%4)
	// time.Date нормализует переход через полночь
	return time.Date(year, month, day, next, 0, 0, 0, c.loc)
}

// InWindow сообщает, попадает ли слот в окно [start, end] включительно.
func InWindow(slot, start, end time.Time) bool {
	return !slot.Before(start) && !slot.After(end)
}
