package limit

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/makerlab/booking-api/internal/timeslot"
)

var base = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// slotAt возвращает base + n слотов.
func slotAt(n int) time.Time {
	return base.Add(time.Duration(n) * timeslot.SlotDuration)
}

func slotsAt(ns ...int) []time.Time {
	out := make([]time.Time, 0, len(ns))
	for _, n := range ns {
		out = append(out, slotAt(n))
	}
	return out
}

func TestCheckEmptyHistory(t *testing.T) {
	v := Check(nil, slotAt(0), Rule{WindowSize: 6, MaxBookings: 3})
	require.Nil(t, v)
}

func TestCheckAtLimitAdmitted(t *testing.T) {
	// Три бронирования в окне из шести слотов при лимите 3 — ровно на границе
	existing := slotsAt(0, 1)
	v := Check(existing, slotAt(2), Rule{WindowSize: 6, MaxBookings: 3})
	require.Nil(t, v)
}

func TestCheckOverLimitRejected(t *testing.T) {
	// Пример из постановки: окно 6 слотов (24ч), лимит 3.
	// Занято T, T+4h, T+8h; запрос T+12h попадает в то же окно.
	existing := slotsAt(0, 1, 2)
	rule := Rule{WindowSize: 6, MaxBookings: 3}

	v := Check(existing, slotAt(3), rule)
	require.NotNil(t, v)
	require.Equal(t, 4, v.Count)
	require.Equal(t, 3, v.Limit)
	require.Len(t, v.Slots, 4)

	// T+24h лежит за пределами каждого окна с тремя занятыми слотами
	require.Nil(t, Check(existing, slotAt(6), rule))
}

func TestCheckViolationWindowBounds(t *testing.T) {
	existing := slotsAt(0, 1, 2)
	v := Check(existing, slotAt(3), Rule{WindowSize: 6, MaxBookings: 3})
	require.NotNil(t, v)
	// Окно нарушения охватывает ровно (N-1) интервалов и содержит все 4 слота
	require.Equal(t, 5*timeslot.SlotDuration, v.WindowEnd.Sub(v.WindowStart))
	require.False(t, v.WindowStart.After(slotAt(0)))
	require.False(t, v.WindowEnd.Before(slotAt(3)))
}

func TestCheckCandidateInsideSparseCluster(t *testing.T) {
	// Кандидат заполняет дыру в середине разреженной пачки
	existing := slotsAt(0, 1, 4, 5)
	rule := Rule{WindowSize: 6, MaxBookings: 4}

	v := Check(existing, slotAt(3), rule)
	require.NotNil(t, v)
	require.Equal(t, 5, v.Count)
}

func TestCheckWindowOfOne(t *testing.T) {
	// Вырожденное окно из одного слота: лимит 1 допускает любые слоты,
	// повторный тот же слот нарушает.
	rule := Rule{WindowSize: 1, MaxBookings: 1}
	require.Nil(t, Check(slotsAt(0, 1, 2), slotAt(3), rule))

	v := Check(slotsAt(0), slotAt(0), rule)
	require.NotNil(t, v)
	require.Equal(t, 2, v.Count)
}

func TestCheckClusterAfterEarlyCandidate(t *testing.T) {
	// Кандидат раньше всей пачки не маскирует переполненное окно внутри неё
	existing := slotsAt(4, 5, 7)
	rule := Rule{WindowSize: 4, MaxBookings: 2}

	v := Check(existing, slotAt(0), rule)
	require.NotNil(t, v)
	require.Equal(t, 3, v.Count)
	require.True(t, bruteForce(append(slotsAt(4, 5, 7), slotAt(0)), rule))
}

func TestCheckFarApartBookings(t *testing.T) {
	// Бронирования дальше окна друг от друга не суммируются
	existing := slotsAt(0, 10, 20, 30)
	require.Nil(t, Check(existing, slotAt(40), Rule{WindowSize: 6, MaxBookings: 1}))
}

// bruteForce перебирает все окна из rule.WindowSize последовательных слотов,
// начинающиеся на каждом грид-поинте диапазона, и сообщает, есть ли окно
// с превышением лимита. Вход не обязан быть отсортирован: границы диапазона
// берутся от минимального и максимального слота.
func bruteForce(slots []time.Time, rule Rule) bool {
	if len(slots) == 0 {
		return false
	}
	sorted := make([]time.Time, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	span := time.Duration(rule.WindowSize-1) * timeslot.SlotDuration
	lo := sorted[0].Add(-span)
	hi := sorted[len(sorted)-1].Add(span)
	for start := lo; !start.After(hi); start = start.Add(timeslot.SlotDuration) {
		end := start.Add(span)
		count := 0
		for _, s := range slots {
			if timeslot.InWindow(s, start, end) {
				count++
			}
		}
		if count > rule.MaxBookings {
			return true
		}
	}
	return false
}

func TestCheckMatchesExhaustiveEnumeration(t *testing.T) {
	rule := Rule{WindowSize: 4, MaxBookings: 2}

	// Все расстановки трёх занятых слотов плюс кандидат на сетке из 8 позиций
	for a := 0; a < 8; a++ {
		for b := a + 1; b < 8; b++ {
			for c := b + 1; c < 8; c++ {
				for cand := 0; cand < 8; cand++ {
					if cand == a || cand == b || cand == c {
						continue
					}
					existing := slotsAt(a, b, c)
					all := append(slotsAt(a, b, c), slotAt(cand))
					got := Check(existing, slotAt(cand), rule) != nil
					want := bruteForce(all, rule)
					require.Equalf(t, want, got,
						"existing=%v candidate=%d", []int{a, b, c}, cand)
				}
			}
		}
	}
}

func TestNewStatus(t *testing.T) {
	rule := Rule{WindowSize: 6, MaxBookings: 3}
	st := NewStatus(rule, 2, slotAt(0), slotAt(5))

	require.True(t, st.HasLimit)
	require.Equal(t, 1, st.Remaining)
	require.InDelta(t, 66.7, st.UsagePercent, 0.1)

	// Использование сверх лимита не уводит остаток в минус
	st = NewStatus(rule, 5, slotAt(0), slotAt(5))
	require.Equal(t, 0, st.Remaining)
}
