package model

import "time"

type RestrictionType string

const (
	RestrictionTypeUsageLimit   RestrictionType = "usage_limit"   // Скользящее окно: не более M бронирований на N слотов
	RestrictionTypeYearLimit    RestrictionType = "year_limit"    // Ограничение по году поступления (из email)
	RestrictionTypeEmailPattern RestrictionType = "email_pattern" // Ограничение по маске email
)

// MachineRestriction правило ограничения, привязанное к машине.
// Поле Rule декодируется из JSON один раз на границе репозитория,
// дальше бизнес-логика работает только с типизированными вариантами.
type MachineRestriction struct {
	ID          int64            `json:"id"`
	MachineID   int64            `json:"machine_id"`
	Type        RestrictionType  `json:"restriction_type"`
	Rule        *RestrictionRule `json:"rule"`
	StartTime   *time.Time       `json:"start_time"` // nil = действует с момента создания
	EndTime     *time.Time       `json:"end_time"`   // nil = бессрочно
	IsActive    bool             `json:"is_active"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"created_at"`
}

// RestrictionRule закрытый набор вариантов полезной нагрузки правила.
// Заполнен ровно один вариант, соответствующий типу правила.
type RestrictionRule struct {
	RollingWindow *RollingWindowRule `json:"rolling_window,omitempty"`
	Year          *YearRule          `json:"year,omitempty"`
	EmailPattern  *EmailPatternRule  `json:"email_pattern,omitempty"`
}

// RollingWindowRule лимит использования: в любых WindowSize последовательных
// слотах не более MaxBookings активных бронирований пользователя.
type RollingWindowRule struct {
	WindowSize  int `json:"window_size"`
	MaxBookings int `json:"max_bookings"`
}

// YearRule ограничение по году поступления, извлекаемому из префикса email.
type YearRule struct {
	TargetYear int    `json:"target_year"`
	Operator   string `json:"operator"` // gt, gte, lt, lte, eq
}

// EmailPatternRule ограничение по шаблону email с подстановочным символом '*'.
type EmailPatternRule struct {
	Pattern string `json:"pattern"`
}

// ActiveAt сообщает, действует ли правило в указанный момент.
func (r *MachineRestriction) ActiveAt(at time.Time) bool {
	if !r.IsActive {
		return false
	}
	if r.StartTime != nil && r.StartTime.After(at) {
		return false
	}
	if r.EndTime != nil && r.EndTime.Before(at) {
		return false
	}
	return true
}
