package model

import "time"

type MachineStatus string

const (
	MachineStatusActive      MachineStatus = "active"      // Доступна для бронирования
	MachineStatusMaintenance MachineStatus = "maintenance" // На обслуживании, но бронировать можно
	MachineStatusLimited     MachineStatus = "limited"     // Ограниченный доступ
	MachineStatusInactive    MachineStatus = "inactive"    // Выведена из эксплуатации
)

type RestrictionStatus string

const (
	RestrictionStatusNone    RestrictionStatus = "none"    // Без ограничений
	RestrictionStatusBlocked RestrictionStatus = "blocked" // Полностью заблокирована администратором
	RestrictionStatusLimited RestrictionStatus = "limited" // Действуют правила из machine_restrictions
)

type Machine struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Location          string            `json:"location"`
	Status            MachineStatus     `json:"status"`
	RestrictionStatus RestrictionStatus `json:"restriction_status"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Bookable сообщает, принимает ли машина новые бронирования.
// Машина на обслуживании остаётся доступной для бронирования.
func (m *Machine) Bookable() bool {
	return m.Status == MachineStatusActive || m.Status == MachineStatusMaintenance
}
