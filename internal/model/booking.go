package model

import "time"

type BookingStatus string

const (
	BookingStatusActive    BookingStatus = "active"    // Слот занят
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено пользователем (мягкое удаление)
)

type Booking struct {
	ID        int64         `json:"id"`
	UserEmail string        `json:"user_email"`
	MachineID int64         `json:"machine_id"`
	TimeSlot  time.Time     `json:"time_slot"` // Начало 4-часового слота
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	// Дополнительные поля для удобства (не из БД)
	MachineName string `json:"machine_name,omitempty"`
	UserName    string `json:"user_name,omitempty"`
}
