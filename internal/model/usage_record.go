package model

import "time"

// UsageRecord запись об использовании машины, создаётся в одной транзакции
// с бронированием. Ровно одна запись на пару (user_email, booking_id).
type UsageRecord struct {
	ID        int64     `json:"id"`
	UserEmail string    `json:"user_email"`
	MachineID int64     `json:"machine_id"`
	BookingID int64     `json:"booking_id"`
	UsageTime time.Time `json:"usage_time"` // Совпадает со слотом бронирования
	UsageCount int      `json:"usage_count"`
	// Остаток legacy-политики cooldown. При скользящем окне использование в
	// период охлаждения невозможно, поэтому всегда false. Колонка сохранена
	// ради исторических данных.
	IsCooldownUsage bool      `json:"is_cooldown_usage"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
