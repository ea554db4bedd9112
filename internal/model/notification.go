package model

import "time"

type NotificationLevel string

const (
	NotificationLevelLow    NotificationLevel = "low"
	NotificationLevelMedium NotificationLevel = "medium"
	NotificationLevelHigh   NotificationLevel = "high"
)

// Notification объявление для главной страницы. Не участвует в допуске
// бронирований, обычный CRUD.
type Notification struct {
	ID        int64             `json:"id"`
	Content   string            `json:"content"`
	Level     NotificationLevel `json:"level"`
	StartTime *time.Time        `json:"start_time"` // nil = показывать сразу
	EndTime   *time.Time        `json:"end_time"`   // nil = бессрочно
	CreatorID int64             `json:"creator_id"`
	CreatedAt time.Time         `json:"created_at"`
}
