package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makerlab/booking-api/internal/model"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create создаёт новое уведомление
func (r *NotificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	query := `
		INSERT INTO notifications (content, level, start_time, end_time, creator_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		notification.Content,
		notification.Level,
		notification.StartTime,
		notification.EndTime,
		notification.CreatorID,
	).Scan(&notification.ID, &notification.CreatedAt)

	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	return nil
}

// Update обновляет уведомление
func (r *NotificationRepository) Update(ctx context.Context, notification *model.Notification) error {
	query := `
		UPDATE notifications
		SET content = $1, level = $2, start_time = $3, end_time = $4
		WHERE id = $5
	`

	result, err := r.pool.Exec(
		ctx, query,
		notification.Content,
		notification.Level,
		notification.StartTime,
		notification.EndTime,
		notification.ID,
	)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification not found")
	}

	return nil
}

// Delete удаляет уведомление
func (r *NotificationRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("notification not found")
	}

	return nil
}

// ActiveAt получает уведомления, действующие в указанный момент.
// Высокий уровень важности идёт первым.
func (r *NotificationRepository) ActiveAt(ctx context.Context, at time.Time) ([]*model.Notification, error) {
	query := `
		SELECT id, content, level, start_time, end_time, creator_id, created_at
		FROM notifications
		WHERE (start_time IS NULL OR start_time <= $1)
		  AND (end_time IS NULL OR end_time >= $1)
		ORDER BY
			CASE level
				WHEN 'high' THEN 1
				WHEN 'medium' THEN 2
				WHEN 'low' THEN 3
			END,
			created_at DESC
	`

	return r.queryNotifications(ctx, query, at)
}

// List получает все уведомления (админка)
func (r *NotificationRepository) List(ctx context.Context) ([]*model.Notification, error) {
	query := `
		SELECT id, content, level, start_time, end_time, creator_id, created_at
		FROM notifications
		ORDER BY created_at DESC
	`

	return r.queryNotifications(ctx, query)
}

func (r *NotificationRepository) queryNotifications(ctx context.Context, query string, args ...any) ([]*model.Notification, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		var notification model.Notification
		err := rows.Scan(
			&notification.ID,
			&notification.Content,
			&notification.Level,
			&notification.StartTime,
			&notification.EndTime,
			&notification.CreatorID,
			&notification.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, &notification)
	}

	return notifications, rows.Err()
}
