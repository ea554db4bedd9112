package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makerlab/booking-api/internal/repository/base"
)

// UsageRepository записи об использовании машин. Запись создаётся строго в
// транзакции бронирования, поэтому изменяющие методы принимают Querier.
type UsageRepository struct {
	pool *pgxpool.Pool
}

func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// Upsert создаёт запись об использовании, идемпотентно по
// (user_email, booking_id): повтор обновляет существующую запись.
// is_cooldown_usage всегда false при политике скользящего окна.
func (r *UsageRepository) Upsert(ctx context.Context, q base.Querier, userEmail string, machineID, bookingID int64, usageTime time.Time) (int64, error) {
	query := `
		INSERT INTO user_machine_usage (user_email, machine_id, booking_id, usage_time, usage_count, is_cooldown_usage)
		VALUES ($1, $2, $3, $4, 1, false)
		ON CONFLICT (user_email, booking_id)
		DO UPDATE SET
			usage_time = EXCLUDED.usage_time,
			usage_count = EXCLUDED.usage_count,
			is_cooldown_usage = EXCLUDED.is_cooldown_usage,
			updated_at = now()
		RETURNING id
	`

	var id int64
	err := q.QueryRow(ctx, query, userEmail, machineID, bookingID, usageTime).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert usage record: %w", err)
	}

	return id, nil
}

// DeleteByBooking удаляет записи об использовании бронирования. Только
// административное каскадное удаление.
func (r *UsageRepository) DeleteByBooking(ctx context.Context, q base.Querier, bookingID int64) (int64, error) {
	result, err := q.Exec(ctx, `DELETE FROM user_machine_usage WHERE booking_id = $1`, bookingID)
	if err != nil {
		return 0, fmt.Errorf("delete usage records by booking: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteByMachine удаляет записи об использовании машины (каскад удаления машины).
func (r *UsageRepository) DeleteByMachine(ctx context.Context, q base.Querier, machineID int64) (int64, error) {
	result, err := q.Exec(ctx, `DELETE FROM user_machine_usage WHERE machine_id = $1`, machineID)
	if err != nil {
		return 0, fmt.Errorf("delete usage records by machine: %w", err)
	}
	return result.RowsAffected(), nil
}
