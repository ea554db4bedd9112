package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/repository/base"
)

// ConstraintActiveSlot имя частичного уникального индекса "одно активное
// бронирование на (машина, слот)". Единственный механизм, предотвращающий
// двойное бронирование при конкурентных запросах.
const ConstraintActiveSlot = "uniq_bookings_machine_slot_active"

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// Insert создаёт новое бронирование. Вызывается внутри транзакции допуска.
func (r *BookingRepository) Insert(ctx context.Context, q base.Querier, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (user_email, machine_id, time_slot, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(
		ctx, query,
		booking.UserEmail,
		booking.MachineID,
		booking.TimeSlot,
		booking.Status,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	return nil
}

// FindActive получает активное бронирование для (машина, слот)
func (r *BookingRepository) FindActive(ctx context.Context, q base.Querier, machineID int64, slot time.Time) (*model.Booking, error) {
	query := `
		SELECT id, user_email, machine_id, time_slot, status, created_at, updated_at
		FROM bookings
		WHERE machine_id = $1 AND time_slot = $2 AND status = 'active'
	`

	booking, err := scanBooking(q.QueryRow(ctx, query, machineID, slot))
	if err != nil {
		return nil, fmt.Errorf("find active booking: %w", err)
	}
	return booking, nil
}

// FindCancelled получает последнее отменённое бронирование для (машина, слот).
// Используется веткой реактивации после нарушения уникального ограничения.
func (r *BookingRepository) FindCancelled(ctx context.Context, q base.Querier, machineID int64, slot time.Time) (*model.Booking, error) {
	query := `
		SELECT id, user_email, machine_id, time_slot, status, created_at, updated_at
		FROM bookings
		WHERE machine_id = $1 AND time_slot = $2 AND status = 'cancelled'
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	booking, err := scanBooking(q.QueryRow(ctx, query, machineID, slot))
	if err != nil {
		return nil, fmt.Errorf("find cancelled booking: %w", err)
	}
	return booking, nil
}

// Reactivate переводит отменённое бронирование обратно в активное,
// переписывая владельца и отметки времени.
func (r *BookingRepository) Reactivate(ctx context.Context, q base.Querier, id int64, userEmail string, at time.Time) (*model.Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'active', user_email = $1, created_at = $2, updated_at = $2
		WHERE id = $3 AND status = 'cancelled'
		RETURNING id, user_email, machine_id, time_slot, status, created_at, updated_at
	`

	booking, err := scanBooking(q.QueryRow(ctx, query, userEmail, at, id))
	if err != nil {
		return nil, fmt.Errorf("reactivate booking: %w", err)
	}
	return booking, nil
}

// GetByID получает бронирование по ID вместе с именем машины
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `
		SELECT b.id, b.user_email, b.machine_id, b.time_slot, b.status, b.created_at, b.updated_at, m.name
		FROM bookings b
		JOIN machines m ON b.machine_id = m.id
		WHERE b.id = $1
	`

	var booking model.Booking
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&booking.ID,
		&booking.UserEmail,
		&booking.MachineID,
		&booking.TimeSlot,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&booking.MachineName,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return &booking, nil
}

// Cancel помечает бронирование отменённым. Запись об использовании не трогаем,
// история сохраняется.
func (r *BookingRepository) Cancel(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE bookings
		SET status = 'cancelled', updated_at = $1
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking not found")
	}

	return nil
}

// FutureActiveSlots получает слоты активных бронирований пользователя на
// машине начиная с from. Прошлые бронирования в расчёте окна не участвуют.
func (r *BookingRepository) FutureActiveSlots(ctx context.Context, q base.Querier, userEmail string, machineID int64, from time.Time) ([]time.Time, error) {
	query := `
		SELECT time_slot
		FROM bookings
		WHERE user_email = $1 AND machine_id = $2 AND status = 'active' AND time_slot >= $3
		ORDER BY time_slot
	`

	rows, err := q.Query(ctx, query, userEmail, machineID, from)
	if err != nil {
		return nil, fmt.Errorf("get future active slots: %w", err)
	}
	defer rows.Close()

	var slots []time.Time
	for rows.Next() {
		var slot time.Time
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// CountActiveInWindow считает активные бронирования пользователя на машине
// в окне [start, end] включительно.
func (r *BookingRepository) CountActiveInWindow(ctx context.Context, userEmail string, machineID int64, start, end time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE user_email = $1 AND machine_id = $2 AND status = 'active'
		  AND time_slot >= $3 AND time_slot <= $4
	`

	var count int
	err := r.pool.QueryRow(ctx, query, userEmail, machineID, start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active in window: %w", err)
	}

	return count, nil
}

// ActiveByMachine получает активные бронирования машины, опционально в
// диапазоне дат. Используется для отображения занятости календаря.
func (r *BookingRepository) ActiveByMachine(ctx context.Context, machineID int64, from, to *time.Time) ([]*model.Booking, error) {
	query := `
		SELECT b.id, b.user_email, b.machine_id, b.time_slot, b.status, b.created_at, b.updated_at, COALESCE(u.name, '')
		FROM bookings b
		LEFT JOIN users u ON b.user_email = u.email
		WHERE b.machine_id = $1 AND b.status = 'active'
	`
	args := []any{machineID}

	if from != nil && to != nil {
		query += " AND b.time_slot BETWEEN $2 AND $3"
		args = append(args, *from, *to)
	}
	query += " ORDER BY b.time_slot"

	return r.queryBookingsWithUser(ctx, query, args...)
}

// ActiveInRange получает активные бронирования всех машин в диапазоне.
// Используется календарным представлением.
func (r *BookingRepository) ActiveInRange(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
	query := `
		SELECT b.id, b.user_email, b.machine_id, b.time_slot, b.status, b.created_at, b.updated_at, m.name
		FROM bookings b
		JOIN machines m ON b.machine_id = m.id
		WHERE b.status = 'active' AND b.time_slot >= $1 AND b.time_slot <= $2
		ORDER BY b.time_slot, b.machine_id
	`

	return r.queryBookingsWithMachine(ctx, query, from, to)
}

// ByUser получает все бронирования пользователя
func (r *BookingRepository) ByUser(ctx context.Context, userEmail string) ([]*model.Booking, error) {
	query := `
		SELECT b.id, b.user_email, b.machine_id, b.time_slot, b.status, b.created_at, b.updated_at, m.name
		FROM bookings b
		JOIN machines m ON b.machine_id = m.id
		WHERE b.user_email = $1
		ORDER BY b.time_slot DESC
	`

	return r.queryBookingsWithMachine(ctx, query, userEmail)
}

// ByUserInRange получает бронирования пользователя в диапазоне времени
// (помесячный отчёт личного кабинета).
func (r *BookingRepository) ByUserInRange(ctx context.Context, userEmail string, from, to time.Time) ([]*model.Booking, error) {
	query := `
		SELECT b.id, b.user_email, b.machine_id, b.time_slot, b.status, b.created_at, b.updated_at, m.name
		FROM bookings b
		JOIN machines m ON b.machine_id = m.id
		WHERE b.user_email = $1 AND b.time_slot >= $2 AND b.time_slot < $3
		ORDER BY b.time_slot
	`

	return r.queryBookingsWithMachine(ctx, query, userEmail, from, to)
}

// List получает бронирования для административного списка, опционально
// фильтруя по статусу.
func (r *BookingRepository) List(ctx context.Context, status model.BookingStatus, limit, offset int) ([]*model.Booking, error) {
	query := `
		SELECT b.id, b.user_email, b.machine_id, b.time_slot, b.status, b.created_at, b.updated_at, m.name
		FROM bookings b
		JOIN machines m ON b.machine_id = m.id
	`
	args := []any{}

	if status != "" {
		query += " WHERE b.status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY b.time_slot DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	return r.queryBookingsWithMachine(ctx, query, args...)
}

// ActiveFrom получает активные бронирования начиная с момента from
// (админский список текущих бронирований).
func (r *BookingRepository) ActiveFrom(ctx context.Context, from time.Time) ([]*model.Booking, error) {
	query := `
		SELECT b.id, b.user_email, b.machine_id, b.time_slot, b.status, b.created_at, b.updated_at, m.name
		FROM bookings b
		JOIN machines m ON b.machine_id = m.id
		WHERE b.status = 'active' AND b.time_slot >= $1
		ORDER BY b.time_slot
	`

	return r.queryBookingsWithMachine(ctx, query, from)
}

// MonthlyStat агрегат бронирований за календарный месяц.
type MonthlyStat struct {
	Month     string `json:"month"` // YYYY-MM
	Total     int    `json:"total"`
	Active    int    `json:"active"`
	Cancelled int    `json:"cancelled"`
}

// MonthlyStats считает бронирования по месяцам начиная с from.
func (r *BookingRepository) MonthlyStats(ctx context.Context, from time.Time) ([]MonthlyStat, error) {
	query := `
		SELECT to_char(date_trunc('month', time_slot), 'YYYY-MM') AS month,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'active') AS active,
		       COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled
		FROM bookings
		WHERE time_slot >= $1
		GROUP BY 1
		ORDER BY 1
	`

	rows, err := r.pool.Query(ctx, query, from)
	if err != nil {
		return nil, fmt.Errorf("monthly stats: %w", err)
	}
	defer rows.Close()

	var stats []MonthlyStat
	for rows.Next() {
		var st MonthlyStat
		if err := rows.Scan(&st.Month, &st.Total, &st.Active, &st.Cancelled); err != nil {
			return nil, fmt.Errorf("scan monthly stat: %w", err)
		}
		stats = append(stats, st)
	}

	return stats, rows.Err()
}

// Delete полностью удаляет бронирование. Только административный путь.
func (r *BookingRepository) Delete(ctx context.Context, q base.Querier, id int64) error {
	result, err := q.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking not found")
	}

	return nil
}

// DeleteByMachine удаляет все бронирования машины. Используется каскадным
// удалением машины.
func (r *BookingRepository) DeleteByMachine(ctx context.Context, q base.Querier, machineID int64) (int64, error) {
	result, err := q.Exec(ctx, `DELETE FROM bookings WHERE machine_id = $1`, machineID)
	if err != nil {
		return 0, fmt.Errorf("delete bookings by machine: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.UserEmail,
		&booking.MachineID,
		&booking.TimeSlot,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return &booking, nil
}

func (r *BookingRepository) queryBookingsWithMachine(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		var booking model.Booking
		err := rows.Scan(
			&booking.ID,
			&booking.UserEmail,
			&booking.MachineID,
			&booking.TimeSlot,
			&booking.Status,
			&booking.CreatedAt,
			&booking.UpdatedAt,
			&booking.MachineName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, &booking)
	}

	return bookings, rows.Err()
}

func (r *BookingRepository) queryBookingsWithUser(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		var booking model.Booking
		err := rows.Scan(
			&booking.ID,
			&booking.UserEmail,
			&booking.MachineID,
			&booking.TimeSlot,
			&booking.Status,
			&booking.CreatedAt,
			&booking.UpdatedAt,
			&booking.UserName,
		)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, &booking)
	}

	return bookings, rows.Err()
}
