package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/repository/base"
)

type MachineRepository struct {
	pool *pgxpool.Pool
}

func NewMachineRepository(pool *pgxpool.Pool) *MachineRepository {
	return &MachineRepository{pool: pool}
}

// Create создаёт новую машину
func (r *MachineRepository) Create(ctx context.Context, machine *model.Machine) error {
	query := `
		INSERT INTO machines (name, description, location, status, restriction_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		machine.Name,
		machine.Description,
		machine.Location,
		machine.Status,
		machine.RestrictionStatus,
	).Scan(&machine.ID, &machine.CreatedAt, &machine.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create machine: %w", err)
	}

	return nil
}

// GetByID получает машину по ID
func (r *MachineRepository) GetByID(ctx context.Context, id int64) (*model.Machine, error) {
	return r.getByID(ctx, r.pool, id)
}

// GetByIDTx получает машину по ID внутри транзакции допуска
func (r *MachineRepository) GetByIDTx(ctx context.Context, q base.Querier, id int64) (*model.Machine, error) {
	return r.getByID(ctx, q, id)
}

func (r *MachineRepository) getByID(ctx context.Context, q base.Querier, id int64) (*model.Machine, error) {
	query := `
		SELECT id, name, description, location, status, restriction_status, created_at, updated_at
		FROM machines
		WHERE id = $1
	`

	var machine model.Machine
	err := q.QueryRow(ctx, query, id).Scan(
		&machine.ID,
		&machine.Name,
		&machine.Description,
		&machine.Location,
		&machine.Status,
		&machine.RestrictionStatus,
		&machine.CreatedAt,
		&machine.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get machine by id: %w", err)
	}

	return &machine, nil
}

// List получает все машины
func (r *MachineRepository) List(ctx context.Context) ([]*model.Machine, error) {
	query := `
		SELECT id, name, description, location, status, restriction_status, created_at, updated_at
		FROM machines
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var machines []*model.Machine
	for rows.Next() {
		var machine model.Machine
		err := rows.Scan(
			&machine.ID,
			&machine.Name,
			&machine.Description,
			&machine.Location,
			&machine.Status,
			&machine.RestrictionStatus,
			&machine.CreatedAt,
			&machine.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		machines = append(machines, &machine)
	}

	return machines, rows.Err()
}

// Update обновляет атрибуты машины
func (r *MachineRepository) Update(ctx context.Context, machine *model.Machine) error {
	query := `
		UPDATE machines
		SET name = $1, description = $2, location = $3, status = $4, restriction_status = $5, updated_at = now()
		WHERE id = $6
		RETURNING updated_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		machine.Name,
		machine.Description,
		machine.Location,
		machine.Status,
		machine.RestrictionStatus,
		machine.ID,
	).Scan(&machine.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return fmt.Errorf("machine not found")
		}
		return fmt.Errorf("update machine: %w", err)
	}

	return nil
}

// Delete удаляет машину. Связанные записи удаляет вызывающий в той же транзакции.
func (r *MachineRepository) Delete(ctx context.Context, q base.Querier, id int64) error {
	result, err := q.Exec(ctx, `DELETE FROM machines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete machine: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("machine not found")
	}

	return nil
}
