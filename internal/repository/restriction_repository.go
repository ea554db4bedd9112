package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/repository/base"
)

// Тег полезной нагрузки правила лимита использования. Исторические форматы
// (max_usages + cooldown) не поддерживаются и отклоняются при декодировании.
const rollingWindowPayloadType = "rolling_window_limit"

type RestrictionRepository struct {
	pool *pgxpool.Pool
}

func NewRestrictionRepository(pool *pgxpool.Pool) *RestrictionRepository {
	return &RestrictionRepository{pool: pool}
}

// rawRulePayload сырой JSON правила до декодирования в типизированный вариант.
type rawRulePayload struct {
	RestrictionType string `json:"restriction_type"`
	WindowSize      *int   `json:"window_size"`
	MaxBookings     *int   `json:"max_bookings"`
	TargetYear      *int   `json:"target_year"`
	Operator        string `json:"operator"`
	Pattern         string `json:"pattern"`
	Description     string `json:"description"`
}

// ActiveUsageLimitRule получает действующее правило скользящего окна машины,
// или nil если его нет. При нескольких подходящих правилах детерминированно
// выбирается созданное последним.
func (r *RestrictionRepository) ActiveUsageLimitRule(ctx context.Context, q base.Querier, machineID int64, asOf time.Time) (*model.RollingWindowRule, error) {
	query := `
		SELECT restriction_rule
		FROM machine_restrictions
		WHERE machine_id = $1 AND restriction_type = 'usage_limit' AND is_active = true
		  AND (start_time IS NULL OR start_time <= $2)
		  AND (end_time IS NULL OR end_time >= $2)
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var raw []byte
	err := q.QueryRow(ctx, query, machineID, asOf).Scan(&raw)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get usage limit rule: %w", err)
	}

	rule, err := decodeRule(model.RestrictionTypeUsageLimit, raw)
	if err != nil {
		return nil, err
	}
	return rule.RollingWindow, nil
}

// ActiveByMachine получает все действующие правила машины. Правила с
// нечитаемой полезной нагрузкой пропускаются: проверка доступа работает в
// режиме fail-open.
func (r *RestrictionRepository) ActiveByMachine(ctx context.Context, machineID int64, asOf time.Time) ([]*model.MachineRestriction, error) {
	query := `
		SELECT id, machine_id, restriction_type, restriction_rule, start_time, end_time, is_active, description, created_at
		FROM machine_restrictions
		WHERE machine_id = $1 AND is_active = true
		  AND (start_time IS NULL OR start_time <= $2)
		  AND (end_time IS NULL OR end_time >= $2)
		ORDER BY created_at DESC
	`

	return r.queryRestrictions(ctx, query, true, machineID, asOf)
}

// ByMachine получает все правила машины, включая неактивные (админка).
func (r *RestrictionRepository) ByMachine(ctx context.Context, machineID int64) ([]*model.MachineRestriction, error) {
	query := `
		SELECT id, machine_id, restriction_type, restriction_rule, start_time, end_time, is_active, description, created_at
		FROM machine_restrictions
		WHERE machine_id = $1
		ORDER BY created_at DESC
	`

	return r.queryRestrictions(ctx, query, false, machineID)
}

// ListAll получает правила всех машин (админский обзор).
func (r *RestrictionRepository) ListAll(ctx context.Context) ([]*model.MachineRestriction, error) {
	query := `
		SELECT id, machine_id, restriction_type, restriction_rule, start_time, end_time, is_active, description, created_at
		FROM machine_restrictions
		ORDER BY machine_id, created_at DESC
	`

	return r.queryRestrictions(ctx, query, false)
}

// Create создаёт правило ограничения. Полезная нагрузка проверяется
// декодированием до записи, чтобы некорректное правило не попало в базу.
func (r *RestrictionRepository) Create(ctx context.Context, restriction *model.MachineRestriction, payload []byte) error {
	if _, err := decodeRule(restriction.Type, payload); err != nil {
		return err
	}

	query := `
		INSERT INTO machine_restrictions (machine_id, restriction_type, restriction_rule, start_time, end_time, is_active, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(
		ctx, query,
		restriction.MachineID,
		restriction.Type,
		payload,
		restriction.StartTime,
		restriction.EndTime,
		restriction.IsActive,
		restriction.Description,
	).Scan(&restriction.ID, &restriction.CreatedAt)

	if err != nil {
		return fmt.Errorf("create restriction: %w", err)
	}

	return nil
}

// Delete удаляет правило ограничения машины
func (r *RestrictionRepository) Delete(ctx context.Context, machineID, restrictionID int64) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM machine_restrictions WHERE id = $1 AND machine_id = $2`,
		restrictionID, machineID)
	if err != nil {
		return fmt.Errorf("delete restriction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("restriction not found")
	}

	return nil
}

// DeleteByMachine удаляет все правила машины (каскад при удалении машины).
func (r *RestrictionRepository) DeleteByMachine(ctx context.Context, q base.Querier, machineID int64) (int64, error) {
	result, err := q.Exec(ctx, `DELETE FROM machine_restrictions WHERE machine_id = $1`, machineID)
	if err != nil {
		return 0, fmt.Errorf("delete restrictions by machine: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *RestrictionRepository) queryRestrictions(ctx context.Context, query string, skipBroken bool, args ...any) ([]*model.MachineRestriction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query restrictions: %w", err)
	}
	defer rows.Close()

	var restrictions []*model.MachineRestriction
	for rows.Next() {
		var restriction model.MachineRestriction
		var raw []byte
		err := rows.Scan(
			&restriction.ID,
			&restriction.MachineID,
			&restriction.Type,
			&raw,
			&restriction.StartTime,
			&restriction.EndTime,
			&restriction.IsActive,
			&restriction.Description,
			&restriction.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan restriction: %w", err)
		}

		// Админские списки показывают и нечитаемые правила (Rule == nil),
		// пути проверки доступа их пропускают
		rule, err := decodeRule(restriction.Type, raw)
		if err == nil {
			restriction.Rule = rule
		} else if skipBroken {
			continue
		}
		restrictions = append(restrictions, &restriction)
	}

	return restrictions, rows.Err()
}

// decodeRule декодирует полезную нагрузку в закрытый типизированный вариант.
// Неизвестные и устаревшие форматы отклоняются здесь, на границе хранилища,
// а не в бизнес-логике.
func decodeRule(rtype model.RestrictionType, raw []byte) (*model.RestrictionRule, error) {
	var payload rawRulePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, err, "restriction rule is not valid JSON")
	}

	switch rtype {
	case model.RestrictionTypeUsageLimit:
		if payload.RestrictionType != rollingWindowPayloadType {
			return nil, apperr.New(apperr.KindConfiguration,
				"unsupported usage limit format %q, expected %q", payload.RestrictionType, rollingWindowPayloadType)
		}
		if payload.WindowSize == nil || payload.MaxBookings == nil {
			return nil, apperr.New(apperr.KindConfiguration, "rolling window rule is missing window_size or max_bookings")
		}
		if *payload.WindowSize < 1 || *payload.MaxBookings < 1 {
			return nil, apperr.New(apperr.KindConfiguration,
				"rolling window rule has non-positive bounds: window_size=%d max_bookings=%d", *payload.WindowSize, *payload.MaxBookings)
		}
		return &model.RestrictionRule{
			RollingWindow: &model.RollingWindowRule{WindowSize: *payload.WindowSize, MaxBookings: *payload.MaxBookings},
		}, nil

	case model.RestrictionTypeYearLimit:
		if payload.TargetYear == nil || payload.Operator == "" {
			return nil, apperr.New(apperr.KindConfiguration, "year rule is missing target_year or operator")
		}
		switch payload.Operator {
		case "gt", "gte", "lt", "lte", "eq":
		default:
			return nil, apperr.New(apperr.KindConfiguration, "year rule has unknown operator %q", payload.Operator)
		}
		return &model.RestrictionRule{
			Year: &model.YearRule{TargetYear: *payload.TargetYear, Operator: payload.Operator},
		}, nil

	case model.RestrictionTypeEmailPattern:
		if payload.Pattern == "" {
			return nil, apperr.New(apperr.KindConfiguration, "email pattern rule is missing pattern")
		}
		return &model.RestrictionRule{
			EmailPattern: &model.EmailPatternRule{Pattern: payload.Pattern},
		}, nil

	default:
		return nil, apperr.New(apperr.KindConfiguration, "unknown restriction type %q", rtype)
	}
}
