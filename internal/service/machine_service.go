package service

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/repository"
	"github.com/makerlab/booking-api/internal/timeslot"
)

type MachineService struct {
	pool            *pgxpool.Pool
	machineRepo     *repository.MachineRepository
	restrictionRepo *repository.RestrictionRepository
	bookingRepo     *repository.BookingRepository
	usageRepo       *repository.UsageRepository
	calendar        *timeslot.Calendar
	logger          *zap.Logger
}

func NewMachineService(
	pool *pgxpool.Pool,
	machineRepo *repository.MachineRepository,
	restrictionRepo *repository.RestrictionRepository,
	bookingRepo *repository.BookingRepository,
	usageRepo *repository.UsageRepository,
	calendar *timeslot.Calendar,
	logger *zap.Logger,
) *MachineService {
	return &MachineService{
		pool:            pool,
		machineRepo:     machineRepo,
		restrictionRepo: restrictionRepo,
		bookingRepo:     bookingRepo,
		usageRepo:       usageRepo,
		calendar:        calendar,
		logger:          logger,
	}
}

// List получает все машины
func (s *MachineService) List(ctx context.Context) ([]*model.Machine, error) {
	return s.machineRepo.List(ctx)
}

// Get получает машину по ID
func (s *MachineService) Get(ctx context.Context, id int64) (*model.Machine, error) {
	machine, err := s.machineRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "cannot load machine")
	}
	if machine == nil {
		return nil, apperr.New(apperr.KindMachineNotFound, "machine %d does not exist", id)
	}
	return machine, nil
}

// Create создаёт машину
func (s *MachineService) Create(ctx context.Context, machine *model.Machine) error {
	if machine.Name == "" {
		return apperr.New(apperr.KindValidation, "machine name is required")
	}
	if machine.Status == "" {
		machine.Status = model.MachineStatusActive
	}
	if machine.RestrictionStatus == "" {
		machine.RestrictionStatus = model.RestrictionStatusNone
	}

	if err := s.machineRepo.Create(ctx, machine); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot create machine")
	}

	s.logger.Info("Machine created",
		zap.Int64("machine_id", machine.ID),
		zap.String("name", machine.Name),
	)
	return nil
}

// Update обновляет машину
func (s *MachineService) Update(ctx context.Context, machine *model.Machine) error {
	existing, err := s.machineRepo.GetByID(ctx, machine.ID)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot load machine")
	}
	if existing == nil {
		return apperr.New(apperr.KindMachineNotFound, "machine %d does not exist", machine.ID)
	}

	if err := s.machineRepo.Update(ctx, machine); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot update machine")
	}

	s.logger.Info("Machine updated",
		zap.Int64("machine_id", machine.ID),
		zap.String("status", string(machine.Status)),
		zap.String("restriction_status", string(machine.RestrictionStatus)),
	)
	return nil
}

// Delete удаляет машину каскадно: правила ограничений, записи об
// использовании и бронирования уходят в одной транзакции с машиной.
func (s *MachineService) Delete(ctx context.Context, id int64) error {
	machine, err := s.machineRepo.GetByID(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot load machine")
	}
	if machine == nil {
		return apperr.New(apperr.KindMachineNotFound, "machine %d does not exist", id)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot start delete transaction")
	}
	defer tx.Rollback(ctx)

	deletedRestrictions, err := s.restrictionRepo.DeleteByMachine(ctx, tx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot delete machine restrictions")
	}

	deletedUsage, err := s.usageRepo.DeleteByMachine(ctx, tx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot delete usage records")
	}

	deletedBookings, err := s.bookingRepo.DeleteByMachine(ctx, tx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot delete bookings")
	}

	if err := s.machineRepo.Delete(ctx, tx, id); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot delete machine")
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot commit delete")
	}

	s.logger.Info("Machine deleted with cascade",
		zap.Int64("machine_id", id),
		zap.String("name", machine.Name),
		zap.Int64("deleted_restrictions", deletedRestrictions),
		zap.Int64("deleted_usage_records", deletedUsage),
		zap.Int64("deleted_bookings", deletedBookings),
	)
	return nil
}

// Restrictions правила ограничений машины (админка)
func (s *MachineService) Restrictions(ctx context.Context, machineID int64) ([]*model.MachineRestriction, error) {
	machine, err := s.machineRepo.GetByID(ctx, machineID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "cannot load machine")
	}
	if machine == nil {
		return nil, apperr.New(apperr.KindMachineNotFound, "machine %d does not exist", machineID)
	}
	return s.restrictionRepo.ByMachine(ctx, machineID)
}

// AllRestrictions правила всех машин (админский обзор)
func (s *MachineService) AllRestrictions(ctx context.Context) ([]*model.MachineRestriction, error) {
	return s.restrictionRepo.ListAll(ctx)
}

// CreateRestriction создаёт правило ограничения. payload проверяется
// декодированием на границе репозитория до записи.
func (s *MachineService) CreateRestriction(ctx context.Context, restriction *model.MachineRestriction, payload []byte) error {
	machine, err := s.machineRepo.GetByID(ctx, restriction.MachineID)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot load machine")
	}
	if machine == nil {
		return apperr.New(apperr.KindMachineNotFound, "machine %d does not exist", restriction.MachineID)
	}

	if err := s.restrictionRepo.Create(ctx, restriction, payload); err != nil {
		return err
	}

	s.logger.Info("Machine restriction created",
		zap.Int64("machine_id", restriction.MachineID),
		zap.Int64("restriction_id", restriction.ID),
		zap.String("type", string(restriction.Type)),
	)
	return nil
}

// DeleteRestriction удаляет правило ограничения
func (s *MachineService) DeleteRestriction(ctx context.Context, machineID, restrictionID int64) error {
	if err := s.restrictionRepo.Delete(ctx, machineID, restrictionID); err != nil {
		return apperr.Wrap(apperr.KindNotFound, err, "restriction %d not found on machine %d", restrictionID, machineID)
	}

	s.logger.Info("Machine restriction deleted",
		zap.Int64("machine_id", machineID),
		zap.Int64("restriction_id", restrictionID),
	)
	return nil
}
