package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/limit"
	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/repository"
	"github.com/makerlab/booking-api/internal/repository/base"
	"github.com/makerlab/booking-api/internal/timeslot"
)

// Хранилище в том объёме, который нужен движку допуска. Конкретные
// репозитории из internal/repository подходят без адаптеров, в тестах
// транзакционные пути прогоняются на фейках.
type txBeginner interface {
	base.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type machineStore interface {
	GetByIDTx(ctx context.Context, q base.Querier, id int64) (*model.Machine, error)
}

type bookingStore interface {
	Insert(ctx context.Context, q base.Querier, booking *model.Booking) error
	FindActive(ctx context.Context, q base.Querier, machineID int64, slot time.Time) (*model.Booking, error)
	FindCancelled(ctx context.Context, q base.Querier, machineID int64, slot time.Time) (*model.Booking, error)
	Reactivate(ctx context.Context, q base.Querier, id int64, userEmail string, at time.Time) (*model.Booking, error)
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	Cancel(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, q base.Querier, id int64) error
	FutureActiveSlots(ctx context.Context, q base.Querier, userEmail string, machineID int64, from time.Time) ([]time.Time, error)
	CountActiveInWindow(ctx context.Context, userEmail string, machineID int64, start, end time.Time) (int, error)
	ActiveByMachine(ctx context.Context, machineID int64, from, to *time.Time) ([]*model.Booking, error)
	ActiveInRange(ctx context.Context, from, to time.Time) ([]*model.Booking, error)
	ByUser(ctx context.Context, userEmail string) ([]*model.Booking, error)
	ByUserInRange(ctx context.Context, userEmail string, from, to time.Time) ([]*model.Booking, error)
	List(ctx context.Context, status model.BookingStatus, limit, offset int) ([]*model.Booking, error)
	ActiveFrom(ctx context.Context, from time.Time) ([]*model.Booking, error)
	MonthlyStats(ctx context.Context, from time.Time) ([]repository.MonthlyStat, error)
}

type restrictionStore interface {
	ActiveUsageLimitRule(ctx context.Context, q base.Querier, machineID int64, asOf time.Time) (*model.RollingWindowRule, error)
}

type usageStore interface {
	Upsert(ctx context.Context, q base.Querier, userEmail string, machineID, bookingID int64, usageTime time.Time) (int64, error)
	DeleteByBooking(ctx context.Context, q base.Querier, bookingID int64) (int64, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type accessChecker interface {
	CheckAccess(ctx context.Context, userEmail string, machineID int64) Decision
}

// BookingService движок допуска бронирований и их жизненный цикл.
// Вся конкурентная корректность держится на частичном уникальном индексе
// (machine_id, time_slot) для активных строк: предварительные проверки в
// транзакции — быстрый путь для внятных ошибок, а не источник истины.
type BookingService struct {
	pool            txBeginner
	calendar        *timeslot.Calendar
	machineRepo     machineStore
	bookingRepo     bookingStore
	restrictionRepo restrictionStore
	usageRepo       usageStore
	userRepo        userStore
	restrictions    accessChecker
	logger          *zap.Logger
}

func NewBookingService(
	pool txBeginner,
	calendar *timeslot.Calendar,
	machineRepo machineStore,
	bookingRepo bookingStore,
	restrictionRepo restrictionStore,
	usageRepo usageStore,
	userRepo userStore,
	restrictions accessChecker,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		pool:            pool,
		calendar:        calendar,
		machineRepo:     machineRepo,
		bookingRepo:     bookingRepo,
		restrictionRepo: restrictionRepo,
		usageRepo:       usageRepo,
		userRepo:        userRepo,
		restrictions:    restrictions,
		logger:          logger,
	}
}

// Calendar календарь слотов, которым пользуется сервис
func (s *BookingService) Calendar() *timeslot.Calendar {
	return s.calendar
}

// Create проводит бронирование через полный цикл допуска:
// валидация слота → статус машины → ограничения → занятость → скользящее
// окно → вставка → запись об использовании, всё в одной транзакции.
// При нарушении уникального ограничения активного слота пробует
// реактивировать отменённое бронирование на том же (машина, слот).
func (s *BookingService) Create(ctx context.Context, userEmail string, machineID int64, slotTime time.Time) (*model.Booking, error) {
	slot, err := s.calendar.Normalize(slotTime)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidSlot, err,
			"time slot must start at one of 00, 04, 08, 12, 16, 20 hours")
	}

	now := s.calendar.Now()
	if slot.Before(now) {
		return nil, apperr.New(apperr.KindPastSlot,
			"slot %s already started, pick a future slot", slot.Format("2006/01/02 15:04"))
	}

	booking, err := s.admit(ctx, userEmail, machineID, slot, now)
	if err == nil {
		return booking, nil
	}

	// Вставка упала именно на ограничении активного слота: либо есть
	// отменённая строка для реактивации, либо конкурентный запрос успел
	// раньше и конфликт настоящий. Любая другая ошибка уходит выше как есть.
	if base.IsUniqueViolation(err, repository.ConstraintActiveSlot) {
		return s.reactivate(ctx, userEmail, machineID, slot, now)
	}

	return nil, err
}

// admit фаза вставки: все проверки и создание новой строки бронирования.
func (s *BookingService) admit(ctx context.Context, userEmail string, machineID int64, slot, now time.Time) (*model.Booking, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "cannot start booking transaction")
	}
	defer tx.Rollback(ctx)

	machine, err := s.machineRepo.GetByIDTx(ctx, tx, machineID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "cannot load machine")
	}
	if machine == nil {
		return nil, apperr.New(apperr.KindMachineNotFound, "machine %d does not exist", machineID)
	}
	if !machine.Bookable() {
		return nil, apperr.New(apperr.KindMachineUnavail,
			"machine %q is %s and cannot be booked", machine.Name, machine.Status)
	}

	// Не-лимитные ограничения (блокировка, год, email): fail-open
	if decision := s.restrictions.CheckAccess(ctx, userEmail, machineID); !decision.Allowed {
		return nil, apperr.New(apperr.KindMachineRestricted, "%s", decision.Reason)
	}

	// Быстрая проверка занятости до вставки, ради внятной ошибки
	existing, err := s.bookingRepo.FindActive(ctx, tx, machineID, slot)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "cannot check slot occupancy")
	}
	if existing != nil {
		return nil, apperr.New(apperr.KindSlotOccupied,
			"slot %s on machine %q is already booked", slot.Format("2006/01/02 15:04"), machine.Name)
	}

	if err := s.checkRollingWindow(ctx, tx, machine, userEmail, slot, now); err != nil {
		return nil, err
	}

	booking := &model.Booking{
		UserEmail: userEmail,
		MachineID: machineID,
		TimeSlot:  slot,
		Status:    model.BookingStatusActive,
	}

	if err := s.bookingRepo.Insert(ctx, tx, booking); err != nil {
		// Нарушение уникальности пробрасываем нетронутым: Create по нему
		// выбирает ветку реактивации
		return nil, err
	}

	if err := s.recordUsage(ctx, tx, booking); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "cannot commit booking")
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.String("user_email", userEmail),
		zap.Int64("machine_id", machineID),
		zap.Time("time_slot", slot),
	)

	booking.MachineName = machine.Name
	return booking, nil
}

// reactivate фаза отката: переписывает отменённое бронирование на том же
// (машина, слот) под нового владельца. Если отменённой строки нет, конфликт
// настоящий.
func (s *BookingService) reactivate(ctx context.Context, userEmail string, machineID int64, slot, now time.Time) (*model.Booking, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "cannot start reactivation transaction")
	}
	defer tx.Rollback(ctx)

	cancelled, err := s.bookingRepo.FindCancelled(ctx, tx, machineID, slot)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "cannot look up cancelled booking")
	}
	if cancelled == nil {
		return nil, apperr.New(apperr.KindSlotOccupied,
			"slot %s is already booked", slot.Format("2006/01/02 15:04"))
	}

	booking, err := s.bookingRepo.Reactivate(ctx, tx, cancelled.ID, userEmail, now)
	if err != nil {
		// Гонка: активная строка на (машина, слот) появилась уже после
		// конфликта вставки, реактивация упёрлась в тот же индекс
		if base.IsUniqueViolation(err, repository.ConstraintActiveSlot) {
			return nil, apperr.New(apperr.KindSlotOccupied,
				"slot %s is already booked", slot.Format("2006/01/02 15:04"))
		}
		return nil, apperr.Wrap(apperr.KindStorage, err, "cannot reactivate booking")
	}
	if booking == nil {
		// Конкурентный запрос реактивировал строку первым
		return nil, apperr.New(apperr.KindSlotOccupied,
			"slot %s is already booked", slot.Format("2006/01/02 15:04"))
	}

	if err := s.recordUsage(ctx, tx, booking); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.KindStorage, err, "cannot commit reactivation")
	}

	s.logger.Info("Cancelled booking reactivated",
		zap.Int64("booking_id", booking.ID),
		zap.String("user_email", userEmail),
		zap.Int64("machine_id", machineID),
		zap.Time("time_slot", slot),
	)

	return booking, nil
}

// checkRollingWindow проверяет лимит скользящего окна. Любая внутренняя
// ошибка здесь ОТКЛОНЯЕТ бронирование (fail-closed): переподписка хуже
// ложного отказа. Это противоположно fail-open проверке ограничений.
func (s *BookingService) checkRollingWindow(ctx context.Context, q base.Querier, machine *model.Machine, userEmail string, slot, now time.Time) error {
	switch machine.RestrictionStatus {
	case model.RestrictionStatusNone:
		return nil
	case model.RestrictionStatusBlocked:
		return apperr.New(apperr.KindMachineRestricted, "machine %q is blocked by administrator", machine.Name)
	case model.RestrictionStatusLimited:
		// Дальше к правилу
	default:
		return nil
	}

	rule, err := s.restrictionRepo.ActiveUsageLimitRule(ctx, q, machine.ID, now)
	if err != nil {
		if apperr.IsKind(err, apperr.KindConfiguration) {
			return err
		}
		return apperr.Wrap(apperr.KindStorage, err, "cannot load usage limit rule")
	}
	if rule == nil {
		// restriction_status=limited без правила лимита: лимит не настроен
		return nil
	}

	existing, err := s.bookingRepo.FutureActiveSlots(ctx, q, userEmail, machine.ID, now)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot load user bookings for window check")
	}

	if v := limit.Check(existing, slot, limit.Rule(*rule)); v != nil {
		return apperr.Wrap(apperr.KindWindowExceeded, v,
			"window %s to %s already holds %d bookings, limit is %d",
			v.WindowStart.Format("01/02 15:04"), v.WindowEnd.Format("01/02 15:04"), v.Count, v.Limit)
	}

	return nil
}

// recordUsage создаёт запись об использовании в транзакции бронирования.
// При ошибке транзакция откатывается целиком: бронирование без записи об
// использовании не должно быть наблюдаемо.
func (s *BookingService) recordUsage(ctx context.Context, q base.Querier, booking *model.Booking) error {
	usageID, err := s.usageRepo.Upsert(ctx, q, booking.UserEmail, booking.MachineID, booking.ID, booking.TimeSlot)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot record machine usage")
	}

	s.logger.Debug("Usage recorded",
		zap.Int64("usage_record_id", usageID),
		zap.Int64("booking_id", booking.ID),
	)
	return nil
}

// Cancel отменяет бронирование: только владелец, только активное и строго
// до начала слота. Запись об использовании остаётся, история сохраняется.
func (s *BookingService) Cancel(ctx context.Context, bookingID int64, userEmail string) error {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot load booking")
	}
	if booking == nil {
		return apperr.New(apperr.KindNotFound, "booking %d does not exist", bookingID)
	}

	if booking.UserEmail != userEmail {
		return apperr.New(apperr.KindPermissionDenied, "you can only cancel your own bookings")
	}

	now := s.calendar.Now()
	if err := Cancellable(booking, now); err != nil {
		return err
	}

	if err := s.bookingRepo.Cancel(ctx, bookingID, now); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot cancel booking")
	}

	s.logger.Info("Booking cancelled",
		zap.Int64("booking_id", bookingID),
		zap.String("user_email", userEmail),
	)

	return nil
}

// Cancellable проверяет переход active → cancelled для момента now.
func Cancellable(booking *model.Booking, now time.Time) error {
	if booking.Status != model.BookingStatusActive {
		return apperr.New(apperr.KindInvalidTransition,
			"booking is %s and cannot be cancelled", booking.Status)
	}
	if !booking.TimeSlot.After(now) {
		return apperr.New(apperr.KindInvalidTransition,
			"booking at %s already started and cannot be cancelled", booking.TimeSlot.Format("2006/01/02 15:04"))
	}
	return nil
}

// AdminDelete полностью удаляет бронирование вместе с записями об
// использовании. Обходит машину состояний, доступно только ролям
// manager/admin.
func (s *BookingService) AdminDelete(ctx context.Context, bookingID int64, adminEmail string) error {
	admin, err := s.userRepo.GetByEmail(ctx, adminEmail)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot verify admin role")
	}
	if admin == nil || !admin.Role.IsElevated() {
		return apperr.New(apperr.KindPermissionDenied, "manager or admin role required")
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot load booking")
	}
	if booking == nil {
		return apperr.New(apperr.KindNotFound, "booking %d does not exist", bookingID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot start delete transaction")
	}
	defer tx.Rollback(ctx)

	deletedUsage, err := s.usageRepo.DeleteByBooking(ctx, tx, bookingID)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot delete usage records")
	}

	if err := s.bookingRepo.Delete(ctx, tx, bookingID); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot delete booking")
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot commit delete")
	}

	s.logger.Info("Booking hard-deleted by admin",
		zap.Int64("booking_id", bookingID),
		zap.String("admin_email", adminEmail),
		zap.String("owner_email", booking.UserEmail),
		zap.Int64("deleted_usage_records", deletedUsage),
	)

	return nil
}

// MachineBookings активные бронирования машины для календаря занятости.
func (s *BookingService) MachineBookings(ctx context.Context, machineID int64, from, to *time.Time) ([]*model.Booking, error) {
	return s.bookingRepo.ActiveByMachine(ctx, machineID, from, to)
}

// CalendarView активные бронирования всех машин в диапазоне.
func (s *BookingService) CalendarView(ctx context.Context, from, to time.Time) ([]*model.Booking, error) {
	return s.bookingRepo.ActiveInRange(ctx, from, to)
}

// UserBookings все бронирования пользователя.
func (s *BookingService) UserBookings(ctx context.Context, userEmail string) ([]*model.Booking, error) {
	return s.bookingRepo.ByUser(ctx, userEmail)
}

// UserMonthlyBookings бронирования пользователя за календарный месяц.
func (s *BookingService) UserMonthlyBookings(ctx context.Context, userEmail string, year int, month time.Month) ([]*model.Booking, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, s.calendar.Location())
	to := from.AddDate(0, 1, 0)
	return s.bookingRepo.ByUserInRange(ctx, userEmail, from, to)
}

// RollingWindowStatus состояние пользователя относительно лимита машины,
// с окном от ближайшего слота в будущее.
func (s *BookingService) RollingWindowStatus(ctx context.Context, userEmail string, machineID int64) (limit.Status, error) {
	now := s.calendar.Now()

	rule, err := s.restrictionRepo.ActiveUsageLimitRule(ctx, s.pool, machineID, now)
	if err != nil {
		if apperr.IsKind(err, apperr.KindConfiguration) {
			return limit.Status{}, err
		}
		return limit.Status{}, apperr.Wrap(apperr.KindStorage, err, "cannot load usage limit rule")
	}
	if rule == nil {
		return limit.Status{HasLimit: false}, nil
	}

	windowStart := s.calendar.Ceiling(now)
	windowEnd := s.calendar.WindowEnd(windowStart, rule.WindowSize)

	usage, err := s.bookingRepo.CountActiveInWindow(ctx, userEmail, machineID, windowStart, windowEnd)
	if err != nil {
		return limit.Status{}, apperr.Wrap(apperr.KindStorage, err, "cannot count bookings in window")
	}

	return limit.NewStatus(limit.Rule(*rule), usage, windowStart, windowEnd), nil
}

// AdminList бронирования для административного списка.
func (s *BookingService) AdminList(ctx context.Context, status model.BookingStatus, limitN, offset int) ([]*model.Booking, error) {
	if limitN <= 0 || limitN > 500 {
		limitN = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookingRepo.List(ctx, status, limitN, offset)
}

// AdminActive активные бронирования начиная с текущего момента.
func (s *BookingService) AdminActive(ctx context.Context) ([]*model.Booking, error) {
	return s.bookingRepo.ActiveFrom(ctx, s.calendar.Now())
}

// AdminMonthlyStats помесячная статистика за последние months месяцев.
func (s *BookingService) AdminMonthlyStats(ctx context.Context, months int) ([]repository.MonthlyStat, error) {
	if months <= 0 || months > 36 {
		months = 12
	}
	from := s.calendar.Now().AddDate(0, -months, 0)
	return s.bookingRepo.MonthlyStats(ctx, from)
}

// GetByID бронирование по идентификатору.
func (s *BookingService) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}
