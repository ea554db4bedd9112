package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/repository"
	"github.com/makerlab/booking-api/internal/repository/base"
	"github.com/makerlab/booking-api/internal/timeslot"
)

// fakeTx транзакция-заглушка: запоминает только исход.
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return pgx.ErrTxClosed
}

func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *fakeTx) Conn() *pgx.Conn                                               { return nil }

type fakePool struct {
	txs []*fakeTx
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	p.txs = append(p.txs, tx)
	return tx, nil
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (p *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }

type fakeMachines struct {
	machine *model.Machine
}

func (f *fakeMachines) GetByIDTx(ctx context.Context, q base.Querier, id int64) (*model.Machine, error) {
	return f.machine, nil
}

// fakeBookings подменяет только пути допуска; остальные методы интерфейса
// берутся из встраивания и падают при неожиданном вызове.
type fakeBookings struct {
	bookingStore

	insertErr     error
	insertedID    int64
	inserted      *model.Booking
	active        *model.Booking
	cancelled     *model.Booking
	reactivateErr error
	reactivatedTo string
}

func (f *fakeBookings) Insert(ctx context.Context, q base.Querier, booking *model.Booking) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	booking.ID = f.insertedID
	f.inserted = booking
	return nil
}

func (f *fakeBookings) FindActive(ctx context.Context, q base.Querier, machineID int64, slot time.Time) (*model.Booking, error) {
	return f.active, nil
}

func (f *fakeBookings) FindCancelled(ctx context.Context, q base.Querier, machineID int64, slot time.Time) (*model.Booking, error) {
	return f.cancelled, nil
}

func (f *fakeBookings) Reactivate(ctx context.Context, q base.Querier, id int64, userEmail string, at time.Time) (*model.Booking, error) {
	if f.reactivateErr != nil {
		return nil, f.reactivateErr
	}
	if f.cancelled == nil || f.cancelled.ID != id {
		return nil, nil
	}
	f.reactivatedTo = userEmail
	return &model.Booking{
		ID:        id,
		UserEmail: userEmail,
		MachineID: f.cancelled.MachineID,
		TimeSlot:  f.cancelled.TimeSlot,
		Status:    model.BookingStatusActive,
		CreatedAt: at,
		UpdatedAt: at,
	}, nil
}

func (f *fakeBookings) FutureActiveSlots(ctx context.Context, q base.Querier, userEmail string, machineID int64, from time.Time) ([]time.Time, error) {
	return nil, nil
}

type fakeRestrictions struct {
	rule  *model.RollingWindowRule
	calls int
}

func (f *fakeRestrictions) ActiveUsageLimitRule(ctx context.Context, q base.Querier, machineID int64, asOf time.Time) (*model.RollingWindowRule, error) {
	f.calls++
	return f.rule, nil
}

type usageCall struct {
	userEmail string
	bookingID int64
}

type fakeUsage struct {
	upsertErr error
	calls     []usageCall
}

func (f *fakeUsage) Upsert(ctx context.Context, q base.Querier, userEmail string, machineID, bookingID int64, usageTime time.Time) (int64, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.calls = append(f.calls, usageCall{userEmail: userEmail, bookingID: bookingID})
	return int64(len(f.calls)), nil
}

func (f *fakeUsage) DeleteByBooking(ctx context.Context, q base.Querier, bookingID int64) (int64, error) {
	return 0, nil
}

type fakeUsers struct{}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}

type allowAll struct{}

func (allowAll) CheckAccess(ctx context.Context, userEmail string, machineID int64) Decision {
	return Decision{Allowed: true}
}

func activeSlotViolation() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: repository.ConstraintActiveSlot}
}

type admissionFixture struct {
	pool     *fakePool
	bookings *fakeBookings
	rules    *fakeRestrictions
	usage    *fakeUsage
	service  *BookingService
	slot     time.Time
}

func newAdmissionFixture(machine *model.Machine) *admissionFixture {
	pool := &fakePool{}
	bookings := &fakeBookings{insertedID: 42}
	rules := &fakeRestrictions{}
	usage := &fakeUsage{}
	calendar := timeslot.NewCalendar(time.UTC)

	svc := NewBookingService(
		pool,
		calendar,
		&fakeMachines{machine: machine},
		bookings,
		rules,
		usage,
		&fakeUsers{},
		allowAll{},
		zap.NewNop(),
	)

	return &admissionFixture{
		pool:     pool,
		bookings: bookings,
		rules:    rules,
		usage:    usage,
		service:  svc,
		slot:     time.Date(2030, 1, 7, 8, 0, 0, 0, time.UTC),
	}
}

func activeMachine() *model.Machine {
	return &model.Machine{
		ID:                1,
		Name:              "laser cutter",
		Status:            model.MachineStatusActive,
		RestrictionStatus: model.RestrictionStatusNone,
	}
}

func TestCreateCommitsBookingWithUsageRecord(t *testing.T) {
	fx := newAdmissionFixture(activeMachine())

	booking, err := fx.service.Create(context.Background(), "alice@makerlab.io", 1, fx.slot)
	require.NoError(t, err)
	require.Equal(t, int64(42), booking.ID)

	// Запись об использовании создана в той же транзакции, транзакция закрыта
	require.Len(t, fx.usage.calls, 1)
	require.Equal(t, usageCall{userEmail: "alice@makerlab.io", bookingID: 42}, fx.usage.calls[0])
	require.Len(t, fx.pool.txs, 1)
	require.True(t, fx.pool.txs[0].committed)
}

func TestCreateConflictReactivatesCancelledRow(t *testing.T) {
	fx := newAdmissionFixture(activeMachine())
	fx.bookings.insertErr = activeSlotViolation()
	fx.bookings.cancelled = &model.Booking{
		ID:        7,
		UserEmail: "bob@makerlab.io",
		MachineID: 1,
		TimeSlot:  fx.slot,
		Status:    model.BookingStatusCancelled,
	}

	booking, err := fx.service.Create(context.Background(), "alice@makerlab.io", 1, fx.slot)
	require.NoError(t, err)

	// Строка переписана на нового владельца, прежний email не виден
	require.Equal(t, int64(7), booking.ID)
	require.Equal(t, "alice@makerlab.io", booking.UserEmail)
	require.Equal(t, "alice@makerlab.io", fx.bookings.reactivatedTo)
	require.Equal(t, model.BookingStatusActive, booking.Status)

	// Запись об использовании выписана новому владельцу
	require.Len(t, fx.usage.calls, 1)
	require.Equal(t, "alice@makerlab.io", fx.usage.calls[0].userEmail)

	// Первая транзакция откатилась, вторая зафиксировалась
	require.Len(t, fx.pool.txs, 2)
	require.True(t, fx.pool.txs[0].rolledBack)
	require.True(t, fx.pool.txs[1].committed)
}

func TestCreateConflictWithoutCancelledRow(t *testing.T) {
	// Конкурентный запрос выиграл вставку, отменённой строки нет: конфликт
	// настоящий
	fx := newAdmissionFixture(activeMachine())
	fx.bookings.insertErr = activeSlotViolation()

	_, err := fx.service.Create(context.Background(), "alice@makerlab.io", 1, fx.slot)
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindSlotOccupied), "got %v", err)

	require.Empty(t, fx.usage.calls)
	for _, tx := range fx.pool.txs {
		require.False(t, tx.committed)
	}
}

func TestCreateRollsBackWhenUsageRecordFails(t *testing.T) {
	fx := newAdmissionFixture(activeMachine())
	fx.usage.upsertErr = errors.New("relation does not exist")

	_, err := fx.service.Create(context.Background(), "alice@makerlab.io", 1, fx.slot)
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindStorage), "got %v", err)

	// Бронирование не должно пережить отказ записи об использовании
	require.Len(t, fx.pool.txs, 1)
	require.False(t, fx.pool.txs[0].committed)
	require.True(t, fx.pool.txs[0].rolledBack)
}

func TestCreateBlockedMachineRejected(t *testing.T) {
	machine := activeMachine()
	machine.RestrictionStatus = model.RestrictionStatusBlocked
	fx := newAdmissionFixture(machine)

	_, err := fx.service.Create(context.Background(), "alice@makerlab.io", 1, fx.slot)
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindMachineRestricted), "got %v", err)

	// До правил лимита и вставки дело не доходит
	require.Zero(t, fx.rules.calls)
	require.Nil(t, fx.bookings.inserted)
	require.Empty(t, fx.usage.calls)
}

func TestReactivateRacesWithNewActiveRow(t *testing.T) {
	// Между конфликтом вставки и реактивацией кто-то занял слот заново:
	// UPDATE упирается в тот же индекс и должен читаться как занятость
	fx := newAdmissionFixture(activeMachine())
	fx.bookings.insertErr = activeSlotViolation()
	fx.bookings.cancelled = &model.Booking{
		ID:        7,
		UserEmail: "bob@makerlab.io",
		MachineID: 1,
		TimeSlot:  fx.slot,
		Status:    model.BookingStatusCancelled,
	}
	fx.bookings.reactivateErr = activeSlotViolation()

	_, err := fx.service.Create(context.Background(), "alice@makerlab.io", 1, fx.slot)
	require.Error(t, err)
	require.True(t, apperr.IsKind(err, apperr.KindSlotOccupied), "got %v", err)

	for _, tx := range fx.pool.txs {
		require.False(t, tx.committed)
	}
}
