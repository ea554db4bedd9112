package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/repository"
	"github.com/makerlab/booking-api/internal/timeslot"
)

// NotificationService объявления для главной страницы. Не участвует в
// решениях о допуске бронирований.
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	userRepo         *repository.UserRepository
	calendar         *timeslot.Calendar
	logger           *zap.Logger
}

func NewNotificationService(
	notificationRepo *repository.NotificationRepository,
	userRepo *repository.UserRepository,
	calendar *timeslot.Calendar,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		calendar:         calendar,
		logger:           logger,
	}
}

func validLevel(level model.NotificationLevel) bool {
	switch level {
	case model.NotificationLevelLow, model.NotificationLevelMedium, model.NotificationLevelHigh:
		return true
	}
	return false
}

// Create создаёт уведомление от имени администратора
func (s *NotificationService) Create(ctx context.Context, adminEmail string, notification *model.Notification) error {
	if notification.Content == "" || notification.Level == "" {
		return apperr.New(apperr.KindValidation, "content and level are required")
	}
	if !validLevel(notification.Level) {
		return apperr.New(apperr.KindValidation, "level must be one of: low, medium, high")
	}
	if notification.StartTime != nil && notification.EndTime != nil && !notification.StartTime.Before(*notification.EndTime) {
		return apperr.New(apperr.KindValidation, "start_time must be before end_time")
	}

	admin, err := s.userRepo.GetByEmail(ctx, adminEmail)
	if err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot load creator")
	}
	if admin == nil {
		return apperr.New(apperr.KindNotFound, "admin user %s does not exist", adminEmail)
	}
	notification.CreatorID = admin.ID

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return apperr.Wrap(apperr.KindStorage, err, "cannot create notification")
	}

	s.logger.Info("Notification created",
		zap.Int64("notification_id", notification.ID),
		zap.String("level", string(notification.Level)),
		zap.String("creator_email", adminEmail),
	)
	return nil
}

// Update обновляет уведомление
func (s *NotificationService) Update(ctx context.Context, notification *model.Notification) error {
	if notification.Content == "" || !validLevel(notification.Level) {
		return apperr.New(apperr.KindValidation, "content and a valid level are required")
	}
	if notification.StartTime != nil && notification.EndTime != nil && !notification.StartTime.Before(*notification.EndTime) {
		return apperr.New(apperr.KindValidation, "start_time must be before end_time")
	}

	if err := s.notificationRepo.Update(ctx, notification); err != nil {
		return apperr.Wrap(apperr.KindNotFound, err, "notification %d not found", notification.ID)
	}

	s.logger.Info("Notification updated", zap.Int64("notification_id", notification.ID))
	return nil
}

// Delete удаляет уведомление
func (s *NotificationService) Delete(ctx context.Context, id int64) error {
	if err := s.notificationRepo.Delete(ctx, id); err != nil {
		return apperr.Wrap(apperr.KindNotFound, err, "notification %d not found", id)
	}

	s.logger.Info("Notification deleted", zap.Int64("notification_id", id))
	return nil
}

// Active уведомления, действующие в данный момент
func (s *NotificationService) Active(ctx context.Context) ([]*model.Notification, error) {
	return s.notificationRepo.ActiveAt(ctx, s.calendar.Now())
}

// ActiveAt уведомления, действующие в указанный момент
func (s *NotificationService) ActiveAt(ctx context.Context, at time.Time) ([]*model.Notification, error) {
	return s.notificationRepo.ActiveAt(ctx, at)
}

// List все уведомления (админка)
func (s *NotificationService) List(ctx context.Context) ([]*model.Notification, error) {
	return s.notificationRepo.List(ctx)
}
