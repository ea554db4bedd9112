package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/repository"
)

type UserService struct {
	userRepo *repository.UserRepository
	logger   *zap.Logger
}

func NewUserService(userRepo *repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{userRepo: userRepo, logger: logger}
}

// GetOrCreate возвращает существующего пользователя по email или создаёт
// нового с ролью по умолчанию. Аутентификация происходит вне системы,
// сюда приходит уже проверенный email.
func (s *UserService) GetOrCreate(ctx context.Context, name, email string) (*model.User, bool, error) {
	if name == "" || email == "" {
		return nil, false, apperr.New(apperr.KindValidation, "name and email are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindStorage, err, "cannot load user")
	}
	if user != nil {
		return user, false, nil
	}

	user = &model.User{Name: name, Email: email}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, false, apperr.Wrap(apperr.KindStorage, err, "cannot create user")
	}

	s.logger.Info("User created",
		zap.Int64("user_id", user.ID),
		zap.String("email", email),
	)
	return user, true, nil
}

// VerifyElevated проверяет что email принадлежит пользователю с ролью
// manager или admin и возвращает его роль.
func (s *UserService) VerifyElevated(ctx context.Context, email string) (model.UserRole, error) {
	if email == "" {
		return "", apperr.New(apperr.KindPermissionDenied, "manager or admin role required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, err, "cannot verify role")
	}
	if user == nil || !user.Role.IsElevated() {
		return "", apperr.New(apperr.KindPermissionDenied, "manager or admin role required")
	}

	return user.Role, nil
}

// UpdateRole меняет роль пользователя с проверкой иерархии:
// manager не может трогать admin-аккаунты и назначать роль admin.
func (s *UserService) UpdateRole(ctx context.Context, adminEmail, targetEmail string, newRole model.UserRole) (model.UserRole, error) {
	adminRole, err := s.VerifyElevated(ctx, adminEmail)
	if err != nil {
		return "", err
	}

	switch newRole {
	case model.UserRoleUser, model.UserRoleManager, model.UserRoleAdmin:
	default:
		return "", apperr.New(apperr.KindValidation, "invalid role %q", newRole)
	}

	target, err := s.userRepo.GetByEmail(ctx, targetEmail)
	if err != nil {
		return "", apperr.Wrap(apperr.KindStorage, err, "cannot load target user")
	}
	if target == nil {
		return "", apperr.New(apperr.KindNotFound, "user %s does not exist", targetEmail)
	}

	if adminRole == model.UserRoleManager {
		if target.Role == model.UserRoleAdmin {
			return "", apperr.New(apperr.KindPermissionDenied, "managers cannot modify admin users")
		}
		if newRole == model.UserRoleAdmin {
			return "", apperr.New(apperr.KindPermissionDenied, "managers cannot assign admin role")
		}
	}

	if err := s.userRepo.UpdateRole(ctx, targetEmail, newRole); err != nil {
		return "", apperr.Wrap(apperr.KindStorage, err, "cannot update role")
	}

	s.logger.Info("User role updated",
		zap.String("admin_email", adminEmail),
		zap.String("target_email", targetEmail),
		zap.String("old_role", string(target.Role)),
		zap.String("new_role", string(newRole)),
	)
	return newRole, nil
}

// List все пользователи (админка)
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.List(ctx)
}
