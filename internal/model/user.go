package model

import "time"

type UserRole string

const (
	UserRoleUser    UserRole = "user"    // Обычный пользователь
	UserRoleManager UserRole = "manager" // Менеджер: администрирование, кроме admin-аккаунтов
	UserRoleAdmin   UserRole = "admin"   // Полный доступ
)

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"` // Внешний идентификатор, аутентификация вне системы
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IsElevated сообщает, есть ли у роли административные права.
func (r UserRole) IsElevated() bool {
	return r == UserRoleManager || r == UserRoleAdmin
}
