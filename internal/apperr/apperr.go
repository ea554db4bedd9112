// Package apperr типизированные ошибки доменного слоя. Каждая ошибка несёт
// машинный вид (Kind) для HTTP-слоя и сообщение для пользователя.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation        Kind = "validation_error"       // Отсутствуют или некорректны поля запроса
	KindInvalidSlot       Kind = "invalid_time_slot"      // Время не на сетке слотов
	KindPastSlot          Kind = "past_time_slot"         // Слот уже в прошлом
	KindMachineNotFound   Kind = "machine_not_found"      // Машина не существует
	KindMachineUnavail    Kind = "machine_unavailable"    // Статус машины запрещает бронирование
	KindMachineRestricted Kind = "machine_restricted"     // Ограничение (блокировка, год, email) отклонило пользователя
	KindSlotOccupied      Kind = "time_slot_occupied"     // Активное бронирование уже существует
	KindWindowExceeded    Kind = "usage_limit_exceeded"   // Превышен лимит скользящего окна
	KindConfiguration     Kind = "configuration_error"    // Некорректное или неподдерживаемое правило ограничения
	KindPermissionDenied  Kind = "permission_denied"      // Недостаточно прав
	KindInvalidTransition Kind = "invalid_status"         // Недопустимый переход статуса бронирования
	KindNotFound          Kind = "not_found"              // Объект не найден
	KindStorage           Kind = "database_error"         // Ошибка хранилища, транзакция откачена
)

type Error struct {
	Kind    Kind
	Message string // Текст для пользователя
	Err     error  // Исходная причина, может быть nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New создаёт ошибку указанного вида.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает причину в ошибку указанного вида.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf возвращает вид ошибки или KindStorage для нетипизированных ошибок.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// IsKind проверяет вид ошибки в цепочке.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// HTTPStatus сопоставляет вид ошибки HTTP-коду ответа.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindInvalidSlot, KindPastSlot, KindMachineUnavail, KindInvalidTransition:
		return http.StatusBadRequest
	case KindMachineRestricted, KindWindowExceeded, KindPermissionDenied:
		return http.StatusForbidden
	case KindMachineNotFound, KindNotFound:
		return http.StatusNotFound
	case KindSlotOccupied:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
