package controller

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/limit"
)

// errorBody единый конверт ошибки API: машинный error_type для фронтенда
// плюс сообщение для пользователя.
type errorBody struct {
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
}

// respondError преобразует доменную ошибку в HTTP-ответ. Нетипизированные
// ошибки отдаются как database_error без внутренних подробностей.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	body := errorBody{
		Success:   false,
		ErrorType: string(kind),
		Message:   userMessage(err, kind),
	}

	// Нарушение скользящего окна несёт границы окна для точного сообщения
	var violation *limit.Violation
	if errors.As(err, &violation) {
		body.Details = gin.H{
			"window_start":       violation.WindowStart,
			"window_end":         violation.WindowEnd,
			"bookings_in_window": violation.Count,
			"max_bookings":       violation.Limit,
		}
	}

	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), body)
}

func userMessage(err error, kind apperr.Kind) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	if kind == apperr.KindStorage {
		return "the system cannot process the request right now, try again later"
	}
	return err.Error()
}
