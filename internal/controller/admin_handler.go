package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/service"
)

// AdminBookingHandler админские списки и принудительное удаление броней.
type AdminBookingHandler struct {
	bookings *service.BookingService
}

func NewAdminBookingHandler(bookings *service.BookingService) *AdminBookingHandler {
	return &AdminBookingHandler{bookings: bookings}
}

// GET /admin/bookings
func (h *AdminBookingHandler) List(c *gin.Context) {
	status := model.BookingStatus(c.Query("status"))
	limitN, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.bookings.AdminList(c.Request.Context(), status, limitN, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// GET /admin/bookings/active
func (h *AdminBookingHandler) Active(c *gin.Context) {
	bookings, err := h.bookings.AdminActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// GET /admin/bookings/monthly
func (h *AdminBookingHandler) MonthlyStats(c *gin.Context) {
	months, err := strconv.Atoi(c.DefaultQuery("months", "6"))
	if err != nil || months < 1 {
		respondError(c, apperr.New(apperr.KindValidation, "months must be a positive integer"))
		return
	}

	stats, err := h.bookings.AdminMonthlyStats(c.Request.Context(), months)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// DELETE /admin/bookings/:id
func (h *AdminBookingHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid booking id"))
		return
	}

	if err := h.bookings.AdminDelete(c.Request.Context(), id, c.GetString("admin_email")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
