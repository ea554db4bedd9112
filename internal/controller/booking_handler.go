package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/service"
	"github.com/makerlab/booking-api/internal/timeslot"
)

type BookingHandler struct {
	bookings     *service.BookingService
	restrictions *service.RestrictionChecker
	calendar     *timeslot.Calendar
}

func NewBookingHandler(bookings *service.BookingService, restrictions *service.RestrictionChecker, calendar *timeslot.Calendar) *BookingHandler {
	return &BookingHandler{bookings: bookings, restrictions: restrictions, calendar: calendar}
}

// POST /bookings
func (h *BookingHandler) Create(c *gin.Context) {
	var in struct {
		UserEmail string `json:"user_email" binding:"required"`
		MachineID int64  `json:"machine_id" binding:"required"`
		TimeSlot  string `json:"time_slot" binding:"required"` // YYYY/MM/DD/HH
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "user_email, machine_id and time_slot are required"))
		return
	}

	slot, err := h.calendar.ParseSlot(in.TimeSlot)
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindInvalidSlot, err,
			"time_slot must be YYYY/MM/DD/HH or YYYY-MM-DD HH:MM:SS"))
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), in.UserEmail, in.MachineID, slot)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"booking_id": booking.ID,
		"details": gin.H{
			"machine_name": booking.MachineName,
			"time_slot":    booking.TimeSlot,
			"end_time":     booking.TimeSlot.Add(timeslot.SlotDuration),
		},
	})
}

// DELETE /bookings/:id
func (h *BookingHandler) Cancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid booking id"))
		return
	}

	var in struct {
		UserEmail string `json:"user_email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "user_email is required to verify ownership"))
		return
	}

	if err := h.bookings.Cancel(c.Request.Context(), id, in.UserEmail); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "booking_id": id})
}

// GET /machines/:id/bookings
func (h *BookingHandler) MachineBookings(c *gin.Context) {
	machineID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid machine id"))
		return
	}

	from, to, err := h.parseDateRange(c)
	if err != nil {
		respondError(c, err)
		return
	}

	bookings, err := h.bookings.MachineBookings(c.Request.Context(), machineID, from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	// Отдельный список занятых слотов для сетки календаря
	slots := make([]time.Time, 0, len(bookings))
	for _, booking := range bookings {
		slots = append(slots, booking.TimeSlot)
	}

	c.JSON(http.StatusOK, gin.H{
		"booked_slots":    slots,
		"booking_details": bookings,
	})
}

// GET /bookings/calendar-view
func (h *BookingHandler) CalendarView(c *gin.Context) {
	from, to, err := h.parseDateRange(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if from == nil || to == nil {
		respondError(c, apperr.New(apperr.KindValidation, "start_date and end_date are required"))
		return
	}

	bookings, err := h.bookings.CalendarView(c.Request.Context(), *from, *to)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// GET /users/:email/bookings
func (h *BookingHandler) UserBookings(c *gin.Context) {
	bookings, err := h.bookings.UserBookings(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// GET /users/:email/bookings/monthly
func (h *BookingHandler) UserMonthlyBookings(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "year query parameter is required"))
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		respondError(c, apperr.New(apperr.KindValidation, "month query parameter must be 1..12"))
		return
	}

	bookings, err := h.bookings.UserMonthlyBookings(c.Request.Context(), c.Param("email"), year, time.Month(month))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// GET /machines/:id/usage-status
func (h *BookingHandler) UsageStatus(c *gin.Context) {
	machineID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid machine id"))
		return
	}
	userEmail := c.Query("user_email")
	if userEmail == "" {
		respondError(c, apperr.New(apperr.KindValidation, "user_email query parameter is required"))
		return
	}

	status, err := h.bookings.RollingWindowStatus(c.Request.Context(), userEmail, machineID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// GET /machines/:id/check-access
func (h *BookingHandler) CheckAccess(c *gin.Context) {
	machineID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid machine id"))
		return
	}
	userEmail := c.Query("user_email")
	if userEmail == "" {
		respondError(c, apperr.New(apperr.KindValidation, "user_email query parameter is required"))
		return
	}

	decision := h.restrictions.CheckAccess(c.Request.Context(), userEmail, machineID)
	c.JSON(http.StatusOK, decision)
}

// parseDateRange читает опциональные start_date и end_date (YYYY-MM-DD)
// в поясе календаря. Конец диапазона включает весь день.
func (h *BookingHandler) parseDateRange(c *gin.Context) (*time.Time, *time.Time, error) {
	startStr := c.Query("start_date")
	endStr := c.Query("end_date")
	if startStr == "" || endStr == "" {
		return nil, nil, nil
	}

	start, err := time.ParseInLocation("2006-01-02", startStr, h.calendar.Location())
	if err != nil {
		return nil, nil, apperr.New(apperr.KindValidation, "start_date must be YYYY-MM-DD")
	}
	end, err := time.ParseInLocation("2006-01-02", endStr, h.calendar.Location())
	if err != nil {
		return nil, nil, apperr.New(apperr.KindValidation, "end_date must be YYYY-MM-DD")
	}
	end = end.Add(24*time.Hour - time.Second)

	return &start, &end, nil
}
