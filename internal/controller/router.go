package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/makerlab/booking-api/internal/service"
)

// Deps зависимости HTTP-слоя.
type Deps struct {
	Bookings      *service.BookingService
	Machines      *service.MachineService
	Users         *service.UserService
	Notifications *service.NotificationService
	Restrictions  *service.RestrictionChecker
	Logger        *zap.Logger
	RateRPS       float64
	RateBurst     int
}

// NewRouter собирает все маршруты и middleware.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(d.Logger), RateLimit(d.RateRPS, d.RateBurst))

	bookings := NewBookingHandler(d.Bookings, d.Restrictions, d.Bookings.Calendar())
	machines := NewMachineHandler(d.Machines)
	users := NewUserHandler(d.Users)
	notifications := NewNotificationHandler(d.Notifications)
	adminBookings := NewAdminBookingHandler(d.Bookings)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/users", users.GetOrCreate)

	r.GET("/machines", machines.List)
	r.GET("/machines/:id", machines.Get)
	r.GET("/machines/:id/bookings", bookings.MachineBookings)
	r.GET("/machines/:id/restrictions", machines.Restrictions)
	r.GET("/machines/:id/check-access", bookings.CheckAccess)
	r.GET("/machines/:id/usage-status", bookings.UsageStatus)

	r.POST("/bookings", bookings.Create)
	r.DELETE("/bookings/:id", bookings.Cancel)
	r.GET("/bookings/calendar-view", bookings.CalendarView)
	r.GET("/users/:email/bookings", bookings.UserBookings)
	r.GET("/users/:email/bookings/monthly", bookings.UserMonthlyBookings)

	r.GET("/notifications/active", notifications.Active)

	admin := r.Group("/admin", AdminRequired(d.Users))
	{
		admin.POST("/machines", machines.Create)
		admin.PUT("/machines/:id", machines.Update)
		admin.DELETE("/machines/:id", machines.Delete)
		admin.GET("/restrictions", machines.AllRestrictions)
		admin.POST("/machines/:id/restrictions", machines.CreateRestriction)
		admin.DELETE("/machines/:id/restrictions/:restrictionID", machines.DeleteRestriction)

		admin.GET("/bookings", adminBookings.List)
		admin.GET("/bookings/active", adminBookings.Active)
		admin.GET("/bookings/monthly", adminBookings.MonthlyStats)
		admin.DELETE("/bookings/:id", adminBookings.Delete)

		admin.GET("/users", users.List)
		admin.PUT("/users/role", users.UpdateRole)

		admin.GET("/notifications", notifications.List)
		admin.POST("/notifications", notifications.Create)
		admin.PUT("/notifications/:id", notifications.Update)
		admin.DELETE("/notifications/:id", notifications.Delete)
	}

	return r
}
