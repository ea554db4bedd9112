package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/service"
)

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// POST /users
func (h *UserHandler) GetOrCreate(c *gin.Context) {
	var in struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "name and email are required"))
		return
	}

	user, created, err := h.users.GetOrCreate(c.Request.Context(), in.Name, in.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"role": user.Role})
}

// PUT /users/role (админка)
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var in struct {
		Email string `json:"email" binding:"required"`
		Role  string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "email and role are required"))
		return
	}

	role, err := h.users.UpdateRole(c.Request.Context(), c.GetHeader("X-Admin-Email"), in.Email, model.UserRole(in.Role))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"role": role})
}

// GET /admin/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
}
