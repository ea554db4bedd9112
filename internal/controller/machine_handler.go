package controller

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makerlab/booking-api/internal/apperr"
	"github.com/makerlab/booking-api/internal/model"
	"github.com/makerlab/booking-api/internal/service"
)

type MachineHandler struct {
	machines *service.MachineService
}

func NewMachineHandler(machines *service.MachineService) *MachineHandler {
	return &MachineHandler{machines: machines}
}

// GET /machines
func (h *MachineHandler) List(c *gin.Context) {
	machines, err := h.machines.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"machines": machines, "total": len(machines)})
}

// GET /machines/:id
func (h *MachineHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid machine id"))
		return
	}

	machine, err := h.machines.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, machine)
}

// POST /admin/machines
func (h *MachineHandler) Create(c *gin.Context) {
	var in struct {
		Name              string `json:"name" binding:"required"`
		Description       string `json:"description"`
		Location          string `json:"location"`
		Status            string `json:"status"`
		RestrictionStatus string `json:"restriction_status"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "machine name is required"))
		return
	}

	machine := &model.Machine{
		Name:              in.Name,
		Description:       in.Description,
		Location:          in.Location,
		Status:            model.MachineStatus(in.Status),
		RestrictionStatus: model.RestrictionStatus(in.RestrictionStatus),
	}

	if err := h.machines.Create(c.Request.Context(), machine); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, machine)
}

// PUT /admin/machines/:id
func (h *MachineHandler) Update(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid machine id"))
		return
	}

	var in struct {
		Name              string `json:"name" binding:"required"`
		Description       string `json:"description"`
		Location          string `json:"location"`
		Status            string `json:"status" binding:"required"`
		RestrictionStatus string `json:"restriction_status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "name, status and restriction_status are required"))
		return
	}

	machine := &model.Machine{
		ID:                id,
		Name:              in.Name,
		Description:       in.Description,
		Location:          in.Location,
		Status:            model.MachineStatus(in.Status),
		RestrictionStatus: model.RestrictionStatus(in.RestrictionStatus),
	}

	if err := h.machines.Update(c.Request.Context(), machine); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, machine)
}

// DELETE /admin/machines/:id
func (h *MachineHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid machine id"))
		return
	}

	if err := h.machines.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "machine_id": id})
}

// GET /machines/:id/restrictions
func (h *MachineHandler) Restrictions(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid machine id"))
		return
	}

	restrictions, err := h.machines.Restrictions(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"restrictions": restrictions, "total": len(restrictions)})
}

// GET /admin/restrictions
func (h *MachineHandler) AllRestrictions(c *gin.Context) {
	restrictions, err := h.machines.AllRestrictions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"restrictions": restrictions, "total": len(restrictions)})
}

// POST /admin/machines/:id/restrictions
func (h *MachineHandler) CreateRestriction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid machine id"))
		return
	}

	var in struct {
		Type        string          `json:"restriction_type" binding:"required"`
		Rule        json.RawMessage `json:"restriction_rule" binding:"required"`
		StartTime   *time.Time      `json:"start_time"`
		EndTime     *time.Time      `json:"end_time"`
		IsActive    *bool           `json:"is_active"`
		Description string          `json:"description"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "restriction_type and restriction_rule are required"))
		return
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	restriction := &model.MachineRestriction{
		MachineID:   id,
		Type:        model.RestrictionType(in.Type),
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		IsActive:    active,
		Description: in.Description,
	}

	if err := h.machines.CreateRestriction(c.Request.Context(), restriction, in.Rule); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, restriction)
}

// DELETE /admin/machines/:id/restrictions/:restrictionID
func (h *MachineHandler) DeleteRestriction(c *gin.Context) {
	machineID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid machine id"))
		return
	}
	restrictionID, err := strconv.ParseInt(c.Param("restrictionID"), 10, 64)
	if err != nil {
		respondError(c, apperr.New(apperr.KindValidation, "invalid restriction id"))
		return
	}

	if err := h.machines.DeleteRestriction(c.Request.Context(), machineID, restrictionID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
