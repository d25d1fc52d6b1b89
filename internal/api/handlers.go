package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"appointment-service/internal/logging"
	"appointment-service/internal/models"
)

const defaultNotificationLimit = 100

type Handler struct {
	deps   Deps
	logger *logging.Logger
}

func NewHandler(deps Deps, logger *logging.Logger) *Handler {
	return &Handler{deps: deps, logger: logger}
}

func (h *Handler) ListAppointments(c *gin.Context) {
	owner := ownerOf(c)
	appts, err := h.deps.Appointments.List(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, "Failed to list appointments", err)
		return
	}
	h.logger.Debugf("Retrieved %d appointments for %s", len(appts), owner)
	c.JSON(http.StatusOK, appts)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var in models.AppointmentCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.Errorf("Invalid request body for appointment: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	appt, err := h.deps.Appointments.Create(c.Request.Context(), ownerOf(c), in)
	if err != nil {
		h.fail(c, "Failed to create appointment", err)
		return
	}
	h.logger.Infof("Created appointment: %s", appt.ID)
	c.JSON(http.StatusCreated, appt)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id := c.Param("id")
	var patch models.AppointmentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.logger.Errorf("Invalid request body for appointment %s: %v", id, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	appt, err := h.deps.Appointments.Update(c.Request.Context(), ownerOf(c), id, patch)
	if err != nil {
		h.fail(c, "Failed to update appointment", err)
		return
	}
	h.logger.Infof("Updated appointment: %s", id)
	c.JSON(http.StatusOK, appt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id := c.Param("id")
	if err := h.deps.Appointments.Delete(c.Request.Context(), ownerOf(c), id); err != nil {
		h.fail(c, "Failed to delete appointment", err)
		return
	}
	h.logger.Infof("Deleted appointment: %s", id)
	c.Status(http.StatusNoContent)
}

// GetCalendar returns the last published reconciliation, running one first
// when none exists yet or ?refresh=true is given.
func (h *Handler) GetCalendar(c *gin.Context) {
	owner := ownerOf(c)
	if c.Query("refresh") != "true" {
		if res, ok := h.deps.Calendar.Latest(owner); ok {
			c.JSON(http.StatusOK, res)
			return
		}
	}
	res, err := h.deps.Calendar.Refresh(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, "Failed to refresh calendar", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetReminderSettings(c *gin.Context) {
	rules, err := h.deps.Settings.Rules(c.Request.Context(), ownerOf(c))
	if err != nil {
		h.fail(c, "Failed to load reminder settings", err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *Handler) PutReminderSettings(c *gin.Context) {
	var rules []models.ReminderRule
	if err := c.ShouldBindJSON(&rules); err != nil {
		h.logger.Errorf("Invalid request body for reminder settings: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	owner := ownerOf(c)
	saved, err := h.deps.Settings.SaveRules(c.Request.Context(), owner, rules)
	if err != nil {
		h.fail(c, "Failed to save reminder settings", err)
		return
	}
	h.logger.Infof("Saved %d reminder rules for %s", len(saved), owner)
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) ListScheduledReminders(c *gin.Context) {
	pending := c.Query("pending") == "true"
	reminders, err := h.deps.Records.ListScheduledReminders(c.Request.Context(), ownerOf(c), pending)
	if err != nil {
		h.fail(c, "Failed to list scheduled reminders", err)
		return
	}
	c.JSON(http.StatusOK, reminders)
}

func (h *Handler) ListEmployees(c *gin.Context) {
	staff, err := h.deps.Records.ListEmployees(c.Request.Context(), ownerOf(c))
	if err != nil {
		h.fail(c, "Failed to list employees", err)
		return
	}
	c.JSON(http.StatusOK, staff)
}

func (h *Handler) CreateEmployee(c *gin.Context) {
	var in models.EmployeeCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.Errorf("Invalid request body for employee: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	emp, err := h.deps.Records.CreateEmployee(c.Request.Context(), ownerOf(c), in)
	if err != nil {
		h.fail(c, "Failed to create employee", err)
		return
	}
	h.logger.Infof("Created employee: %s", emp.ID)
	c.JSON(http.StatusCreated, emp)
}

func (h *Handler) SetEmployeeActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	id := c.Param("id")
	if err := h.deps.Records.SetEmployeeActive(c.Request.Context(), ownerOf(c), id, *req.Active); err != nil {
		h.fail(c, "Failed to update employee", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "active": *req.Active})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	limit := defaultNotificationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.fail(c, "Invalid limit", fmt.Errorf("limit %q: %w", raw, models.ErrValidation))
			return
		}
		limit = n
	}

	owner := ownerOf(c)
	notifications, err := h.deps.Records.ListNotifications(c.Request.Context(), owner, limit)
	if err != nil {
		h.fail(c, "Failed to get notifications", err)
		return
	}
	h.logger.Debugf("Retrieved %d notifications for %s", len(notifications), owner)
	c.JSON(http.StatusOK, notifications)
}
