package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-api/internal/middleware"
	"github.com/harentsoaR/clinic-api/internal/services"
)

// GetAppointments lists appointments sorted by date then time.
// Optional filters: /api/appointments?status=Scheduled&patientId=...&from=2024-07-01&to=2024-07-31
func (h *Handler) GetAppointments(c *gin.Context) {
	q := services.ListQuery{
		Status:    c.Query("status"),
		PatientID: c.Query("patientId"),
		From:      c.Query("from"),
		To:        c.Query("to"),
	}
	list, err := h.appointments.List(c.Request.Context(), middleware.CurrentUser(c), q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	a, err := h.appointments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req services.AppointmentInput
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.appointments.Create(c.Request.Context(), req, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	h.metrics.Appointment("created")
	c.JSON(http.StatusCreated, a)
}

// UpdateAppointment applies a partial update. Only the creator may change an
// appointment unless their role is in the bypass set.
func (h *Handler) UpdateAppointment(c *gin.Context) {
	var req services.AppointmentInput
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.appointments.Update(c.Request.Context(), c.Param("id"), req, middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	h.metrics.Appointment("updated")
	c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	a, err := h.appointments.Cancel(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	h.metrics.Appointment("cancelled")
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	if err := h.appointments.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentUser(c)); err != nil {
		fail(c, err)
		return
	}
	h.metrics.Appointment("deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Appointment removed"})
}
