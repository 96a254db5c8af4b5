package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/services"
)

type attachmentsResponse struct {
	Attachments []models.Attachment `json:"attachments"`
}

func (h *Handler) GetPatients(c *gin.Context) {
	list, err := h.patients.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.patients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req services.PatientInput
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.patients.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	h.metrics.PatientCreated()
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req services.PatientInput
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.patients.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	if err := h.patients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}

// AddAttachment stores the multipart "file" field against the patient.
func (h *Handler) AddAttachment(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, apperr.Validation(fmt.Sprintf("file must be at most %d bytes", h.maxUploadBytes)))
			return
		}
		fail(c, apperr.Validation("file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, apperr.Wrap(err, "open upload"))
		return
	}
	defer f.Close()

	atts, err := h.patients.AddAttachment(c.Request.Context(), c.Param("id"), services.Upload{
		OriginalName: fh.Filename,
		MimeType:     fh.Header.Get("Content-Type"),
		Content:      f,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.metrics.AttachmentStored(fh.Size)
	c.JSON(http.StatusCreated, attachmentsResponse{Attachments: atts})
}

// DownloadAttachment streams an attachment's bytes under its original name.
func (h *Handler) DownloadAttachment(c *gin.Context) {
	att, rc, err := h.patients.OpenAttachment(c.Request.Context(), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		fail(c, err)
		return
	}
	defer rc.Close()

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": att.OriginalName})
	c.DataFromReader(http.StatusOK, att.Size, att.MimeType, rc, map[string]string{
		"Content-Disposition":    disposition,
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "private, no-store",
	})
}

func (h *Handler) RemoveAttachment(c *gin.Context) {
	atts, err := h.patients.RemoveAttachment(c.Request.Context(), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, attachmentsResponse{Attachments: atts})
}
