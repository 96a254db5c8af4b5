package store

import "github.com/harentsoaR/clinic-api/internal/apperr"

// Sentinels shared by the mongo and in-memory stores. Compare with errors.Is.
var (
	ErrUserNotFound        = apperr.NotFound("User not found")
	ErrUserExists          = apperr.Conflict("User already exists")
	ErrPatientNotFound     = apperr.NotFound("Patient not found")
	ErrPatientEmailTaken   = apperr.Conflict("A patient with this email already exists.")
	ErrAttachmentNotFound  = apperr.NotFound("Attachment not found")
	ErrAppointmentNotFound = apperr.NotFound("Appointment not found")
)
