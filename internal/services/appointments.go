package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/store"
)

var (
	ErrPatientForAppointment = apperr.NotFound("Patient not found for given patientId")
	ErrNotOwnerUpdate        = apperr.Forbidden("Not authorized to update this appointment")
	ErrNotOwnerDelete        = apperr.Forbidden("Not authorized to delete this appointment")
)

type AppointmentRepository interface {
	List(ctx context.Context, f models.AppointmentFilter) ([]models.Appointment, error)
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	Create(ctx context.Context, a *models.Appointment) error
	Update(ctx context.Context, id string, ch models.AppointmentChanges) (*models.Appointment, error)
	Delete(ctx context.Context, id string) error
}

// PatientLookup resolves the patient an appointment points at.
type PatientLookup interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
}

const (
	ListScopeAll   = "all"
	ListScopeOwner = "owner"
)

// AppointmentPolicy holds the deployment-specific access rules.
type AppointmentPolicy struct {
	// ListScope is ListScopeAll or ListScopeOwner.
	ListScope string
	// OwnershipBypass lists roles that may change appointments they did not
	// create. Empty means owners only.
	OwnershipBypass []models.Role
}

type AppointmentInput struct {
	PatientID *string `json:"patientId"`
	Date      *string `json:"date"`
	Time      *string `json:"time"`
	Reason    *string `json:"reason"`
	Status    *string `json:"status"`
}

// ListQuery holds the optional query-string filters of a listing.
type ListQuery struct {
	Status    string
	PatientID string
	From      string
	To        string
}

type Appointments struct {
	repo     AppointmentRepository
	patients PatientLookup
	policy   AppointmentPolicy
	notifier Notifier
	log      zerolog.Logger
}

func NewAppointments(repo AppointmentRepository, patients PatientLookup, policy AppointmentPolicy, notifier Notifier, log zerolog.Logger) *Appointments {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if policy.ListScope == "" {
		policy.ListScope = ListScopeAll
	}
	return &Appointments{repo: repo, patients: patients, policy: policy, notifier: notifier, log: log}
}

func (s *Appointments) List(ctx context.Context, actor *models.User, q ListQuery) ([]models.Appointment, error) {
	var f models.AppointmentFilter
	var errs fieldErrors

	if q.Status != "" {
		f.Status = models.AppointmentStatus(q.Status)
		if !f.Status.IsValid() {
			errs.add("status must be one of Scheduled, Completed, Cancelled")
		}
	}
	f.PatientID = strings.TrimSpace(q.PatientID)
	if q.From != "" {
		from, _, ok := parseDate(q.From)
		if !ok {
			errs.add("from must be a date (YYYY-MM-DD)")
		}
		f.From = &from
	}
	if q.To != "" {
		to, dateOnly, ok := parseDate(q.To)
		if !ok {
			errs.add("to must be a date (YYYY-MM-DD)")
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &to
	}
	if len(errs) > 0 {
		return nil, apperr.Validation(errs...)
	}

	if s.policy.ListScope == ListScopeOwner {
		f.OwnerID = actor.ID.Hex()
	}
	return s.repo.List(ctx, f)
}

func (s *Appointments) Get(ctx context.Context, id string) (*models.Appointment, error) {
	return s.repo.FindByID(ctx, id)
}

// Create books an appointment for an existing patient, copying the patient's
// current name onto it.
func (s *Appointments) Create(ctx context.Context, in AppointmentInput, actor *models.User) (*models.Appointment, error) {
	patientID, date, clock := trimmed(in.PatientID), trimmed(in.Date), trimmed(in.Time)
	if patientID == nil || *patientID == "" || date == nil || *date == "" || clock == nil || *clock == "" {
		return nil, apperr.Validation("patientId, date and time are required")
	}

	ch, err := s.fieldChanges(AppointmentInput{Date: date, Time: clock, Reason: in.Reason, Status: in.Status})
	if err != nil {
		return nil, err
	}
	patient, err := s.resolvePatient(ctx, *patientID)
	if err != nil {
		return nil, err
	}

	apt := &models.Appointment{
		PatientID:   patient.ID,
		PatientName: patient.Name,
		Status:      models.StatusScheduled,
		UserID:      actor.ID,
	}
	ch.Apply(apt)
	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, err
	}

	s.log.Info().Str("appointment_id", apt.ID.Hex()).Str("user_id", actor.ID.Hex()).Msg("appointment created")
	s.notifier.NotifyAppointment(patient, apt)
	return apt, nil
}

// Update applies the supplied fields. Reassigning the patient refreshes
// patientName in the same write; no other field touches it.
func (s *Appointments) Update(ctx context.Context, id string, in AppointmentInput, actor *models.User) (*models.Appointment, error) {
	existing, err := s.owned(ctx, id, actor, ErrNotOwnerUpdate)
	if err != nil {
		return nil, err
	}

	ch, err := s.fieldChanges(in)
	if err != nil {
		return nil, err
	}
	if pid := trimmed(in.PatientID); pid != nil && *pid != "" && *pid != existing.PatientID.Hex() {
		patient, err := s.resolvePatient(ctx, *pid)
		if err != nil {
			return nil, err
		}
		ch.PatientID = &patient.ID
		ch.PatientName = &patient.Name
	}

	if ch.Empty() {
		return existing, nil
	}
	apt, err := s.repo.Update(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("appointment_id", id).Bool("patient_changed", ch.PatientID != nil).Msg("appointment updated")
	return apt, nil
}

// Cancel marks the appointment Cancelled and notifies the patient.
func (s *Appointments) Cancel(ctx context.Context, id string, actor *models.User) (*models.Appointment, error) {
	if _, err := s.owned(ctx, id, actor, ErrNotOwnerUpdate); err != nil {
		return nil, err
	}
	status := models.StatusCancelled
	apt, err := s.repo.Update(ctx, id, models.AppointmentChanges{Status: &status})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("appointment_id", id).Msg("appointment cancelled")

	patient, err := s.patients.FindByID(ctx, apt.PatientID.Hex())
	if err == nil {
		s.notifier.NotifyAppointment(patient, apt)
	}
	return apt, nil
}

func (s *Appointments) Delete(ctx context.Context, id string, actor *models.User) error {
	if _, err := s.owned(ctx, id, actor, ErrNotOwnerDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("appointment_id", id).Str("user_id", actor.ID.Hex()).Msg("appointment deleted")
	return nil
}

// owned loads the appointment and returns denied unless actor may change it.
func (s *Appointments) owned(ctx context.Context, id string, actor *models.User, denied error) (*models.Appointment, error) {
	apt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.UserID != actor.ID && !slices.Contains(s.policy.OwnershipBypass, actor.Role) {
		s.log.Warn().Str("appointment_id", id).Str("user_id", actor.ID.Hex()).Msg("ownership check failed")
		return nil, denied
	}
	return apt, nil
}

func (s *Appointments) resolvePatient(ctx context.Context, id string) (*models.Patient, error) {
	p, err := s.patients.FindByID(ctx, id)
	if errors.Is(err, store.ErrPatientNotFound) {
		return nil, ErrPatientForAppointment
	}
	return p, err
}

// fieldChanges validates everything but the patient reference.
func (s *Appointments) fieldChanges(in AppointmentInput) (models.AppointmentChanges, error) {
	var ch models.AppointmentChanges
	var errs fieldErrors

	if v := trimmed(in.Date); v != nil {
		d, _, ok := parseDate(*v)
		if ok {
			ch.Date = &d
		} else {
			errs.add("date must be a date (YYYY-MM-DD)")
		}
	}
	if v := trimmed(in.Time); v != nil {
		if *v == "" {
			errs.add("time must not be empty")
		} else {
			ch.Time = v
		}
	}
	if in.Reason != nil {
		ch.Reason = trimmed(in.Reason)
	}
	if in.Status != nil && strings.TrimSpace(*in.Status) != "" {
		st := models.AppointmentStatus(strings.TrimSpace(*in.Status))
		if st.IsValid() {
			ch.Status = &st
		} else {
			errs.add("status must be one of Scheduled, Completed, Cancelled")
		}
	}

	if len(errs) > 0 {
		return models.AppointmentChanges{}, apperr.Validation(errs...)
	}
	return ch, nil
}
