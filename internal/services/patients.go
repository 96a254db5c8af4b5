package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/storage"
	"github.com/harentsoaR/clinic-api/internal/store"
)

type PatientRepository interface {
	List(ctx context.Context) ([]models.Patient, error)
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	Create(ctx context.Context, p *models.Patient) error
	Update(ctx context.Context, id string, ch models.PatientChanges) (*models.Patient, error)
	Delete(ctx context.Context, id string) (*models.Patient, error)
	PushAttachment(ctx context.Context, id string, att models.Attachment) (*models.Patient, error)
	PullAttachment(ctx context.Context, id, attachmentID string) (*models.Attachment, *models.Patient, error)
}

// FileStore holds the bytes behind attachments.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
}

// PatientInput carries create and update payloads. On update nil fields are
// left unchanged.
type PatientInput struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	DateOfBirth *string `json:"dateOfBirth"`
	Address     *string `json:"address"`
	Notes       *string `json:"notes"`
}

// Upload describes an incoming attachment.
type Upload struct {
	OriginalName string
	MimeType     string
	Content      io.Reader
}

type Patients struct {
	repo  PatientRepository
	files FileStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewPatients(repo PatientRepository, files FileStore, log zerolog.Logger) *Patients {
	return &Patients{repo: repo, files: files, log: log, now: time.Now}
}

func (s *Patients) List(ctx context.Context) ([]models.Patient, error) {
	return s.repo.List(ctx)
}

func (s *Patients) Get(ctx context.Context, id string) (*models.Patient, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Patients) Create(ctx context.Context, in PatientInput) (*models.Patient, error) {
	ch, err := s.changes(in, true)
	if err != nil {
		return nil, err
	}
	p := &models.Patient{}
	ch.Apply(p)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info().Str("patient_id", p.ID.Hex()).Msg("patient created")
	return p, nil
}

func (s *Patients) Update(ctx context.Context, id string, in PatientInput) (*models.Patient, error) {
	ch, err := s.changes(in, false)
	if err != nil {
		return nil, err
	}
	if ch.Empty() {
		return s.repo.FindByID(ctx, id)
	}
	p, err := s.repo.Update(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("patient_id", id).Msg("patient updated")
	return p, nil
}

// Delete removes the patient and its attachment files. Appointments keep
// their copy of the patient's name.
func (s *Patients) Delete(ctx context.Context, id string) error {
	p, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	for _, a := range p.Attachments {
		s.removeFile(ctx, a.Filename)
	}
	s.log.Info().Str("patient_id", id).Int("attachments", len(p.Attachments)).Msg("patient deleted")
	return nil
}

func (s *Patients) AddAttachment(ctx context.Context, id string, up Upload) ([]models.Attachment, error) {
	original := filepath.Base(strings.TrimSpace(up.OriginalName))
	if up.Content == nil || original == "" || original == "." || original == string(filepath.Separator) {
		return nil, apperr.Validation("file is required")
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}

	filename := uuid.NewString() + strings.ToLower(filepath.Ext(original))
	size, err := s.files.Save(ctx, filename, up.Content)
	if err != nil {
		return nil, apperr.Wrap(err, "store attachment")
	}

	mime := up.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}
	att := models.Attachment{
		ID:           primitive.NewObjectID(),
		Filename:     filename,
		OriginalName: original,
		MimeType:     mime,
		Size:         size,
		UploadedAt:   s.now().UTC(),
	}
	p, err := s.repo.PushAttachment(ctx, id, att)
	if err != nil {
		s.removeFile(ctx, filename)
		return nil, err
	}
	s.log.Info().Str("patient_id", id).Str("attachment_id", att.ID.Hex()).Int64("size", size).Msg("attachment added")
	return p.Attachments, nil
}

// OpenAttachment resolves the attachment on the patient and opens its bytes.
// The caller closes the reader.
func (s *Patients) OpenAttachment(ctx context.Context, id, attachmentID string) (*models.Attachment, io.ReadCloser, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	var att *models.Attachment
	for i := range p.Attachments {
		if p.Attachments[i].ID.Hex() == strings.ToLower(attachmentID) {
			att = &p.Attachments[i]
			break
		}
	}
	if att == nil {
		return nil, nil, store.ErrAttachmentNotFound
	}

	rc, err := s.files.Open(ctx, att.Filename)
	if errors.Is(err, storage.ErrFileNotFound) {
		s.log.Warn().Str("patient_id", id).Str("attachment_id", attachmentID).Msg("attachment file missing on disk")
		return nil, nil, store.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, nil, apperr.Wrap(err, "open attachment")
	}
	return att, rc, nil
}

func (s *Patients) RemoveAttachment(ctx context.Context, id, attachmentID string) ([]models.Attachment, error) {
	removed, p, err := s.repo.PullAttachment(ctx, id, attachmentID)
	if err != nil {
		return nil, err
	}
	s.removeFile(ctx, removed.Filename)
	s.log.Info().Str("patient_id", id).Str("attachment_id", attachmentID).Msg("attachment removed")
	return p.Attachments, nil
}

func (s *Patients) removeFile(ctx context.Context, name string) {
	if err := s.files.Remove(ctx, name); err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("could not remove attachment file")
	}
}

// changes validates in. With required set, every mandatory field must be
// present; otherwise only the supplied ones are checked.
func (s *Patients) changes(in PatientInput, required bool) (models.PatientChanges, error) {
	var ch models.PatientChanges
	var errs fieldErrors

	if v := trimmed(in.Name); v != nil || required {
		if v == nil || *v == "" {
			errs.add("name is required")
		} else {
			ch.Name = v
		}
	}
	if v := trimmed(in.Email); v != nil || required {
		if v == nil || !validEmail(strings.ToLower(*v)) {
			errs.add("email must be a valid email address")
		} else {
			email := strings.ToLower(*v)
			ch.Email = &email
		}
	}
	if v := trimmed(in.Phone); v != nil || required {
		if v == nil || !phonePattern.MatchString(*v) {
			errs.add("phone must match ddd-ddd-dddd")
		} else {
			ch.Phone = v
		}
	}
	if v := trimmed(in.DateOfBirth); v != nil || required {
		var dob time.Time
		ok := false
		if v != nil {
			dob, _, ok = parseDate(*v)
		}
		switch {
		case !ok:
			errs.add("dateOfBirth must be a date (YYYY-MM-DD)")
		case !dob.Before(s.now()):
			errs.add("dateOfBirth must be in the past")
		default:
			ch.DateOfBirth = &dob
		}
	}
	if v := trimmed(in.Address); v != nil || required {
		if v == nil || *v == "" {
			errs.add("address is required")
		} else {
			ch.Address = v
		}
	}
	if in.Notes != nil {
		ch.Notes = trimmed(in.Notes)
	}

	if len(errs) > 0 {
		return models.PatientChanges{}, apperr.Validation(errs...)
	}
	return ch, nil
}
