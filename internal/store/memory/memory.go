// Package memory is an in-process implementation of the stores, used for
// local runs with STORE_DRIVER=memory and in tests. It enforces the same
// unique constraints as the mongo indexes and returns the same sentinels.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/store"
)

type Users struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]models.User
	now   func() time.Time
}

func NewUsers() *Users {
	return &Users{users: make(map[primitive.ObjectID]models.User), now: time.Now}
}

func (s *Users) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return store.ErrUserExists
		}
	}
	now := s.now().UTC()
	u.ID = primitive.NewObjectID()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	return nil
}

func (s *Users) FindByID(_ context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrUserNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[oid]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

func (s *Users) FindByIdentifier(_ context.Context, identifier string) (*models.User, error) {
	email := strings.ToLower(identifier)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == identifier || u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *Users) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	email = strings.ToLower(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *Users) Update(_ context.Context, id string, ch models.UserChanges) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrUserNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[oid]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	for otherID, other := range s.users {
		if otherID == oid {
			continue
		}
		if (ch.Username != nil && other.Username == *ch.Username) || (ch.Email != nil && other.Email == *ch.Email) {
			return nil, store.ErrUserExists
		}
	}
	ch.Apply(&u)
	u.UpdatedAt = s.now().UTC()
	s.users[oid] = u
	return &u, nil
}

// Delete removes a user outright. There is no HTTP route for it; tests use it
// to check that tokens of removed users stop working.
func (s *Users) Delete(id primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

type Patients struct {
	mu       sync.RWMutex
	patients map[primitive.ObjectID]models.Patient
	now      func() time.Time
}

func NewPatients() *Patients {
	return &Patients{patients: make(map[primitive.ObjectID]models.Patient), now: time.Now}
}

func (s *Patients) List(_ context.Context) ([]models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, clonePatient(p))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Patients) FindByID(_ context.Context, id string) (*models.Patient, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrPatientNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[oid]
	if !ok {
		return nil, store.ErrPatientNotFound
	}
	cp := clonePatient(p)
	return &cp, nil
}

func (s *Patients) Create(_ context.Context, p *models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(p.Email, primitive.NilObjectID) {
		return store.ErrPatientEmailTaken
	}
	now := s.now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Attachments == nil {
		p.Attachments = []models.Attachment{}
	}
	s.patients[p.ID] = clonePatient(*p)
	return nil
}

func (s *Patients) Update(_ context.Context, id string, ch models.PatientChanges) (*models.Patient, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrPatientNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[oid]
	if !ok {
		return nil, store.ErrPatientNotFound
	}
	if ch.Email != nil && s.emailTaken(*ch.Email, oid) {
		return nil, store.ErrPatientEmailTaken
	}
	ch.Apply(&p)
	p.UpdatedAt = s.now().UTC()
	s.patients[oid] = p
	cp := clonePatient(p)
	return &cp, nil
}

func (s *Patients) Delete(_ context.Context, id string) (*models.Patient, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrPatientNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[oid]
	if !ok {
		return nil, store.ErrPatientNotFound
	}
	delete(s.patients, oid)
	return &p, nil
}

func (s *Patients) PushAttachment(_ context.Context, id string, att models.Attachment) (*models.Patient, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrPatientNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[oid]
	if !ok {
		return nil, store.ErrPatientNotFound
	}
	p.Attachments = append(slices.Clone(p.Attachments), att)
	p.UpdatedAt = s.now().UTC()
	s.patients[oid] = p
	cp := clonePatient(p)
	return &cp, nil
}

func (s *Patients) PullAttachment(_ context.Context, id, attachmentID string) (*models.Attachment, *models.Patient, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil, store.ErrPatientNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[oid]
	if !ok {
		return nil, nil, store.ErrPatientNotFound
	}
	idx := slices.IndexFunc(p.Attachments, func(a models.Attachment) bool {
		return a.ID.Hex() == strings.ToLower(attachmentID)
	})
	if idx < 0 {
		return nil, nil, store.ErrAttachmentNotFound
	}
	removed := p.Attachments[idx]
	p.Attachments = slices.Delete(slices.Clone(p.Attachments), idx, idx+1)
	p.UpdatedAt = s.now().UTC()
	s.patients[oid] = p
	cp := clonePatient(p)
	return &removed, &cp, nil
}

func (s *Patients) emailTaken(email string, except primitive.ObjectID) bool {
	for id, p := range s.patients {
		if id != except && p.Email == email {
			return true
		}
	}
	return false
}

func clonePatient(p models.Patient) models.Patient {
	p.Attachments = slices.Clone(p.Attachments)
	if p.Attachments == nil {
		p.Attachments = []models.Attachment{}
	}
	return p
}

type Appointments struct {
	mu           sync.RWMutex
	appointments map[primitive.ObjectID]models.Appointment
	now          func() time.Time
}

func NewAppointments() *Appointments {
	return &Appointments{appointments: make(map[primitive.ObjectID]models.Appointment), now: time.Now}
}

func (s *Appointments) List(_ context.Context, f models.AppointmentFilter) ([]models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Appointment, 0)
	for _, a := range s.appointments {
		if f.Matches(&a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (s *Appointments) FindByID(_ context.Context, id string) (*models.Appointment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrAppointmentNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[oid]
	if !ok {
		return nil, store.ErrAppointmentNotFound
	}
	return &a, nil
}

func (s *Appointments) Create(_ context.Context, a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	a.ID = primitive.NewObjectID()
	a.CreatedAt, a.UpdatedAt = now, now
	s.appointments[a.ID] = *a
	return nil
}

func (s *Appointments) Update(_ context.Context, id string, ch models.AppointmentChanges) (*models.Appointment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrAppointmentNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[oid]
	if !ok {
		return nil, store.ErrAppointmentNotFound
	}
	ch.Apply(&a)
	a.UpdatedAt = s.now().UTC()
	s.appointments[oid] = a
	return &a, nil
}

func (s *Appointments) Delete(_ context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return store.ErrAppointmentNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[oid]; !ok {
		return store.ErrAppointmentNotFound
	}
	delete(s.appointments, oid)
	return nil
}
