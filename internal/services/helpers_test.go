package services

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/storage"
	"github.com/harentsoaR/clinic-api/internal/store/memory"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

type memFiles struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemFiles() *memFiles { return &memFiles{files: map[string][]byte{}} }

func (m *memFiles) Save(_ context.Context, name string, r io.Reader) (int64, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = b
	return int64(len(b)), nil
}

func (m *memFiles) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[name]
	if !ok {
		return nil, storage.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memFiles) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return storage.ErrFileNotFound
	}
	delete(m.files, name)
	return nil
}

func (m *memFiles) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok
}

func (m *memFiles) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []models.Appointment
}

func (n *recordingNotifier) NotifyAppointment(_ *models.Patient, apt *models.Appointment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, *apt)
}

func (n *recordingNotifier) last() (models.Appointment, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		return models.Appointment{}, 0
	}
	return n.calls[len(n.calls)-1], len(n.calls)
}

type fixture struct {
	users        *memory.Users
	patientRepo  *memory.Patients
	files        *memFiles
	notifier     *recordingNotifier
	credentials  *Credentials
	patients     *Patients
	appointments *Appointments
}

func newFixture(t *testing.T, policy AppointmentPolicy) *fixture {
	t.Helper()
	log := zerolog.Nop()
	f := &fixture{
		users:       memory.NewUsers(),
		patientRepo: memory.NewPatients(),
		files:       newMemFiles(),
		notifier:    &recordingNotifier{},
	}
	f.credentials = NewCredentials(f.users, utils.NewHasher(bcrypt.MinCost), log)
	f.patients = NewPatients(f.patientRepo, f.files, log)
	f.appointments = NewAppointments(memory.NewAppointments(), f.patientRepo, policy, f.notifier, log)
	return f
}

func (f *fixture) user(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u, err := f.credentials.Register(context.Background(), RegisterInput{
		Username: name, Email: name + "@x.com", Password: "pw", Role: role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func (f *fixture) patient(t *testing.T, name, email string) *models.Patient {
	t.Helper()
	p, err := f.patients.Create(context.Background(), validPatient(name, email))
	if err != nil {
		t.Fatalf("create patient %s: %v", name, err)
	}
	return p
}

func validPatient(name, email string) PatientInput {
	return PatientInput{
		Name:        ptr(name),
		Email:       ptr(email),
		Phone:       ptr("123-456-7890"),
		DateOfBirth: ptr("1990-05-01"),
		Address:     ptr("1 Main St"),
	}
}

func ptr[T any](v T) *T { return &v }
