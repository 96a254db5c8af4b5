package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/store"
)

func tomorrow() string { return time.Now().AddDate(0, 0, 1).Format("2006-01-02") }

func TestAppointments_BookCopiesPatientName(t *testing.T) {
	f := newFixture(t, AppointmentPolicy{})
	ctx := context.Background()
	owner := f.user(t, "alice", models.RoleReceptionist)
	bob := f.patient(t, "Bob", "bob@x.com")

	apt, err := f.appointments.Create(ctx, AppointmentInput{
		PatientID: ptr(bob.ID.Hex()), Date: ptr(tomorrow()), Time: ptr("09:00"),
	}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if apt.PatientName != "Bob" || apt.Status != models.StatusScheduled || apt.UserID != owner.ID || apt.ID.IsZero() {
		t.Errorf("appointment = %+v", apt)
	}
	if last, n := f.notifier.last(); n != 1 || last.ID != apt.ID {
		t.Errorf("notifier calls = %d, last = %+v", n, last)
	}
}

func TestAppointments_CreateErrors(t *testing.T) {
	f := newFixture(t, AppointmentPolicy{})
	ctx := context.Background()
	owner := f.user(t, "alice", models.RoleReceptionist)

	_, err := f.appointments.Create(ctx, AppointmentInput{Date: ptr(tomorrow()), Time: ptr("09:00")}, owner)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("missing patientId err = %v", err)
	}

	_, err = f.appointments.Create(ctx, AppointmentInput{
		PatientID: ptr(primitive.NewObjectID().Hex()), Date: ptr(tomorrow()), Time: ptr("09:00"),
	}, owner)
	if !errors.Is(err, ErrPatientForAppointment) || !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown patient err = %v", err)
	}

	bob := f.patient(t, "Bob", "bob@x.com")
	_, err = f.appointments.Create(ctx, AppointmentInput{
		PatientID: ptr(bob.ID.Hex()), Date: ptr(tomorrow()), Time: ptr("09:00"), Status: ptr("Pending"),
	}, owner)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("bad status err = %v", err)
	}
}

func TestAppointments_PatientNameDenormalization(t *testing.T) {
	f := newFixture(t, AppointmentPolicy{})
	ctx := context.Background()
	owner := f.user(t, "alice", models.RoleDentist)
	bob := f.patient(t, "Bob", "bob@x.com")
	ann := f.patient(t, "Ann", "ann@x.com")

	apt, err := f.appointments.Create(ctx, AppointmentInput{
		PatientID: ptr(bob.ID.Hex()), Date: ptr(tomorrow()), Time: ptr("09:00"),
	}, owner)
	if err != nil {
		t.Fatal(err)
	}

	// renaming the patient does not touch the stored copy
	if _, err := f.patients.Update(ctx, bob.ID.Hex(), PatientInput{Name: ptr("Robert")}); err != nil {
		t.Fatal(err)
	}
	got, err := f.appointments.Update(ctx, apt.ID.Hex(), AppointmentInput{Status: ptr("Completed"), Reason: ptr("cleaning")}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if got.PatientName != "Bob" || got.Status != models.StatusCompleted || got.Reason != "cleaning" {
		t.Errorf("after field update: %+v", got)
	}

	// same patient id again is not a change
	got, _ = f.appointments.Update(ctx, apt.ID.Hex(), AppointmentInput{PatientID: ptr(bob.ID.Hex())}, owner)
	if got.PatientName != "Bob" {
		t.Errorf("unchanged patientId refreshed the name to %q", got.PatientName)
	}

	got, err = f.appointments.Update(ctx, apt.ID.Hex(), AppointmentInput{PatientID: ptr(ann.ID.Hex())}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if got.PatientID != ann.ID || got.PatientName != "Ann" || got.Time != "09:00" {
		t.Errorf("after reassignment: %+v", got)
	}

	_, err = f.appointments.Update(ctx, apt.ID.Hex(), AppointmentInput{PatientID: ptr(primitive.NewObjectID().Hex())}, owner)
	if !errors.Is(err, ErrPatientForAppointment) {
		t.Errorf("reassign to missing patient err = %v", err)
	}
	still, _ := f.appointments.Get(ctx, apt.ID.Hex())
	if still.PatientName != "Ann" || still.PatientID != ann.ID {
		t.Errorf("failed reassignment changed the record: %+v", still)
	}
}

func TestAppointments_NameSurvivesPatientDeletion(t *testing.T) {
	f := newFixture(t, AppointmentPolicy{})
	ctx := context.Background()
	owner := f.user(t, "alice", models.RoleDentist)
	bob := f.patient(t, "Bob", "bob@x.com")

	apt, err := f.appointments.Create(ctx, AppointmentInput{
		PatientID: ptr(bob.ID.Hex()), Date: ptr(tomorrow()), Time: ptr("09:00"),
	}, owner)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.patients.Delete(ctx, bob.ID.Hex()); err != nil {
		t.Fatal(err)
	}
	got, err := f.appointments.Get(ctx, apt.ID.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if got.PatientName != "Bob" {
		t.Errorf("patientName = %q after patient deletion", got.PatientName)
	}
}

func TestAppointments_OwnershipStrict(t *testing.T) {
	f := newFixture(t, AppointmentPolicy{})
	ctx := context.Background()
	owner := f.user(t, "alice", models.RoleReceptionist)
	admin := f.user(t, "root", models.RoleAdmin)
	bob := f.patient(t, "Bob", "bob@x.com")

	apt, err := f.appointments.Create(ctx, AppointmentInput{
		PatientID: ptr(bob.ID.Hex()), Date: ptr(tomorrow()), Time: ptr("09:00"),
	}, owner)
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.appointments.Update(ctx, apt.ID.Hex(), AppointmentInput{Time: ptr("15:00")}, admin)
	if !errors.Is(err, ErrNotOwnerUpdate) || !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("update by non-owner err = %v", err)
	}
	if err := f.appointments.Delete(ctx, apt.ID.Hex(), admin); !errors.Is(err, ErrNotOwnerDelete) {
		t.Errorf("delete by non-owner err = %v", err)
	}
	if _, err := f.appointments.Cancel(ctx, apt.ID.Hex(), admin); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("cancel by non-owner err = %v", err)
	}

	got, err := f.appointments.Get(ctx, apt.ID.Hex())
	if err != nil {
		t.Fatalf("appointment gone after rejected delete: %v", err)
	}
	if got.Time != "09:00" || got.Status != models.StatusScheduled {
		t.Errorf("rejected writes were applied: %+v", got)
	}

	if err := f.appointments.Delete(ctx, apt.ID.Hex(), owner); err != nil {
		t.Errorf("owner delete: %v", err)
	}
	if err := f.appointments.Delete(ctx, apt.ID.Hex(), owner); !errors.Is(err, store.ErrAppointmentNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestAppointments_OwnershipBypass(t *testing.T) {
	f := newFixture(t, AppointmentPolicy{OwnershipBypass: []models.Role{models.RoleAdmin}})
	ctx := context.Background()
	owner := f.user(t, "alice", models.RoleReceptionist)
	admin := f.user(t, "root", models.RoleAdmin)
	dentist := f.user(t, "drx", models.RoleDentist)
	bob := f.patient(t, "Bob", "bob@x.com")

	apt, _ := f.appointments.Create(ctx, AppointmentInput{
		PatientID: ptr(bob.ID.Hex()), Date: ptr(tomorrow()), Time: ptr("09:00"),
	}, owner)

	if _, err := f.appointments.Update(ctx, apt.ID.Hex(), AppointmentInput{Time: ptr("10:00")}, admin); err != nil {
		t.Errorf("admin bypass: %v", err)
	}
	if _, err := f.appointments.Update(ctx, apt.ID.Hex(), AppointmentInput{Time: ptr("11:00")}, dentist); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("dentist is not in the bypass list, err = %v", err)
	}
}

func TestAppointments_ListScope(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		scope string
		want  int
	}{
		{ListScopeAll, 2},
		{ListScopeOwner, 1},
	} {
		f := newFixture(t, AppointmentPolicy{ListScope: tc.scope})
		alice := f.user(t, "alice", models.RoleDentist)
		carol := f.user(t, "carol", models.RoleDentist)
		bob := f.patient(t, "Bob", "bob@x.com")
		for _, u := range []*models.User{alice, carol} {
			if _, err := f.appointments.Create(ctx, AppointmentInput{
				PatientID: ptr(bob.ID.Hex()), Date: ptr(tomorrow()), Time: ptr("09:00"),
			}, u); err != nil {
				t.Fatal(err)
			}
		}
		got, err := f.appointments.List(ctx, alice, ListQuery{})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != tc.want {
			t.Errorf("scope %s: %d appointments, want %d", tc.scope, len(got), tc.want)
		}
	}
}

func TestAppointments_ListFilters(t *testing.T) {
	f := newFixture(t, AppointmentPolicy{})
	ctx := context.Background()
	u := f.user(t, "alice", models.RoleDentist)
	bob := f.patient(t, "Bob", "bob@x.com")

	for _, d := range []string{"2026-03-01", "2026-03-02", "2026-03-05"} {
		if _, err := f.appointments.Create(ctx, AppointmentInput{
			PatientID: ptr(bob.ID.Hex()), Date: ptr(d), Time: ptr("09:00"),
		}, u); err != nil {
			t.Fatal(err)
		}
	}

	got, err := f.appointments.List(ctx, u, ListQuery{From: "2026-03-01", To: "2026-03-02"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("date range returned %d, want 2", len(got))
	}

	if _, err := f.appointments.List(ctx, u, ListQuery{Status: "Done"}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("bad status filter err = %v", err)
	}
}

func TestAppointments_Cancel(t *testing.T) {
	f := newFixture(t, AppointmentPolicy{})
	ctx := context.Background()
	u := f.user(t, "alice", models.RoleDentist)
	bob := f.patient(t, "Bob", "bob@x.com")
	apt, _ := f.appointments.Create(ctx, AppointmentInput{
		PatientID: ptr(bob.ID.Hex()), Date: ptr(tomorrow()), Time: ptr("09:00"),
	}, u)

	got, err := f.appointments.Cancel(ctx, apt.ID.Hex(), u)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCancelled || got.PatientName != "Bob" {
		t.Errorf("cancelled = %+v", got)
	}
	if last, n := f.notifier.last(); n != 2 || last.Status != models.StatusCancelled {
		t.Errorf("notifier calls = %d, last status %q", n, last.Status)
	}
}

// Concurrent updates to one appointment are last-write-wins: there is no
// version check, so both writers succeed and one reason survives.
func TestAppointments_ConcurrentUpdatesLastWriteWins(t *testing.T) {
	f := newFixture(t, AppointmentPolicy{})
	ctx := context.Background()
	owner := f.user(t, "alice", models.RoleReceptionist)
	bob := f.patient(t, "Bob", "bob@x.com")
	apt, err := f.appointments.Create(ctx, AppointmentInput{
		PatientID: ptr(bob.ID.Hex()), Date: ptr(tomorrow()), Time: ptr("09:00"),
	}, owner)
	if err != nil {
		t.Fatal(err)
	}

	reasons := []string{"Cleaning", "Filling"}
	errs := make([]error, len(reasons))
	var wg sync.WaitGroup
	for i, r := range reasons {
		wg.Add(1)
		go func(i int, reason string) {
			defer wg.Done()
			_, errs[i] = f.appointments.Update(ctx, apt.ID.Hex(), AppointmentInput{Reason: ptr(reason)}, owner)
		}(i, r)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("update %q: %v", reasons[i], err)
		}
	}
	got, err := f.appointments.Get(ctx, apt.ID.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if got.Reason != reasons[0] && got.Reason != reasons[1] {
		t.Errorf("reason = %q, want one of %v", got.Reason, reasons)
	}
	if got.PatientName != "Bob" || got.PatientID != bob.ID || got.Time != "09:00" {
		t.Errorf("untouched fields changed: %+v", got)
	}
}
