package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/store"
)

func TestUsers_UniqueUsernameAndEmail(t *testing.T) {
	ctx := context.Background()
	s := NewUsers()
	if err := s.Create(ctx, &models.User{Username: "alice", Email: "alice@x.com"}); err != nil {
		t.Fatal(err)
	}
	for _, u := range []*models.User{
		{Username: "alice", Email: "other@x.com"},
		{Username: "alice2", Email: "alice@x.com"},
	} {
		if err := s.Create(ctx, u); !errors.Is(err, store.ErrUserExists) {
			t.Errorf("Create(%s, %s) err = %v", u.Username, u.Email, err)
		}
	}
	found, err := s.FindByIdentifier(ctx, "ALICE@x.com")
	if err != nil || found.Username != "alice" {
		t.Errorf("FindByIdentifier = %+v, %v", found, err)
	}
}

func TestPatients_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewPatients()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		if err := s.Create(ctx, &models.Patient{Name: name, Email: name + "@x.com"}); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.List(ctx)
	if len(got) != 3 || got[0].Name != "third" || got[2].Name != "first" {
		t.Errorf("order = %v", names(got))
	}
}

func TestPatients_Attachments(t *testing.T) {
	ctx := context.Background()
	s := NewPatients()
	p := &models.Patient{Name: "Bob", Email: "bob@x.com", Phone: "123-456-7890"}
	if err := s.Create(ctx, p); err != nil {
		t.Fatal(err)
	}

	att := models.Attachment{ID: primitive.NewObjectID(), Filename: "f.pdf"}
	if _, err := s.PushAttachment(ctx, p.ID.Hex(), att); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.PullAttachment(ctx, p.ID.Hex(), primitive.NewObjectID().Hex()); !errors.Is(err, store.ErrAttachmentNotFound) {
		t.Errorf("unknown attachment err = %v", err)
	}
	if _, _, err := s.PullAttachment(ctx, primitive.NewObjectID().Hex(), att.ID.Hex()); !errors.Is(err, store.ErrPatientNotFound) {
		t.Errorf("unknown patient err = %v", err)
	}

	removed, after, err := s.PullAttachment(ctx, p.ID.Hex(), strings.ToUpper(att.ID.Hex()))
	if err != nil {
		t.Fatal(err)
	}
	if removed.Filename != "f.pdf" || len(after.Attachments) != 0 || after.Phone != "123-456-7890" {
		t.Errorf("removed = %+v, after = %+v", removed, after)
	}
}

func TestAppointments_ListSortedByDateThenTime(t *testing.T) {
	ctx := context.Background()
	s := NewAppointments()
	d1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	owner := primitive.NewObjectID()
	for _, a := range []models.Appointment{
		{Date: d2, Time: "08:00", UserID: owner},
		{Date: d1, Time: "11:00"},
		{Date: d1, Time: "09:00", UserID: owner},
	} {
		a := a
		if err := s.Create(ctx, &a); err != nil {
			t.Fatal(err)
		}
	}

	got, _ := s.List(ctx, models.AppointmentFilter{})
	if len(got) != 3 || got[0].Time != "09:00" || got[1].Time != "11:00" || !got[2].Date.Equal(d2) {
		t.Errorf("order = %+v", got)
	}

	mine, _ := s.List(ctx, models.AppointmentFilter{OwnerID: owner.Hex()})
	if len(mine) != 2 {
		t.Errorf("owner filter returned %d", len(mine))
	}
}

func names(ps []models.Patient) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}
