package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
)

func newMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func duplicateKey() bson.D {
	return mtest.CreateWriteErrorsResponse(mtest.WriteError{
		Index:   0,
		Code:    11000,
		Message: "E11000 duplicate key error",
	})
}

func TestUserStore_Create(t *testing.T) {
	mt := newMock(t)

	mt.Run("assigns id and timestamps", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		s := NewUserStore(mt.DB)

		u := &models.User{Username: "alice", Email: "alice@x.com", Password: "hash", Role: models.RoleStaff}
		if err := s.Create(context.Background(), u); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if u.ID.IsZero() || u.CreatedAt.IsZero() || !u.CreatedAt.Equal(u.UpdatedAt) {
			t.Errorf("user not stamped: %+v", u)
		}
	})

	mt.Run("duplicate is a conflict", func(mt *mtest.T) {
		mt.AddMockResponses(duplicateKey())
		s := NewUserStore(mt.DB)

		err := s.Create(context.Background(), &models.User{Username: "alice", Email: "alice@x.com"})
		if !errors.Is(err, ErrUserExists) || !apperr.Is(err, apperr.KindConflict) {
			t.Errorf("err = %v, want ErrUserExists", err)
		}
	})
}

func TestUserStore_FindByIdentifier(t *testing.T) {
	mt := newMock(t)

	mt.Run("found", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "clinic.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "username", Value: "alice"},
			{Key: "email", Value: "alice@x.com"},
			{Key: "password", Value: "hash"},
			{Key: "role", Value: "admin"},
		}))
		s := NewUserStore(mt.DB)

		u, err := s.FindByIdentifier(context.Background(), "Alice@X.com")
		if err != nil {
			t.Fatalf("FindByIdentifier: %v", err)
		}
		if u.ID != id || u.Role != models.RoleAdmin || u.Password != "hash" {
			t.Errorf("user = %+v", u)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "clinic.users", mtest.FirstBatch))
		s := NewUserStore(mt.DB)

		if _, err := s.FindByIdentifier(context.Background(), "nobody"); !errors.Is(err, ErrUserNotFound) {
			t.Errorf("err = %v, want ErrUserNotFound", err)
		}
	})
}

func TestPatientStore_CreateDuplicateEmail(t *testing.T) {
	mt := newMock(t)

	mt.Run("conflict", func(mt *mtest.T) {
		mt.AddMockResponses(duplicateKey())
		s := NewPatientStore(mt.DB)

		err := s.Create(context.Background(), &models.Patient{Name: "Bob", Email: "bob@x.com"})
		if !errors.Is(err, ErrPatientEmailTaken) {
			t.Fatalf("err = %v, want ErrPatientEmailTaken", err)
		}
		if apperr.Is(err, apperr.KindValidation) || apperr.Is(err, apperr.KindUnexpected) {
			t.Error("duplicate email must be distinguishable from validation and unexpected errors")
		}
	})
}

func TestPatientStore_FindByID(t *testing.T) {
	mt := newMock(t)

	mt.Run("malformed id never hits the database", func(mt *mtest.T) {
		s := NewPatientStore(mt.DB)
		if _, err := s.FindByID(context.Background(), "not-an-id"); !errors.Is(err, ErrPatientNotFound) {
			t.Errorf("err = %v, want ErrPatientNotFound", err)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "clinic.patients", mtest.FirstBatch))
		s := NewPatientStore(mt.DB)
		if _, err := s.FindByID(context.Background(), primitive.NewObjectID().Hex()); !errors.Is(err, ErrPatientNotFound) {
			t.Errorf("err = %v, want ErrPatientNotFound", err)
		}
	})
}

func TestPatientStore_Update(t *testing.T) {
	mt := newMock(t)

	mt.Run("returns document after update", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Robert"},
			{Key: "email", Value: "bob@x.com"},
		}}))
		s := NewPatientStore(mt.DB)

		name := "Robert"
		p, err := s.Update(context.Background(), id.Hex(), models.PatientChanges{Name: &name})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if p.ID != id || p.Name != "Robert" {
			t.Errorf("patient = %+v", p)
		}
	})

	mt.Run("email collision", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))
		s := NewPatientStore(mt.DB)

		email := "taken@x.com"
		_, err := s.Update(context.Background(), primitive.NewObjectID().Hex(), models.PatientChanges{Email: &email})
		if !errors.Is(err, ErrPatientEmailTaken) {
			t.Errorf("err = %v, want ErrPatientEmailTaken", err)
		}
	})
}

func TestAppointmentStore_List(t *testing.T) {
	mt := newMock(t)

	mt.Run("decodes batch", func(mt *mtest.T) {
		day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "clinic.appointments", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "patientName", Value: "Bob"}, {Key: "date", Value: day}, {Key: "time", Value: "09:00"}, {Key: "status", Value: "Scheduled"}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "patientName", Value: "Ann"}, {Key: "date", Value: day}, {Key: "time", Value: "10:00"}, {Key: "status", Value: "Scheduled"}},
		))
		s := NewAppointmentStore(mt.DB)

		got, err := s.List(context.Background(), models.AppointmentFilter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(got) != 2 || got[0].PatientName != "Bob" || got[1].Time != "10:00" {
			t.Errorf("appointments = %+v", got)
		}
	})

	mt.Run("unparseable owner matches nothing", func(mt *mtest.T) {
		s := NewAppointmentStore(mt.DB)
		got, err := s.List(context.Background(), models.AppointmentFilter{OwnerID: "nope"})
		if err != nil || len(got) != 0 {
			t.Errorf("got %v, %v; want empty list", got, err)
		}
	})
}

func TestAppointmentStore_Delete(t *testing.T) {
	mt := newMock(t)

	mt.Run("deleted", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		s := NewAppointmentStore(mt.DB)
		if err := s.Delete(context.Background(), primitive.NewObjectID().Hex()); err != nil {
			t.Errorf("Delete: %v", err)
		}
	})

	mt.Run("missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		s := NewAppointmentStore(mt.DB)
		if err := s.Delete(context.Background(), primitive.NewObjectID().Hex()); !errors.Is(err, ErrAppointmentNotFound) {
			t.Errorf("err = %v, want ErrAppointmentNotFound", err)
		}
	})
}

func TestAppointmentSet_PatientNameOnlyWhenGiven(t *testing.T) {
	now := time.Now()
	st := models.StatusCompleted

	set := appointmentSet(models.AppointmentChanges{Status: &st}, now)
	if _, ok := set["patientName"]; ok {
		t.Error("patientName must not be written when only status changes")
	}
	if set["status"] != models.StatusCompleted || set["updatedAt"] != now {
		t.Errorf("set = %v", set)
	}

	pid := primitive.NewObjectID()
	name := "Ann"
	set = appointmentSet(models.AppointmentChanges{PatientID: &pid, PatientName: &name}, now)
	if set["patientId"] != pid || set["patientName"] != "Ann" {
		t.Errorf("patient reassignment must write id and name together: %v", set)
	}
}

func TestAppointmentQuery(t *testing.T) {
	owner := primitive.NewObjectID()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	q, ok := appointmentQuery(models.AppointmentFilter{OwnerID: owner.Hex(), Status: models.StatusScheduled, From: &from})
	if !ok {
		t.Fatal("expected a usable query")
	}
	if q["user"] != owner || q["status"] != models.StatusScheduled {
		t.Errorf("query = %v", q)
	}
	if d, _ := q["date"].(bson.M); d["$gte"] != from || d["$lte"] != nil {
		t.Errorf("date range = %v", q["date"])
	}

	if _, ok := appointmentQuery(models.AppointmentFilter{PatientID: "zzz"}); ok {
		t.Error("bad patient id should match nothing")
	}
}

func TestSplitAttachment(t *testing.T) {
	a1, a2 := primitive.NewObjectID(), primitive.NewObjectID()
	p := models.Patient{Name: "Bob", Attachments: []models.Attachment{{ID: a1, Filename: "a"}, {ID: a2, Filename: "b"}}}

	removed, after := splitAttachment(p, a1)
	if removed == nil || removed.Filename != "a" {
		t.Fatalf("removed = %+v", removed)
	}
	if len(after.Attachments) != 1 || after.Attachments[0].ID != a2 || after.Name != "Bob" {
		t.Errorf("after = %+v", after)
	}
	if len(p.Attachments) != 2 {
		t.Error("input must not be modified")
	}
}
