package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
)

type AppointmentStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewAppointmentStore(db *mongo.Database) *AppointmentStore {
	return &AppointmentStore{coll: db.Collection(appointmentsCollection), now: time.Now}
}

// List returns the appointments matching f sorted by date, then time.
func (s *AppointmentStore) List(ctx context.Context, f models.AppointmentFilter) ([]models.Appointment, error) {
	appointments := make([]models.Appointment, 0)
	query, ok := appointmentQuery(f)
	if !ok {
		return appointments, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}})
	cur, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, apperr.Wrap(err, "list appointments")
	}
	defer cur.Close(ctx)

	if err := cur.All(ctx, &appointments); err != nil {
		return nil, apperr.Wrap(err, "decode appointments")
	}
	return appointments, nil
}

func (s *AppointmentStore) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	var a models.Appointment
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAppointmentNotFound
		}
		return nil, apperr.Wrap(err, "find appointment")
	}
	return &a, nil
}

func (s *AppointmentStore) Create(ctx context.Context, a *models.Appointment) error {
	now := s.now().UTC()
	a.ID = primitive.NewObjectID()
	a.CreatedAt, a.UpdatedAt = now, now
	if _, err := s.coll.InsertOne(ctx, a); err != nil {
		return apperr.Wrap(err, "insert appointment")
	}
	return nil
}

// Update writes every field set in ch, patientId and patientName included,
// in a single $set.
func (s *AppointmentStore) Update(ctx context.Context, id string, ch models.AppointmentChanges) (*models.Appointment, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	var a models.Appointment
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": appointmentSet(ch, s.now().UTC())},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(err, "update appointment")
	}
	return &a, nil
}

func (s *AppointmentStore) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return ErrAppointmentNotFound
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return apperr.Wrap(err, "delete appointment")
	}
	if res.DeletedCount == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// appointmentQuery translates f into a mongo filter. ok is false when f can
// match nothing, e.g. an owner id that is not an ObjectID.
func appointmentQuery(f models.AppointmentFilter) (query bson.M, ok bool) {
	query = bson.M{}
	if f.OwnerID != "" {
		oid, valid := objectID(f.OwnerID)
		if !valid {
			return nil, false
		}
		query["user"] = oid
	}
	if f.PatientID != "" {
		oid, valid := objectID(f.PatientID)
		if !valid {
			return nil, false
		}
		query["patientId"] = oid
	}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.From != nil || f.To != nil {
		date := bson.M{}
		if f.From != nil {
			date["$gte"] = *f.From
		}
		if f.To != nil {
			date["$lte"] = *f.To
		}
		query["date"] = date
	}
	return query, true
}

func appointmentSet(ch models.AppointmentChanges, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if ch.PatientID != nil {
		set["patientId"] = *ch.PatientID
	}
	if ch.PatientName != nil {
		set["patientName"] = *ch.PatientName
	}
	if ch.Date != nil {
		set["date"] = *ch.Date
	}
	if ch.Time != nil {
		set["time"] = *ch.Time
	}
	if ch.Reason != nil {
		set["reason"] = *ch.Reason
	}
	if ch.Status != nil {
		set["status"] = *ch.Status
	}
	return set
}
