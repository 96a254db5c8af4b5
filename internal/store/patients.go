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

type PatientStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewPatientStore(db *mongo.Database) *PatientStore {
	return &PatientStore{coll: db.Collection(patientsCollection), now: time.Now}
}

// List returns every patient, most recently created first.
func (s *PatientStore) List(ctx context.Context) ([]models.Patient, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, apperr.Wrap(err, "list patients")
	}
	defer cur.Close(ctx)

	patients := make([]models.Patient, 0)
	if err := cur.All(ctx, &patients); err != nil {
		return nil, apperr.Wrap(err, "decode patients")
	}
	return patients, nil
}

func (s *PatientStore) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrPatientNotFound
	}
	var p models.Patient
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPatientNotFound
		}
		return nil, apperr.Wrap(err, "find patient")
	}
	return &p, nil
}

func (s *PatientStore) Create(ctx context.Context, p *models.Patient) error {
	now := s.now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Attachments == nil {
		p.Attachments = []models.Attachment{}
	}

	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrPatientEmailTaken
		}
		return apperr.Wrap(err, "insert patient")
	}
	return nil
}

func (s *PatientStore) Update(ctx context.Context, id string, ch models.PatientChanges) (*models.Patient, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrPatientNotFound
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": patientSet(ch, s.now().UTC())}, "update patient")
}

// Delete removes the patient and returns the deleted document so the caller
// can clean up attachment files.
func (s *PatientStore) Delete(ctx context.Context, id string) (*models.Patient, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrPatientNotFound
	}
	var p models.Patient
	if err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPatientNotFound
		}
		return nil, apperr.Wrap(err, "delete patient")
	}
	return &p, nil
}

// PushAttachment appends att and returns the patient after the change. No
// other patient field is touched besides updatedAt.
func (s *PatientStore) PushAttachment(ctx context.Context, id string, att models.Attachment) (*models.Patient, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrPatientNotFound
	}
	update := bson.M{
		"$push": bson.M{"attachments": att},
		"$set":  bson.M{"updatedAt": s.now().UTC()},
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": oid}, update, "push attachment")
}

// PullAttachment removes one attachment. It returns the removed entry and the
// patient after the change, and tells a missing patient apart from a
// missing attachment.
func (s *PatientStore) PullAttachment(ctx context.Context, id, attachmentID string) (*models.Attachment, *models.Patient, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, nil, ErrPatientNotFound
	}
	aid, ok := objectID(attachmentID)
	if !ok {
		return nil, nil, s.missingAttachment(ctx, oid)
	}

	var before models.Patient
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "attachments._id": aid},
		bson.M{
			"$pull": bson.M{"attachments": bson.M{"_id": aid}},
			"$set":  bson.M{"updatedAt": s.now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil, s.missingAttachment(ctx, oid)
	}
	if err != nil {
		return nil, nil, apperr.Wrap(err, "pull attachment")
	}

	removed, after := splitAttachment(before, aid)
	return removed, &after, nil
}

func (s *PatientStore) missingAttachment(ctx context.Context, oid primitive.ObjectID) error {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return apperr.Wrap(err, "count patients")
	}
	if n == 0 {
		return ErrPatientNotFound
	}
	return ErrAttachmentNotFound
}

func (s *PatientStore) findOneAndUpdate(ctx context.Context, filter, update bson.M, op string) (*models.Patient, error) {
	var p models.Patient
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrPatientNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrPatientEmailTaken
	case err != nil:
		return nil, apperr.Wrap(err, op)
	}
	return &p, nil
}

// splitAttachment returns the attachment with id aid and a copy of p without
// it.
func splitAttachment(p models.Patient, aid primitive.ObjectID) (*models.Attachment, models.Patient) {
	var removed *models.Attachment
	kept := make([]models.Attachment, 0, len(p.Attachments))
	for i := range p.Attachments {
		if removed == nil && p.Attachments[i].ID == aid {
			a := p.Attachments[i]
			removed = &a
			continue
		}
		kept = append(kept, p.Attachments[i])
	}
	p.Attachments = kept
	return removed, p
}

func patientSet(ch models.PatientChanges, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if ch.Name != nil {
		set["name"] = *ch.Name
	}
	if ch.Email != nil {
		set["email"] = *ch.Email
	}
	if ch.Phone != nil {
		set["phone"] = *ch.Phone
	}
	if ch.DateOfBirth != nil {
		set["dateOfBirth"] = *ch.DateOfBirth
	}
	if ch.Address != nil {
		set["address"] = *ch.Address
	}
	if ch.Notes != nil {
		set["notes"] = *ch.Notes
	}
	return set
}
