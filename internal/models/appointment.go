package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "Scheduled"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Appointment keeps a copy of the patient's name taken when the patient was
// (re)assigned. It is not refreshed when the patient is renamed or deleted.
type Appointment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	PatientID   primitive.ObjectID `bson:"patientId" json:"patientId"`
	PatientName string             `bson:"patientName" json:"patientName"`
	Date        time.Time          `bson:"date" json:"date"`
	Time        string             `bson:"time" json:"time"`
	Reason      string             `bson:"reason,omitempty" json:"reason,omitempty"`
	Status      AppointmentStatus  `bson:"status" json:"status"`
	UserID      primitive.ObjectID `bson:"user" json:"user"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AppointmentChanges is a partial update; nil fields are left untouched.
// PatientID and PatientName travel together.
type AppointmentChanges struct {
	PatientID   *primitive.ObjectID
	PatientName *string
	Date        *time.Time
	Time        *string
	Reason      *string
	Status      *AppointmentStatus
}

func (c AppointmentChanges) Empty() bool {
	return c.PatientID == nil && c.PatientName == nil && c.Date == nil &&
		c.Time == nil && c.Reason == nil && c.Status == nil
}

// Apply copies the set fields onto a.
func (c AppointmentChanges) Apply(a *Appointment) {
	if c.PatientID != nil {
		a.PatientID = *c.PatientID
	}
	if c.PatientName != nil {
		a.PatientName = *c.PatientName
	}
	if c.Date != nil {
		a.Date = *c.Date
	}
	if c.Time != nil {
		a.Time = *c.Time
	}
	if c.Reason != nil {
		a.Reason = *c.Reason
	}
	if c.Status != nil {
		a.Status = *c.Status
	}
}

// AppointmentFilter narrows a listing. Zero fields match everything.
// From and To bound the appointment date inclusively.
type AppointmentFilter struct {
	OwnerID   string
	PatientID string
	Status    AppointmentStatus
	From      *time.Time
	To        *time.Time
}

// Matches reports whether a satisfies f. Hex IDs that do not parse match
// nothing.
func (f AppointmentFilter) Matches(a *Appointment) bool {
	if f.OwnerID != "" && !sameID(f.OwnerID, a.UserID) {
		return false
	}
	if f.PatientID != "" && !sameID(f.PatientID, a.PatientID) {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.From != nil && a.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && a.Date.After(*f.To) {
		return false
	}
	return true
}

func sameID(hex string, id primitive.ObjectID) bool {
	oid, err := primitive.ObjectIDFromHex(hex)
	return err == nil && oid == id
}
