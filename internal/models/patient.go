package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Patient struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name        string             `bson:"name" json:"name"`
	Email       string             `bson:"email" json:"email"`
	Phone       string             `bson:"phone" json:"phone"`
	DateOfBirth time.Time          `bson:"dateOfBirth" json:"dateOfBirth"`
	Address     string             `bson:"address" json:"address"`
	Notes       string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Attachments []Attachment       `bson:"attachments" json:"attachments"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Attachment is the metadata of a file stored for a patient. Filename is the
// storage-assigned name, OriginalName the one the uploader supplied.
type Attachment struct {
	ID           primitive.ObjectID `bson:"_id" json:"_id"`
	Filename     string             `bson:"filename" json:"filename"`
	OriginalName string             `bson:"originalName" json:"originalName"`
	MimeType     string             `bson:"mimeType" json:"mimeType"`
	Size         int64              `bson:"size" json:"size"`
	UploadedAt   time.Time          `bson:"uploadedAt" json:"uploadedAt"`
}

// PatientChanges is a partial update; nil fields are left untouched.
type PatientChanges struct {
	Name        *string
	Email       *string
	Phone       *string
	DateOfBirth *time.Time
	Address     *string
	Notes       *string
}

func (c PatientChanges) Empty() bool {
	return c.Name == nil && c.Email == nil && c.Phone == nil &&
		c.DateOfBirth == nil && c.Address == nil && c.Notes == nil
}

// Apply copies the set fields onto p.
func (c PatientChanges) Apply(p *Patient) {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Email != nil {
		p.Email = *c.Email
	}
	if c.Phone != nil {
		p.Phone = *c.Phone
	}
	if c.DateOfBirth != nil {
		p.DateOfBirth = *c.DateOfBirth
	}
	if c.Address != nil {
		p.Address = *c.Address
	}
	if c.Notes != nil {
		p.Notes = *c.Notes
	}
}
