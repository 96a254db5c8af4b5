package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleStaff        Role = "staff"
	RoleDentist      Role = "dentist"
	RoleReceptionist Role = "receptionist"
)

// DefaultRole is the lowest-privilege role, given when registration omits one.
const DefaultRole = RoleStaff

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStaff, RoleDentist, RoleReceptionist:
		return true
	}
	return false
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // bcrypt hash, never serialized
	Role      Role               `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UserView is the public shape returned by the auth endpoints.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

func (u *User) View() UserView {
	return UserView{ID: u.ID.Hex(), Username: u.Username, Email: u.Email, Role: u.Role}
}

// Sanitized returns a copy of u without the password hash.
func (u *User) Sanitized() *User {
	cp := *u
	cp.Password = ""
	return &cp
}

// UserChanges is a partial update; nil fields are left untouched.
type UserChanges struct {
	Username *string
	Email    *string
	Password *string // already hashed
}

func (c UserChanges) Empty() bool {
	return c.Username == nil && c.Email == nil && c.Password == nil
}

// Apply copies the set fields onto u.
func (c UserChanges) Apply(u *User) {
	if c.Username != nil {
		u.Username = *c.Username
	}
	if c.Email != nil {
		u.Email = *c.Email
	}
	if c.Password != nil {
		u.Password = *c.Password
	}
}
