package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
	"github.com/harentsoaR/clinic-api/internal/store"
	"github.com/harentsoaR/clinic-api/internal/utils"
)

var ErrInvalidCredentials = apperr.Unauthenticated("Invalid credentials")

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Update(ctx context.Context, id string, ch models.UserChanges) (*models.User, error)
}

type RegisterInput struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// ProfileInput is a partial profile update. Empty strings are ignored.
type ProfileInput struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// Credentials owns user identities. Passwords only ever reach the repository
// as bcrypt hashes.
type Credentials struct {
	users     UserRepository
	hasher    *utils.Hasher
	log       zerolog.Logger
	dummyHash string
}

func NewCredentials(users UserRepository, hasher *utils.Hasher, log zerolog.Logger) *Credentials {
	// compared against on unknown identifiers so lookups cost the same either way
	dummy, _ := hasher.Hash("not-a-real-password")
	return &Credentials{users: users, hasher: hasher, log: log, dummyHash: dummy}
}

func (s *Credentials) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var errs fieldErrors
	if username == "" {
		errs.add("username is required")
	}
	if !validEmail(email) {
		errs.add("email must be a valid email address")
	}
	if in.Password == "" {
		errs.add("password is required")
	}
	role := in.Role
	if role == "" {
		role = models.DefaultRole
	} else if !role.IsValid() {
		errs.add("role must be one of admin, staff, dentist, receptionist")
	}
	if len(errs) > 0 {
		return nil, apperr.Validation(errs...)
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, store.ErrUserExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Wrap(err, "hash password")
	}
	u := &models.User{Username: username, Email: email, Password: hash, Role: role}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", u.ID.Hex()).Str("role", string(u.Role)).Msg("user registered")
	return u.Sanitized(), nil
}

// VerifyCredentials looks the user up by username or email and checks the
// password against the stored hash.
func (s *Credentials) VerifyCredentials(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.FindByIdentifier(ctx, identifier)
	if errors.Is(err, store.ErrUserNotFound) {
		s.hasher.Compare(s.dummyHash, password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Compare(u.Password, password) {
		s.log.Warn().Str("user_id", u.ID.Hex()).Msg("failed login attempt")
		return nil, ErrInvalidCredentials
	}
	return u.Sanitized(), nil
}

func (s *Credentials) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Sanitized(), nil
}

// UpdateProfile applies the non-empty fields of in. A new password is hashed
// before it is stored; without one the stored hash is left alone.
func (s *Credentials) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*models.User, error) {
	var ch models.UserChanges
	var errs fieldErrors

	if v := trimmed(in.Username); v != nil && *v != "" {
		ch.Username = v
	}
	if v := trimmed(in.Email); v != nil && *v != "" {
		email := strings.ToLower(*v)
		if !validEmail(email) {
			errs.add("email must be a valid email address")
		}
		ch.Email = &email
	}
	if len(errs) > 0 {
		return nil, apperr.Validation(errs...)
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, apperr.Wrap(err, "hash password")
		}
		ch.Password = &hash
	}

	if ch.Empty() {
		return s.GetUser(ctx, userID)
	}
	u, err := s.users.Update(ctx, userID, ch)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", userID).Bool("password_changed", ch.Password != nil).Msg("profile updated")
	return u.Sanitized(), nil
}
