package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/clinic-api/internal/apperr"
	"github.com/harentsoaR/clinic-api/internal/models"
)

type UserStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(usersCollection), now: time.Now}
}

// Create inserts u, assigning its id and timestamps.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	now := s.now().UTC()
	u.ID = primitive.NewObjectID()
	u.CreatedAt, u.UpdatedAt = now, now

	if _, err := s.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserExists
		}
		return apperr.Wrap(err, "insert user")
	}
	return nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

// FindByIdentifier matches either the username or the (lowercased) email.
func (s *UserStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": identifier},
		bson.M{"email": strings.ToLower(identifier)},
	}})
}

func (s *UserStore) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": strings.ToLower(email)},
	}}, options.Count().SetLimit(1))
	if err != nil {
		return false, apperr.Wrap(err, "count users")
	}
	return n > 0, nil
}

// Update applies ch and returns the stored user after the change.
func (s *UserStore) Update(ctx context.Context, id string, ch models.UserChanges) (*models.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	var u models.User
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": userSet(ch, s.now().UTC())},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, ErrUserNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrUserExists
	case err != nil:
		return nil, apperr.Wrap(err, "update user")
	}
	return &u, nil
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, apperr.Wrap(err, "find user")
	}
	return &u, nil
}

func userSet(ch models.UserChanges, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if ch.Username != nil {
		set["username"] = *ch.Username
	}
	if ch.Email != nil {
		set["email"] = *ch.Email
	}
	if ch.Password != nil {
		set["password"] = *ch.Password
	}
	return set
}
