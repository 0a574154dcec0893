package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mohitdev/blogbackend/models"
	"github.com/mohitdev/blogbackend/utils"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email already in use")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidResetToken = errors.New("reset token invalid or expired")
)

// UserStore owns the users collection. Password hashing happens here and
// nowhere else: Create and the password setters are the only write paths that
// touch the password field, and each hashes exactly once.
type UserStore struct {
	col *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{col: db.Collection("users")}
}

type NewUser struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string // plaintext, hashed before persisting
	ProfilePic string
	Role       models.Role
}

func (s *UserStore) Create(ctx context.Context, params NewUser) (*models.User, error) {
	if !utils.IsValidEmail(strings.TrimSpace(params.Email)) {
		return nil, ErrInvalidEmail
	}

	hash, err := utils.HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := params.Role
	if role == "" {
		role = models.RoleUser
	}
	profilePic := params.ProfilePic
	if profilePic == "" {
		profilePic = models.DefaultProfilePic(params.FirstName, params.LastName)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:         bson.NewObjectID(),
		FirstName:  strings.TrimSpace(params.FirstName),
		LastName:   strings.TrimSpace(params.LastName),
		Email:      strings.ToLower(strings.TrimSpace(params.Email)),
		Password:   hash,
		ProfilePic: profilePic,
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := s.col.InsertOne(ctx, user); err != nil {
		if utils.IsDuplicateKey(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

func (s *UserStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	var user models.User
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// SetPassword hashes and persists a new password for the user.
func (s *UserStore) SetPassword(ctx context.Context, id bson.ObjectID, plaintext string) error {
	hash, err := utils.HashPassword(plaintext)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	res, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"password":  hash,
			"updatedAt": time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken stores the reset token hash and expiry as a pair.
func (s *UserStore) SetResetToken(ctx context.Context, id bson.ObjectID, tokenHash string, expiry time.Time) error {
	res, err := s.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"resetPasswordToken":  tokenHash,
			"resetPasswordExpiry": expiry,
			"updatedAt":           time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearResetToken removes any pending reset token, e.g. after a failed email
// dispatch so the request can be retried.
func (s *UserStore) ClearResetToken(ctx context.Context, id bson.ObjectID) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{
		"$unset": bson.M{
			"resetPasswordToken":  "",
			"resetPasswordExpiry": "",
		},
	})
	if err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken atomically matches an unexpired token hash, sets the new
// password and clears both reset fields in one document update. Two concurrent
// requests with the same token cannot both succeed.
func (s *UserStore) ConsumeResetToken(ctx context.Context, tokenHash string, newPassword string) (*models.User, error) {
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	filter := bson.M{
		"resetPasswordToken":  tokenHash,
		"resetPasswordExpiry": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"password":  hash,
			"updatedAt": now,
		},
		"$unset": bson.M{
			"resetPasswordToken":  "",
			"resetPasswordExpiry": "",
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.User
	err = s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	return &user, nil
}

func (s *UserStore) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
