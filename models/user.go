package models

import (
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type User struct {
	ID                  bson.ObjectID `bson:"_id,omitempty" json:"id"`
	FirstName           string        `bson:"firstName" json:"firstName"`
	LastName            string        `bson:"lastName" json:"lastName"`
	Email               string        `bson:"email" json:"email"`
	Password            string        `bson:"password" json:"-"` // bcrypt hash, never exposed
	ProfilePic          string        `bson:"profilePic" json:"profilePic"`
	Role                Role          `bson:"role" json:"role"`
	ResetPasswordToken  string        `bson:"resetPasswordToken,omitempty" json:"-"`
	ResetPasswordExpiry *time.Time    `bson:"resetPasswordExpiry,omitempty" json:"-"`
	CreatedAt           time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time     `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// PublicUser is the projection returned by the API: no password hash and no
// reset token state.
type PublicUser struct {
	ID         bson.ObjectID `json:"id"`
	FirstName  string        `json:"firstName"`
	LastName   string        `json:"lastName"`
	Email      string        `json:"email"`
	ProfilePic string        `json:"profilePic"`
	Role       Role          `json:"role"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
		Role:       u.Role,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// DefaultProfilePic derives a deterministic avatar URL from the user's name.
func DefaultProfilePic(firstName, lastName string) string {
	name := url.QueryEscape(firstName + " " + lastName)
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s", name)
}
