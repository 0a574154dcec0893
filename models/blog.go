package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Blog struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string        `bson:"title" json:"title"`
	Slug          string        `bson:"slug" json:"slug"`
	Content       string        `bson:"content" json:"content"`
	FeaturedImage string        `bson:"featuredImage" json:"featuredImage"`
	AuthorID      bson.ObjectID `bson:"author" json:"-"`
	Author        *BlogAuthor   `bson:"authorInfo,omitempty" json:"author,omitempty"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// BlogAuthor is the author projection joined into blog reads.
type BlogAuthor struct {
	ID         bson.ObjectID `bson:"_id" json:"id"`
	FirstName  string        `bson:"firstName" json:"firstName"`
	LastName   string        `bson:"lastName" json:"lastName"`
	Email      string        `bson:"email" json:"email"`
	ProfilePic string        `bson:"profilePic" json:"profilePic"`
}

// DefaultFeaturedImage derives a deterministic placeholder image from the title.
func DefaultFeaturedImage(title string) string {
	seed := len(title) * 5
	return fmt.Sprintf("https://picsum.photos/seed/%d/800/400", seed)
}
