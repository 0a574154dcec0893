package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mohitdev/blogbackend/models"
	"github.com/mohitdev/blogbackend/utils"
)

type BlogStore struct {
	col *mongo.Collection
}

func NewBlogStore(db *mongo.Database) *BlogStore {
	return &BlogStore{col: db.Collection("blogs")}
}

type NewBlog struct {
	Title         string
	Content       string
	FeaturedImage string
	AuthorID      bson.ObjectID
}

func (s *BlogStore) Create(ctx context.Context, params NewBlog) (*models.Blog, error) {
	featured := params.FeaturedImage
	if featured == "" {
		featured = models.DefaultFeaturedImage(params.Title)
	}

	now := time.Now().UTC()
	blog := &models.Blog{
		ID:            bson.NewObjectID(),
		Title:         params.Title,
		Slug:          utils.GenerateSlug(params.Title),
		Content:       params.Content,
		FeaturedImage: featured,
		AuthorID:      params.AuthorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := s.col.InsertOne(ctx, blog); err != nil {
		return nil, fmt.Errorf("insert blog: %w", err)
	}
	return blog, nil
}

// authorLookupStages join the author document onto each blog, exposing only
// the public author fields.
func authorLookupStages() []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "author",
			"foreignField": "_id",
			"as":           "authorInfo",
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$authorInfo",
			"preserveNullAndEmptyArrays": true,
		}}},
		{{Key: "$project", Value: bson.M{
			"authorInfo.password":            0,
			"authorInfo.resetPasswordToken":  0,
			"authorInfo.resetPasswordExpiry": 0,
			"authorInfo.role":                0,
			"authorInfo.createdAt":           0,
			"authorInfo.updatedAt":           0,
		}}},
	}
}

func (s *BlogStore) FindByID(ctx context.Context, id bson.ObjectID) (*models.Blog, error) {
	pipeline := append([]bson.D{
		{{Key: "$match", Value: bson.M{"_id": id}}},
	}, authorLookupStages()...)

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("find blog: %w", err)
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, fmt.Errorf("find blog: %w", err)
		}
		return nil, ErrNotFound
	}

	var blog models.Blog
	if err := cursor.Decode(&blog); err != nil {
		return nil, fmt.Errorf("decode blog: %w", err)
	}
	return &blog, nil
}

// searchFilter matches q case-insensitively against title and content. The
// query is quoted so user input can't inject regex syntax.
func searchFilter(q string) bson.M {
	if q == "" {
		return bson.M{}
	}
	pattern := regexp.QuoteMeta(q)
	re := bson.M{"$regex": pattern, "$options": "i"}
	return bson.M{"$or": bson.A{
		bson.M{"title": re},
		bson.M{"content": re},
	}}
}

// List returns a page of blogs, newest first, with the total match count.
func (s *BlogStore) List(ctx context.Context, page, limit int, q string) ([]models.Blog, int64, error) {
	page, limit = utils.ClampPageLimit(page, limit)
	skip := int64((page - 1) * limit)
	filter := searchFilter(q)

	pipeline := append([]bson.D{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$skip", Value: skip}},
		{{Key: "$limit", Value: int64(limit)}},
	}, authorLookupStages()...)

	cursor, err := s.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, 0, fmt.Errorf("list blogs: %w", err)
	}
	defer cursor.Close(ctx)

	blogs := make([]models.Blog, 0)
	for cursor.Next(ctx) {
		var b models.Blog
		if err := cursor.Decode(&b); err != nil {
			return nil, 0, fmt.Errorf("decode blog: %w", err)
		}
		blogs = append(blogs, b)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("list blogs: %w", err)
	}

	total, err := s.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count blogs: %w", err)
	}

	return blogs, total, nil
}

type BlogUpdate struct {
	Title         *string
	Content       *string
	FeaturedImage *string
}

func (s *BlogStore) Update(ctx context.Context, id bson.ObjectID, params BlogUpdate) (*models.Blog, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if params.Title != nil {
		set["title"] = *params.Title
		set["slug"] = utils.GenerateSlug(*params.Title)
	}
	if params.Content != nil {
		set["content"] = *params.Content
	}
	if params.FeaturedImage != nil {
		set["featuredImage"] = *params.FeaturedImage
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var blog models.Blog
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&blog)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update blog: %w", err)
	}
	return &blog, nil
}

func (s *BlogStore) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
