package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mohitdev/blogbackend/dto"
	"github.com/mohitdev/blogbackend/httputil"
	"github.com/mohitdev/blogbackend/middleware"
	"github.com/mohitdev/blogbackend/models"
	"github.com/mohitdev/blogbackend/store"
	"github.com/mohitdev/blogbackend/utils"
)

// BlogStore is the slice of store.BlogStore the handlers need.
type BlogStore interface {
	Create(ctx context.Context, params store.NewBlog) (*models.Blog, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Blog, error)
	List(ctx context.Context, page, limit int, q string) ([]models.Blog, int64, error)
	Update(ctx context.Context, id bson.ObjectID, params store.BlogUpdate) (*models.Blog, error)
	Delete(ctx context.Context, id bson.ObjectID) error
}

type BlogController struct {
	blogs     BlogStore
	storage   utils.Storage
	validator *utils.FileValidator
	log       *logrus.Logger
}

func NewBlogController(blogs BlogStore, storage utils.Storage, validator *utils.FileValidator, log *logrus.Logger) *BlogController {
	return &BlogController{blogs: blogs, storage: storage, validator: validator, log: log}
}

// List handles GET /blogs with page, limit and q query parameters.
func (b *BlogController) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		page := utils.ParseIntDefault(c.Query("page"), 1)
		limit := utils.ParseIntDefault(c.Query("limit"), 10)
		page, limit = utils.ClampPageLimit(page, limit)

		blogs, total, err := b.blogs.List(c.Request.Context(), page, limit, c.Query("q"))
		if err != nil {
			_ = c.Error(err)
			return
		}

		pages := (total + int64(limit) - 1) / int64(limit)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"count":   len(blogs),
			"pagination": gin.H{
				"total": total,
				"page":  page,
				"pages": pages,
			},
			"data": blogs,
		})
	}
}

// Get handles GET /blogs/:id.
func (b *BlogController) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		blogID, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			httputil.Error(c, http.StatusBadRequest, "invalid blog id")
			return
		}

		blog, err := b.blogs.FindByID(c.Request.Context(), blogID)
		if err == store.ErrNotFound {
			httputil.Error(c, http.StatusNotFound, "blog not found")
			return
		}
		if err != nil {
			_ = c.Error(err)
			return
		}

		httputil.OK(c, http.StatusOK, blog)
	}
}

// Create handles POST /blogs. Accepts JSON or a multipart form with an
// optional image file; the author is always the authenticated requester.
func (b *BlogController) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			httputil.Error(c, http.StatusUnauthorized, "not authorized")
			return
		}

		var body dto.CreateBlogDTO
		if err := c.ShouldBind(&body); err != nil {
			httputil.BindError(c, err)
			return
		}

		featured, ok := b.saveImage(c)
		if !ok {
			return
		}

		blog, err := b.blogs.Create(c.Request.Context(), store.NewBlog{
			Title:         body.Title,
			Content:       body.Content,
			FeaturedImage: featured,
			AuthorID:      user.ID,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}

		httputil.OK(c, http.StatusCreated, blog)
	}
}

// Update handles PUT /blogs/:id. Ownership was already checked by the
// middleware, which attached the loaded blog.
func (b *BlogController) Update() gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := middleware.CurrentBlog(c)
		if !ok {
			httputil.Error(c, http.StatusNotFound, "blog not found")
			return
		}

		var body dto.UpdateBlogDTO
		if err := c.ShouldBind(&body); err != nil {
			httputil.BindError(c, err)
			return
		}

		update := store.BlogUpdate{
			Title:   body.Title,
			Content: body.Content,
		}
		if featured, ok := b.saveImage(c); !ok {
			return
		} else if featured != "" {
			update.FeaturedImage = &featured
		}

		if update.Title == nil && update.Content == nil && update.FeaturedImage == nil {
			httputil.Error(c, http.StatusBadRequest, "no updates provided")
			return
		}

		blog, err := b.blogs.Update(c.Request.Context(), current.ID, update)
		if err == store.ErrNotFound {
			httputil.Error(c, http.StatusNotFound, "blog not found")
			return
		}
		if err != nil {
			_ = c.Error(err)
			return
		}

		httputil.OK(c, http.StatusOK, blog)
	}
}

// Delete handles DELETE /blogs/:id.
func (b *BlogController) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := middleware.CurrentBlog(c)
		if !ok {
			httputil.Error(c, http.StatusNotFound, "blog not found")
			return
		}

		err := b.blogs.Delete(c.Request.Context(), current.ID)
		if err == store.ErrNotFound {
			httputil.Error(c, http.StatusNotFound, "blog not found")
			return
		}
		if err != nil {
			_ = c.Error(err)
			return
		}

		httputil.OK(c, http.StatusOK, gin.H{})
	}
}

// saveImage validates and stores an optional "image" form file. It returns
// false after writing an error response.
func (b *BlogController) saveImage(c *gin.Context) (string, bool) {
	fh, err := c.FormFile("image")
	if err != nil || fh == nil {
		return "", true
	}

	if _, err := b.validator.ValidateFile(fh); err != nil {
		httputil.Error(c, http.StatusBadRequest, err.Error())
		return "", false
	}

	url, err := b.storage.Save(c.Request.Context(), "blogs", fh)
	if err != nil {
		b.log.WithError(err).Error("blog image upload failed")
		httputil.Error(c, http.StatusInternalServerError, "failed to store image")
		return "", false
	}
	return url, true
}
