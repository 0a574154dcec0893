package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mohitdev/blogbackend/httputil"
	"github.com/mohitdev/blogbackend/models"
	"github.com/mohitdev/blogbackend/store"
	"github.com/mohitdev/blogbackend/token"
)

const (
	currentUserKey = "currentUser"
	currentBlogKey = "currentBlog"
)

// UserResolver loads a live user record for an authenticated subject.
type UserResolver interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
}

// BlogResolver loads the target blog for ownership checks.
type BlogResolver interface {
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Blog, error)
}

// TokenVerifier matches token.Service.
type TokenVerifier interface {
	VerifyAuthToken(tokenStr string) (*token.Claims, error)
}

// Authenticate gates a route on a valid bearer token that resolves to a live
// user. Every credential failure short-circuits with the same 401.
func Authenticate(tokens TokenVerifier, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			httputil.Error(c, http.StatusUnauthorized, "not authorized, no token provided")
			c.Abort()
			return
		}

		claims, err := tokens.VerifyAuthToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			httputil.Error(c, http.StatusUnauthorized, "not authorized, token failed")
			c.Abort()
			return
		}

		userID, err := bson.ObjectIDFromHex(claims.UserID)
		if err != nil {
			httputil.Error(c, http.StatusUnauthorized, "not authorized, token failed")
			c.Abort()
			return
		}

		// The user may have been deleted after the token was issued. A store
		// failure is not an auth failure and falls through to the error
		// middleware instead.
		user, err := users.FindByID(c.Request.Context(), userID)
		if errors.Is(err, store.ErrNotFound) {
			httputil.Error(c, http.StatusUnauthorized, "not authorized, token failed")
			c.Abort()
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(currentUserKey, user.Public())
		c.Next()
	}
}

// RequireRoles rejects authenticated identities whose role is not in the
// allowed set.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			httputil.Error(c, http.StatusUnauthorized, "not authorized")
			c.Abort()
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		httputil.Error(c, http.StatusForbidden, "you do not have permission to perform this action")
		c.Abort()
	}
}

// BlogOwnership loads the blog named by :id and only lets the author or an
// admin through. The loaded blog is attached to the context so handlers don't
// fetch it twice.
func BlogOwnership(blogs BlogResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			httputil.Error(c, http.StatusUnauthorized, "not authorized")
			c.Abort()
			return
		}

		blogID, err := bson.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			httputil.Error(c, http.StatusBadRequest, "invalid blog id")
			c.Abort()
			return
		}

		blog, err := blogs.FindByID(c.Request.Context(), blogID)
		if errors.Is(err, store.ErrNotFound) {
			httputil.Error(c, http.StatusNotFound, "blog not found")
			c.Abort()
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		if blog.AuthorID != user.ID && user.Role != models.RoleAdmin {
			httputil.Error(c, http.StatusForbidden, "you are not authorized to perform this action")
			c.Abort()
			return
		}

		c.Set(currentBlogKey, blog)
		c.Next()
	}
}

// CurrentUser returns the identity attached by Authenticate.
func CurrentUser(c *gin.Context) (models.PublicUser, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return models.PublicUser{}, false
	}
	user, ok := v.(models.PublicUser)
	return user, ok
}

// CurrentBlog returns the blog attached by BlogOwnership.
func CurrentBlog(c *gin.Context) (*models.Blog, bool) {
	v, ok := c.Get(currentBlogKey)
	if !ok {
		return nil, false
	}
	blog, ok := v.(*models.Blog)
	return blog, ok
}
