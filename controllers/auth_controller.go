package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mohitdev/blogbackend/dto"
	"github.com/mohitdev/blogbackend/httputil"
	"github.com/mohitdev/blogbackend/mailer"
	"github.com/mohitdev/blogbackend/middleware"
	"github.com/mohitdev/blogbackend/models"
	"github.com/mohitdev/blogbackend/store"
	"github.com/mohitdev/blogbackend/token"
	"github.com/mohitdev/blogbackend/utils"
)

// UserStore is the slice of store.UserStore the auth flows need.
type UserStore interface {
	Create(ctx context.Context, params store.NewUser) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetPassword(ctx context.Context, id bson.ObjectID, plaintext string) error
	SetResetToken(ctx context.Context, id bson.ObjectID, tokenHash string, expiry time.Time) error
	ClearResetToken(ctx context.Context, id bson.ObjectID) error
	ConsumeResetToken(ctx context.Context, tokenHash, newPassword string) (*models.User, error)
}

type TokenService interface {
	IssueAuthToken(user *models.User) (string, error)
	IssueResetToken() (plaintext, hash string, expiry time.Time, err error)
	ResetTokenTTL() time.Duration
}

type AuthController struct {
	users       UserStore
	tokens      TokenService
	mail        mailer.Mailer
	storage     utils.Storage
	validator   *utils.FileValidator
	frontendURL string
	log         *logrus.Logger
}

func NewAuthController(
	users UserStore,
	tokens TokenService,
	mail mailer.Mailer,
	storage utils.Storage,
	validator *utils.FileValidator,
	frontendURL string,
	log *logrus.Logger,
) *AuthController {
	return &AuthController{
		users:       users,
		tokens:      tokens,
		mail:        mail,
		storage:     storage,
		validator:   validator,
		frontendURL: frontendURL,
		log:         log,
	}
}

// Register handles POST /auth/register. Accepts JSON or a multipart form with
// an optional profilePic file.
func (a *AuthController) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.RegisterDTO
		if err := c.ShouldBind(&body); err != nil {
			httputil.BindError(c, err)
			return
		}

		profilePic := ""
		if fh, err := c.FormFile("profilePic"); err == nil && fh != nil {
			if _, err := a.validator.ValidateFile(fh); err != nil {
				httputil.Error(c, http.StatusBadRequest, err.Error())
				return
			}
			url, err := a.storage.Save(c.Request.Context(), "avatars", fh)
			if err != nil {
				a.log.WithError(err).Error("profile picture upload failed")
				httputil.Error(c, http.StatusInternalServerError, "failed to store profile picture")
				return
			}
			profilePic = url
		}

		user, err := a.users.Create(c.Request.Context(), store.NewUser{
			FirstName:  body.FirstName,
			LastName:   body.LastName,
			Email:      body.Email,
			Password:   body.Password,
			ProfilePic: profilePic,
		})
		if err != nil {
			// The upload happened before the insert; don't leave it orphaned.
			if profilePic != "" {
				if rmErr := a.storage.Remove(c.Request.Context(), profilePic); rmErr != nil {
					a.log.WithError(rmErr).Warn("failed to remove orphaned profile picture")
				}
			}
			switch err {
			case store.ErrDuplicateEmail:
				httputil.Error(c, http.StatusBadRequest, "user already exists")
			case store.ErrInvalidEmail:
				httputil.Error(c, http.StatusBadRequest, "please provide a valid email address")
			default:
				_ = c.Error(err)
			}
			return
		}

		tok, err := a.tokens.IssueAuthToken(user)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, httputil.Response{
			Success: true,
			Data:    user.Public(),
			Token:   tok,
		})
	}
}

// Login handles POST /auth/login. Unknown email and wrong password are
// indistinguishable to the caller.
func (a *AuthController) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.LoginDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			httputil.BindError(c, err)
			return
		}

		user, err := a.users.FindByEmail(c.Request.Context(), body.Email)
		if err == store.ErrNotFound {
			httputil.Error(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			_ = c.Error(err)
			return
		}

		if err := utils.CheckPassword(user.Password, body.Password); err != nil {
			httputil.Error(c, http.StatusUnauthorized, "invalid credentials")
			return
		}

		tok, err := a.tokens.IssueAuthToken(user)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, httputil.Response{
			Success: true,
			Data:    user.Public(),
			Token:   tok,
		})
	}
}

// Me handles GET /auth/me.
func (a *AuthController) Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			httputil.Error(c, http.StatusUnauthorized, "not authorized")
			return
		}
		httputil.OK(c, http.StatusOK, user)
	}
}

const forgotPasswordMessage = "if an account with that email exists, a password reset link has been sent"

// ForgotPassword handles POST /auth/forgot-password. The response body is the
// same whether or not the account exists, so the endpoint cannot be used to
// enumerate accounts. Only email dispatch failure is surfaced.
func (a *AuthController) ForgotPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ForgotPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			httputil.BindError(c, err)
			return
		}

		ctx := c.Request.Context()
		user, err := a.users.FindByEmail(ctx, body.Email)
		if err == store.ErrNotFound {
			httputil.OKMessage(c, http.StatusOK, forgotPasswordMessage)
			return
		}
		if err != nil {
			_ = c.Error(err)
			return
		}

		plaintext, hash, expiry, err := a.tokens.IssueResetToken()
		if err != nil {
			_ = c.Error(err)
			return
		}

		if err := a.users.SetResetToken(ctx, user.ID, hash, expiry); err != nil {
			_ = c.Error(err)
			return
		}

		resetURL := fmt.Sprintf("%s/reset-password/%s", a.frontendURL, plaintext)
		if err := a.mail.SendPasswordResetEmail(ctx, user.Email, user.FullName(), resetURL, a.tokens.ResetTokenTTL()); err != nil {
			// Roll back the stored token so the request can be retried.
			if clearErr := a.users.ClearResetToken(ctx, user.ID); clearErr != nil {
				a.log.WithError(clearErr).Error("failed to roll back reset token")
			}
			httputil.Error(c, http.StatusInternalServerError, "failed to send password reset email")
			return
		}

		httputil.OKMessage(c, http.StatusOK, forgotPasswordMessage)
	}
}

// ResetPassword handles PUT /auth/reset-password for an authenticated user
// changing their own password.
func (a *AuthController) ResetPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ResetPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			httputil.BindError(c, err)
			return
		}
		if body.ConfirmNewPassword != "" && body.NewPassword != body.ConfirmNewPassword {
			httputil.Error(c, http.StatusBadRequest, "new password and confirm password do not match")
			return
		}

		user, ok := middleware.CurrentUser(c)
		if !ok {
			httputil.Error(c, http.StatusUnauthorized, "not authorized")
			return
		}

		if err := a.users.SetPassword(c.Request.Context(), user.ID, body.NewPassword); err != nil {
			_ = c.Error(err)
			return
		}

		httputil.OKMessage(c, http.StatusOK, "password updated successfully")
	}
}

// ResetPasswordWithToken handles POST /auth/reset-password/:token. The token
// is consumed atomically; failure does not reveal whether it was unknown,
// already used, or expired.
func (a *AuthController) ResetPasswordWithToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.ResetPasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			httputil.BindError(c, err)
			return
		}
		if body.ConfirmNewPassword != "" && body.NewPassword != body.ConfirmNewPassword {
			httputil.Error(c, http.StatusBadRequest, "new password and confirm password do not match")
			return
		}

		hash := token.HashResetToken(c.Param("token"))
		_, err := a.users.ConsumeResetToken(c.Request.Context(), hash, body.NewPassword)
		if err == store.ErrInvalidResetToken {
			httputil.Error(c, http.StatusBadRequest, "token is invalid or has expired")
			return
		}
		if err != nil {
			_ = c.Error(err)
			return
		}

		httputil.OKMessage(c, http.StatusOK, "password has been reset successfully")
	}
}
