package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mohitdev/blogbackend/config"
	"github.com/mohitdev/blogbackend/mailer"
	"github.com/mohitdev/blogbackend/middleware"
	"github.com/mohitdev/blogbackend/models"
	"github.com/mohitdev/blogbackend/store"
	"github.com/mohitdev/blogbackend/token"
	"github.com/mohitdev/blogbackend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeUserStore mimics the Mongo-backed store, including the atomic reset
// token consumption semantics.
type fakeUserStore struct {
	byID    map[bson.ObjectID]*models.User
	byEmail map[string]*models.User

	clearCalled bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byID:    map[bson.ObjectID]*models.User{},
		byEmail: map[string]*models.User{},
	}
}

func (f *fakeUserStore) Create(_ context.Context, params store.NewUser) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if _, exists := f.byEmail[email]; exists {
		return nil, store.ErrDuplicateEmail
	}

	hash, err := utils.HashPassword(params.Password)
	if err != nil {
		return nil, err
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
		FirstName:  params.FirstName,
		LastName:   params.LastName,
		Email:      email,
		Password:   hash,
		ProfilePic: profilePic,
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.byID[user.ID] = user
	f.byEmail[email] = user
	return user, nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := f.byEmail[strings.ToLower(strings.TrimSpace(email))]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) FindByID(_ context.Context, id bson.ObjectID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeUserStore) SetPassword(_ context.Context, id bson.ObjectID, plaintext string) error {
	u, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	hash, err := utils.HashPassword(plaintext)
	if err != nil {
		return err
	}
	u.Password = hash
	return nil
}

func (f *fakeUserStore) SetResetToken(_ context.Context, id bson.ObjectID, tokenHash string, expiry time.Time) error {
	u, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ResetPasswordToken = tokenHash
	u.ResetPasswordExpiry = &expiry
	return nil
}

func (f *fakeUserStore) ClearResetToken(_ context.Context, id bson.ObjectID) error {
	f.clearCalled = true
	u, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ResetPasswordToken = ""
	u.ResetPasswordExpiry = nil
	return nil
}

func (f *fakeUserStore) ConsumeResetToken(_ context.Context, tokenHash, newPassword string) (*models.User, error) {
	now := time.Now().UTC()
	for _, u := range f.byID {
		if u.ResetPasswordToken == tokenHash && u.ResetPasswordExpiry != nil && u.ResetPasswordExpiry.After(now) {
			hash, err := utils.HashPassword(newPassword)
			if err != nil {
				return nil, err
			}
			u.Password = hash
			u.ResetPasswordToken = ""
			u.ResetPasswordExpiry = nil
			return u, nil
		}
	}
	return nil, store.ErrInvalidResetToken
}

// recordingMailer captures the reset URL and can be made to fail.
type recordingMailer struct {
	err     error
	sent    int
	lastURL string
}

func (m *recordingMailer) SendPasswordResetEmail(_ context.Context, _, _, resetURL string, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.sent++
	m.lastURL = resetURL
	return nil
}

type nullStorage struct{}

func (nullStorage) Save(context.Context, string, *multipart.FileHeader) (string, error) {
	return "/uploads/test.png", nil
}

func (nullStorage) Remove(context.Context, string) error { return nil }

// recordingStorage tracks what was saved and removed.
type recordingStorage struct {
	saved   []string
	removed []string
}

func (s *recordingStorage) Save(_ context.Context, prefix string, fh *multipart.FileHeader) (string, error) {
	url := "/uploads/" + prefix + "/" + fh.Filename
	s.saved = append(s.saved, url)
	return url, nil
}

func (s *recordingStorage) Remove(_ context.Context, url string) error {
	s.removed = append(s.removed, url)
	return nil
}

type authEnv struct {
	users  *fakeUserStore
	tokens *token.Service
	mail   *recordingMailer
	router *gin.Engine
}

func newAuthEnv(t *testing.T, mail mailer.Mailer) *authEnv {
	t.Helper()

	users := newFakeUserStore()
	tokens := token.NewService(config.AuthConfig{
		JWTSecret:     "test-secret",
		AuthTokenTTL:  time.Hour,
		ResetTokenTTL: 15 * time.Minute,
	})

	rm, _ := mail.(*recordingMailer)
	validator := utils.NewImageValidator(config.UploadsConfig{MaxSizeMB: 5})
	auth := NewAuthController(users, tokens, mail, nullStorage{}, validator, "http://frontend", quietLogger())

	r := gin.New()
	authenticate := middleware.Authenticate(tokens, users)
	r.POST("/auth/register", auth.Register())
	r.POST("/auth/login", auth.Login())
	r.POST("/auth/forgot-password", auth.ForgotPassword())
	r.POST("/auth/reset-password/:token", auth.ResetPasswordWithToken())
	r.GET("/auth/me", authenticate, auth.Me())
	r.PUT("/auth/reset-password", authenticate, auth.ResetPassword())

	return &authEnv{users: users, tokens: tokens, mail: rm, router: r}
}

func (e *authEnv) do(method, path string, body any, bearer string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func registerBody() gin.H {
	return gin.H{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "a@x.com",
		"password":  "secret1",
	}
}

func TestRegister(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{})

	w := env.do("POST", "/auth/register", registerBody(), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Email      string `json:"email"`
			ProfilePic string `json:"profilePic"`
		} `json:"data"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "a@x.com", resp.Data.Email)
	assert.Contains(t, resp.Data.ProfilePic, "ui-avatars.com")
	assert.NotEmpty(t, resp.Token)
	assert.NotContains(t, w.Body.String(), "secret1")

	// The stored password is a hash, never the plaintext.
	user := env.users.byEmail["a@x.com"]
	require.NotNil(t, user)
	assert.NotEqual(t, "secret1", user.Password)
	assert.NoError(t, utils.CheckPassword(user.Password, "secret1"))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{})

	require.Equal(t, http.StatusCreated, env.do("POST", "/auth/register", registerBody(), "").Code)
	w := env.do("POST", "/auth/register", registerBody(), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")
}

func multipartRegisterRequest(t *testing.T, withPic bool) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"firstName": "Ada",
		"lastName":  "Lovelace",
		"email":     "a@x.com",
		"password":  "secret1",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withPic {
		fw, err := mw.CreateFormFile("profilePic", "me.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n" + strings.Repeat("x", 64)))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/auth/register", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestRegisterWithProfilePicture(t *testing.T) {
	users := newFakeUserStore()
	tokens := token.NewService(config.AuthConfig{JWTSecret: "test-secret", AuthTokenTTL: time.Hour})
	storage := &recordingStorage{}
	validator := utils.NewImageValidator(config.UploadsConfig{MaxSizeMB: 5})
	auth := NewAuthController(users, tokens, &recordingMailer{}, storage, validator, "http://frontend", quietLogger())

	r := gin.New()
	r.POST("/auth/register", auth.Register())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRegisterRequest(t, true))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, storage.saved, 1)
	assert.Empty(t, storage.removed)
	assert.Equal(t, storage.saved[0], users.byEmail["a@x.com"].ProfilePic)
}

func TestRegisterDuplicateEmailRemovesUploadedPicture(t *testing.T) {
	users := newFakeUserStore()
	tokens := token.NewService(config.AuthConfig{JWTSecret: "test-secret", AuthTokenTTL: time.Hour})
	storage := &recordingStorage{}
	validator := utils.NewImageValidator(config.UploadsConfig{MaxSizeMB: 5})
	auth := NewAuthController(users, tokens, &recordingMailer{}, storage, validator, "http://frontend", quietLogger())

	r := gin.New()
	r.POST("/auth/register", auth.Register())

	_, err := users.Create(context.Background(), store.NewUser{
		FirstName: "Ada", LastName: "Lovelace", Email: "a@x.com", Password: "secret1",
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRegisterRequest(t, true))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, storage.saved, 1)
	assert.Equal(t, storage.saved, storage.removed)
}

func TestRegisterValidation(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{})

	w := env.do("POST", "/auth/register", gin.H{"email": "not-an-email", "password": "123"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Errors, "firstName")
	assert.Contains(t, resp.Errors, "email")
	assert.Contains(t, resp.Errors, "password")
}

func TestLoginFlow(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{})
	require.Equal(t, http.StatusCreated, env.do("POST", "/auth/register", registerBody(), "").Code)

	w := env.do("POST", "/auth/login", gin.H{"email": "a@x.com", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
		Data  struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	// The token resolves back to the same identity.
	me := env.do("GET", "/auth/me", nil, resp.Token)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), resp.Data.ID)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{})
	require.Equal(t, http.StatusCreated, env.do("POST", "/auth/register", registerBody(), "").Code)

	wrongPass := env.do("POST", "/auth/login", gin.H{"email": "a@x.com", "password": "wrong"}, "")
	unknown := env.do("POST", "/auth/login", gin.H{"email": "nobody@x.com", "password": "secret1"}, "")

	// Unknown email and wrong password must be indistinguishable.
	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, wrongPass.Body.String(), unknown.Body.String())
}

func TestMeRequiresAuth(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{})
	assert.Equal(t, http.StatusUnauthorized, env.do("GET", "/auth/me", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do("GET", "/auth/me", nil, "garbage").Code)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{})
	require.Equal(t, http.StatusCreated, env.do("POST", "/auth/register", registerBody(), "").Code)

	known := env.do("POST", "/auth/forgot-password", gin.H{"email": "a@x.com"}, "")
	unknown := env.do("POST", "/auth/forgot-password", gin.H{"email": "nobody@x.com"}, "")

	// Same success shape either way: no account enumeration.
	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())

	// But only the real account got an email.
	assert.Equal(t, 1, env.mail.sent)
}

func TestForgotPasswordMailFailureRollsBack(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{err: errors.New("smtp down")})
	require.Equal(t, http.StatusCreated, env.do("POST", "/auth/register", registerBody(), "").Code)

	w := env.do("POST", "/auth/forgot-password", gin.H{"email": "a@x.com"}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, env.users.clearCalled)

	user := env.users.byEmail["a@x.com"]
	assert.Empty(t, user.ResetPasswordToken)
	assert.Nil(t, user.ResetPasswordExpiry)
}

func TestResetPasswordWithToken(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{})
	require.Equal(t, http.StatusCreated, env.do("POST", "/auth/register", registerBody(), "").Code)
	require.Equal(t, http.StatusOK, env.do("POST", "/auth/forgot-password", gin.H{"email": "a@x.com"}, "").Code)

	// The plaintext token only travels inside the emailed URL.
	require.NotEmpty(t, env.mail.lastURL)
	parts := strings.Split(env.mail.lastURL, "/reset-password/")
	require.Len(t, parts, 2)
	plaintext := parts[1]

	user := env.users.byEmail["a@x.com"]
	assert.Equal(t, token.HashResetToken(plaintext), user.ResetPasswordToken)
	assert.NotEqual(t, plaintext, user.ResetPasswordToken)

	w := env.do("POST", "/auth/reset-password/"+plaintext, gin.H{"newPassword": "newsecret"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The new password works, the old one does not.
	assert.Equal(t, http.StatusOK, env.do("POST", "/auth/login", gin.H{"email": "a@x.com", "password": "newsecret"}, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.do("POST", "/auth/login", gin.H{"email": "a@x.com", "password": "secret1"}, "").Code)

	// A consumed token cannot be used again.
	again := env.do("POST", "/auth/reset-password/"+plaintext, gin.H{"newPassword": "another1"}, "")
	assert.Equal(t, http.StatusBadRequest, again.Code)
	assert.Contains(t, again.Body.String(), "invalid or has expired")
}

func TestResetPasswordWithExpiredToken(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{})
	require.Equal(t, http.StatusCreated, env.do("POST", "/auth/register", registerBody(), "").Code)

	user := env.users.byEmail["a@x.com"]
	plaintext, hash, _, err := env.tokens.IssueResetToken()
	require.NoError(t, err)
	expired := time.Now().UTC().Add(-time.Minute)
	user.ResetPasswordToken = hash
	user.ResetPasswordExpiry = &expired

	w := env.do("POST", "/auth/reset-password/"+plaintext, gin.H{"newPassword": "newsecret"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetPasswordAuthenticated(t *testing.T) {
	env := newAuthEnv(t, &recordingMailer{})
	require.Equal(t, http.StatusCreated, env.do("POST", "/auth/register", registerBody(), "").Code)

	login := env.do("POST", "/auth/login", gin.H{"email": "a@x.com", "password": "secret1"}, "")
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &resp))

	// Confirmation mismatch.
	w := env.do("PUT", "/auth/reset-password", gin.H{"newPassword": "newsecret", "confirmNewPassword": "different"}, resp.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Too short.
	w = env.do("PUT", "/auth/reset-password", gin.H{"newPassword": "abc"}, resp.Token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Success.
	w = env.do("PUT", "/auth/reset-password", gin.H{"newPassword": "newsecret", "confirmNewPassword": "newsecret"}, resp.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, env.do("POST", "/auth/login", gin.H{"email": "a@x.com", "password": "newsecret"}, "").Code)
}
