package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mohitdev/blogbackend/config"
	"github.com/mohitdev/blogbackend/models"
)

// ErrInvalidToken covers every verification failure: malformed, expired, or
// tampered tokens all look the same to callers.
var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies bearer tokens and generates single-use password
// reset tokens. The signing secret is fixed at construction.
type Service struct {
	secret   []byte
	authTTL  time.Duration
	resetTTL time.Duration
}

func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		secret:   []byte(cfg.JWTSecret),
		authTTL:  cfg.AuthTokenTTL,
		resetTTL: cfg.ResetTokenTTL,
	}
}

func (s *Service) IssueAuthToken(user *models.User) (string, error) {
	claims := Claims{
		UserID: user.ID.Hex(),
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.authTTL)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

func (s *Service) VerifyAuthToken(tokenStr string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueResetToken generates a random reset token. The plaintext is only ever
// sent to the user; the hash is the only form that gets persisted.
func (s *Service) IssueResetToken() (plaintext, hash string, expiry time.Time, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", time.Time{}, fmt.Errorf("generate reset token: %w", err)
	}
	plaintext = hex.EncodeToString(buf)
	hash = HashResetToken(plaintext)
	expiry = time.Now().UTC().Add(s.resetTTL)
	return plaintext, hash, expiry, nil
}

// HashResetToken maps a reset token plaintext to its stored lookup key.
func HashResetToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// ResetTokenTTL reports the configured reset window, used for the email copy.
func (s *Service) ResetTokenTTL() time.Duration {
	return s.resetTTL
}
