package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"bookingpay/internal/models"
	"bookingpay/internal/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginDisabled      = errors.New("admin login is not configured")
)

type Config struct {
	AdminEmail        string
	AdminPasswordHash string
	JWTSecret         string
	TokenTTL          time.Duration
}

// Token is an issued admin access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type Service interface {
	Login(ctx context.Context, email, password string) (*Token, error)
	ParseToken(token string) (*models.AdminClaims, error)
}

type service struct {
	cfg Config
	log *zap.Logger
}

func NewService(cfg Config, log *zap.Logger) Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	return &service{
		cfg: cfg,
		log: log.With(zap.String("service", "auth")),
	}
}

func (s *service) Login(ctx context.Context, email, password string) (*Token, error) {
	if s.cfg.AdminPasswordHash == "" {
		s.log.Warn("login attempt while no admin password hash is set")
		return nil, ErrLoginDisabled
	}

	if !strings.EqualFold(strings.TrimSpace(email), s.cfg.AdminEmail) {
		s.log.Info("login failed: unknown identifier", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err != nil {
		s.log.Info("login failed: incorrect password", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}

	accessToken, expiresAt, err := utils.GenerateToken(&models.AdminClaims{
		Email:       s.cfg.AdminEmail,
		Role:        models.RoleAdmin,
		Permissions: models.GetDefaultPermissions(models.RoleAdmin),
	}, s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		s.log.Error("error generating token", zap.Error(err))
		return nil, errors.New("error generating token")
	}

	return &Token{AccessToken: accessToken, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

func (s *service) ParseToken(token string) (*models.AdminClaims, error) {
	return utils.ParseToken(token, s.cfg.JWTSecret)
}

// HashPassword returns the bcrypt hash stored in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
