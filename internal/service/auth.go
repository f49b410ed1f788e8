package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/eshelf/loan-portal/internal/errs"
	"github.com/eshelf/loan-portal/pkg/auth"
)

type AuthService struct {
	cfg    auth.Config
	tokens *auth.Manager
	log    *zap.Logger
}

func NewAuthService(cfg auth.Config, tokens *auth.Manager, log *zap.Logger) *AuthService {
	return &AuthService{
		cfg:    cfg,
		tokens: tokens,
		log:    log.Named("auth"),
	}
}

// Login checks the configured admin credential and mints a session token.
func (s *AuthService) Login(_ context.Context, username, password string) (string, time.Time, error) {
	if username != s.cfg.AdminUsername {
		return "", time.Time{}, errs.ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, errs.ErrBadCredentials
	}

	token, expiresAt, err := s.tokens.MintAdminToken(username, s.cfg.AdminSessionTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	s.log.Info("admin login", zap.String("username", username))
	return token, expiresAt, nil
}
