package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/model"
	redis "github.com/Gopher0727/SocialSync/internal/pkg/redis"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/session"
	"github.com/Gopher0727/SocialSync/internal/utils"
	"github.com/Gopher0727/SocialSync/middleware/jwt"
)

// SignUpRequest represents an account registration
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required,max=255"`
}

// SignInRequest represents a credential check
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResult is returned by every call that issues a token.
type AuthResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Session   session.Session `json:"session"`
	Profile   *model.Profile  `json:"profile"`
}

// IAuthService defines the session gate operations
type IAuthService interface {
	SignUp(ctx context.Context, req *SignUpRequest) (*AuthResult, error)
	SignIn(ctx context.Context, req *SignInRequest) (*AuthResult, error)
	SignOut(ctx context.Context, sess session.Session) error
	// Authenticate turns a bearer token into a session, rejecting revoked tokens.
	Authenticate(ctx context.Context, token string) (session.Session, error)
	CurrentUser(ctx context.Context, sess session.Session) (*model.Profile, error)
	Refresh(ctx context.Context, token string) (*AuthResult, error)
}

type AuthService struct {
	repos         *repository.Repositories
	tokenManager  *jwt.TokenManager
	redisClient   redis.RedisClient
	badges        IBadgeService
	refreshWindow time.Duration
	logger        *zap.Logger
}

func NewAuthService(
	repos *repository.Repositories,
	tokenManager *jwt.TokenManager,
	redisClient redis.RedisClient,
	badges IBadgeService,
	refreshHours int,
	logger *zap.Logger,
) IAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		repos:         repos,
		tokenManager:  tokenManager,
		redisClient:   redisClient,
		badges:        badges,
		refreshWindow: time.Duration(refreshHours) * time.Hour,
		logger:        logger,
	}
}

func (s *AuthService) SignUp(ctx context.Context, req *SignUpRequest) (*AuthResult, error) {
	const op = "service.Auth.SignUp"

	email := utils.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if !utils.ValidateEmail(email) {
		return nil, apperr.Validation(op, "a valid email is required")
	}
	if name == "" {
		return nil, apperr.Validation(op, "display name is required")
	}
	if !utils.ValidatePassword(req.Password) {
		return nil, apperr.Validation(op, "password must be 8 to 72 characters")
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	profile := &model.Profile{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
	}
	if err := s.repos.Profiles.Create(ctx, profile); err != nil {
		if apperr.KindOf(err) == apperr.KindAlreadyExists {
			return nil, apperr.E(apperr.KindAlreadyExists, op, "an account with this email already exists", err)
		}
		return nil, err
	}
	return s.issue(profile)
}

func (s *AuthService) SignIn(ctx context.Context, req *SignInRequest) (*AuthResult, error) {
	const op = "service.Auth.SignIn"

	profile, err := s.repos.Profiles.FindByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthenticated(op, "invalid email or password")
		}
		return nil, err
	}
	if !utils.CheckPassword(profile.PasswordHash, req.Password) {
		return nil, apperr.Unauthenticated(op, "invalid email or password")
	}

	result, err := s.issue(profile)
	if err != nil {
		return nil, err
	}

	// 每次登录评估一次徽章，失败不影响登录
	if s.badges != nil {
		if awarded, err := s.badges.Evaluate(ctx, profile.ID); err != nil {
			s.logger.Warn("badge evaluation failed", zap.String("user_id", profile.ID), zap.Error(err))
		} else if len(awarded) > 0 {
			s.logger.Info("badges awarded on sign in", zap.String("user_id", profile.ID), zap.Int("count", len(awarded)))
		}
	}
	return result, nil
}

func (s *AuthService) issue(profile *model.Profile) (*AuthResult, error) {
	token, claims, err := s.tokenManager.GenerateToken(profile.ID, profile.Name, profile.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: claims.ExpiresAtTime(),
		Session:   sessionFromClaims(claims),
		Profile:   profile,
	}, nil
}

func sessionFromClaims(c *jwt.Claims) session.Session {
	return session.Session{
		UserID:    c.UserID,
		Name:      c.UserName,
		Email:     c.UserEmail,
		TokenID:   c.TokenID(),
		ExpiresAt: c.ExpiresAtTime(),
	}
}

// revokeTTL keeps the revocation until the token can no longer be refreshed either.
func (s *AuthService) revokeTTL(expiresAt time.Time) time.Duration {
	return time.Until(expiresAt) + s.refreshWindow
}

// SignOut revokes the session's token id.
func (s *AuthService) SignOut(ctx context.Context, sess session.Session) error {
	const op = "service.Auth.SignOut"
	if err := requireSession(op, sess); err != nil {
		return err
	}
	if err := s.redisClient.RevokeToken(ctx, sess.TokenID, s.revokeTTL(sess.ExpiresAt)); err != nil {
		return apperr.Store(op, err)
	}
	return nil
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (session.Session, error) {
	const op = "service.Auth.Authenticate"

	claims, err := s.tokenManager.ParseToken(token)
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrExpiredToken) {
			msg = "token has expired"
		}
		return session.Session{}, apperr.E(apperr.KindUnauthenticated, op, msg, err)
	}
	revoked, err := s.redisClient.IsTokenRevoked(ctx, claims.TokenID())
	if err != nil {
		return session.Session{}, apperr.Store(op, err)
	}
	if revoked {
		return session.Session{}, apperr.Unauthenticated(op, "session has been signed out")
	}
	return sessionFromClaims(claims), nil
}

func (s *AuthService) CurrentUser(ctx context.Context, sess session.Session) (*model.Profile, error) {
	const op = "service.Auth.CurrentUser"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	profile, err := s.repos.Profiles.FindByID(ctx, sess.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthenticated(op, "account no longer exists")
		}
		return nil, err
	}
	return profile, nil
}

// Refresh reissues a token inside the refresh window and revokes the old one.
func (s *AuthService) Refresh(ctx context.Context, token string) (*AuthResult, error) {
	const op = "service.Auth.Refresh"

	fresh, claims, old, err := s.tokenManager.RefreshToken(token)
	if err != nil {
		return nil, apperr.E(apperr.KindUnauthenticated, op, err.Error(), err)
	}
	revoked, err := s.redisClient.IsTokenRevoked(ctx, old.TokenID())
	if err != nil {
		return nil, apperr.Store(op, err)
	}
	if revoked {
		return nil, apperr.Unauthenticated(op, "session has been signed out")
	}
	profile, err := s.repos.Profiles.FindByID(ctx, old.UserID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthenticated(op, "account no longer exists")
		}
		return nil, err
	}
	if err := s.redisClient.RevokeToken(ctx, old.TokenID(), s.revokeTTL(old.ExpiresAtTime())); err != nil {
		return nil, apperr.Store(op, err)
	}
	return &AuthResult{
		Token:     fresh,
		ExpiresAt: claims.ExpiresAtTime(),
		Session:   sessionFromClaims(claims),
		Profile:   profile,
	}, nil
}
