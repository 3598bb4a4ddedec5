package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/session"
)

// UpdateProfileRequest 为 nil 的字段保持不变
type UpdateProfileRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=255"`
	Phone        *string `json:"phone" binding:"omitempty,max=64"`
	FavoriteSpot *string `json:"favorite_spot" binding:"omitempty,max=255"`
	Bio          *string `json:"bio" binding:"omitempty,max=2000"`
}

// IProfileService defines the profile editor operations
type IProfileService interface {
	Get(ctx context.Context, sess session.Session, userID string) (*model.Profile, error)
	Update(ctx context.Context, sess session.Session, req *UpdateProfileRequest) (*model.Profile, error)
	UploadAvatar(ctx context.Context, sess session.Session, up Upload) (*model.Profile, error)
}

type ProfileService struct {
	repos    *repository.Repositories
	uploader *Uploader
	logger   *zap.Logger
}

func NewProfileService(repos *repository.Repositories, uploader *Uploader, logger *zap.Logger) IProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repos: repos, uploader: uploader, logger: logger}
}

func (s *ProfileService) Get(ctx context.Context, sess session.Session, userID string) (*model.Profile, error) {
	const op = "service.Profile.Get"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	if userID == "" {
		userID = sess.UserID
	}
	profile, err := s.repos.Profiles.FindByID(ctx, userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound(op, "profile not found")
		}
		return nil, err
	}
	return profile, nil
}

func (s *ProfileService) Update(ctx context.Context, sess session.Session, req *UpdateProfileRequest) (*model.Profile, error) {
	const op = "service.Profile.Update"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.Validation(op, "display name cannot be empty")
		}
		fields["name"] = name
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.FavoriteSpot != nil {
		fields["favorite_spot"] = strings.TrimSpace(*req.FavoriteSpot)
	}
	if req.Bio != nil {
		fields["bio"] = strings.TrimSpace(*req.Bio)
	}
	if len(fields) > 0 {
		if err := s.repos.Profiles.Update(ctx, sess.UserID, fields); err != nil {
			return nil, err
		}
	}
	return s.repos.Profiles.FindByID(ctx, sess.UserID)
}

// UploadAvatar 压缩后覆盖 avatars/<userID>，再写回 avatar_url
func (s *ProfileService) UploadAvatar(ctx context.Context, sess session.Session, up Upload) (*model.Profile, error) {
	const op = "service.Profile.UploadAvatar"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	obj, err := s.uploader.PutAvatar(ctx, sess.UserID, up)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Profiles.Update(ctx, sess.UserID, map[string]any{"avatar_url": obj.URL}); err != nil {
		return nil, err
	}
	s.logger.Info("avatar updated", zap.String("user_id", sess.UserID), zap.String("path", obj.Path))
	return s.repos.Profiles.FindByID(ctx, sess.UserID)
}
