package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/store"
)

// IProfileRepository defines the interface for profile data operations
type IProfileRepository interface {
	Create(ctx context.Context, profile *model.Profile) error
	FindByID(ctx context.Context, id string) (*model.Profile, error)
	FindByEmail(ctx context.Context, email string) (*model.Profile, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Profile, error)
	Update(ctx context.Context, id string, fields map[string]any) error
}

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) IProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, profile *model.Profile) error {
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	return store.Translate("profile.create", r.db.WithContext(ctx).Create(profile).Error)
}

func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, store.Translate("profile.find", err)
	}
	return &profile, nil
}

// FindByEmail 大小写不敏感的精确匹配
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&profile).Error
	if err != nil {
		return nil, store.Translate("profile.find_by_email", err)
	}
	return &profile, nil
}

func (r *ProfileRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Profile, error) {
	var profiles []*model.Profile
	if len(ids) == 0 {
		return profiles, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, store.Translate("profile.find_many", err)
	}
	return profiles, nil
}

func (r *ProfileRepository) Update(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return store.Translate("profile.update", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.Translate("profile.update", gorm.ErrRecordNotFound)
	}
	return nil
}
