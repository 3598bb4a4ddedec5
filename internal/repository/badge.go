package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/store"
)

// IBadgeRepository defines the interface for badge data operations
type IBadgeRepository interface {
	Upsert(ctx context.Context, badge *model.Badge) error
	List(ctx context.Context) ([]*model.Badge, error)
	EarnedBadgeIDs(ctx context.Context, userID string) ([]string, error)
	Award(ctx context.Context, userID, badgeID string) error
}

type BadgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) IBadgeRepository {
	return &BadgeRepository{db: db}
}

// Upsert 按名称插入或更新徽章定义
func (r *BadgeRepository) Upsert(ctx context.Context, badge *model.Badge) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "icon", "criteria_type", "criteria_value"}),
	}).Create(badge).Error
	return store.Translate("badge.upsert", err)
}

func (r *BadgeRepository) List(ctx context.Context) ([]*model.Badge, error) {
	var badges []*model.Badge
	if err := r.db.WithContext(ctx).Order("criteria_type ASC, criteria_value ASC, name ASC").Find(&badges).Error; err != nil {
		return nil, store.Translate("badge.list", err)
	}
	return badges, nil
}

func (r *BadgeRepository) EarnedBadgeIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.UserBadge{}).Where("user_id = ?", userID).Pluck("badge_id", &ids).Error
	if err != nil {
		return nil, store.Translate("badge.earned", err)
	}
	return ids, nil
}

// Award 依赖 (user_id, badge_id) 唯一索引，已获得时返回 AlreadyExists
func (r *BadgeRepository) Award(ctx context.Context, userID, badgeID string) error {
	err := r.db.WithContext(ctx).Create(&model.UserBadge{UserID: userID, BadgeID: badgeID}).Error
	return store.Translate("badge.award", err)
}
