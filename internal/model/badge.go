package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CriteriaMeetingCount     = "meeting_count"
	CriteriaParticipantCount = "participant_count"
	CriteriaStreak           = "streak"
)

type Badge struct {
	ID            string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name          string `gorm:"uniqueIndex;not null;type:varchar(128)" json:"name"`
	Description   string `gorm:"type:varchar(512)" json:"description"`
	Icon          string `gorm:"type:varchar(64)" json:"icon"`
	CriteriaType  string `gorm:"not null;type:varchar(32)" json:"criteria_type"`
	CriteriaValue int    `gorm:"not null" json:"criteria_value"`
}

func (Badge) TableName() string {
	return "badges"
}

func (b *Badge) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// UserBadge 每个 (user, badge) 至多授予一次
type UserBadge struct {
	ID      string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID  string `gorm:"uniqueIndex:idx_user_badge;not null;type:varchar(64)" json:"user_id"`
	BadgeID string `gorm:"uniqueIndex:idx_user_badge;not null;type:varchar(64)" json:"badge_id"`

	EarnedAt time.Time `gorm:"autoCreateTime" json:"earned_at"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}

func (ub *UserBadge) BeforeCreate(*gorm.DB) error {
	if ub.ID == "" {
		ub.ID = uuid.NewString()
	}
	return nil
}
