package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Circle 朋友圈子，成员通过邀请码加入
type Circle struct {
	ID         string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name       string `gorm:"not null;type:varchar(255)" json:"name"`
	CreatedBy  string `gorm:"index;not null;type:varchar(64)" json:"created_by"`
	InviteCode string `gorm:"uniqueIndex;not null;type:varchar(32)" json:"invite_code"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Circle) TableName() string {
	return "circles"
}

func (c *Circle) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Membership (group_id, user_id) 唯一，重复加入由唯一索引拒绝
type Membership struct {
	ID      string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	GroupID string `gorm:"uniqueIndex:idx_membership_group_user;not null;type:varchar(64)" json:"group_id"`
	UserID  string `gorm:"uniqueIndex:idx_membership_group_user;index;not null;type:varchar(64)" json:"user_id"`

	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (Membership) TableName() string {
	return "circle_members"
}

func (m *Membership) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
