package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Comment struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	MeetingID string `gorm:"index;not null;type:varchar(64)" json:"meeting_id"`
	UserID    string `gorm:"not null;type:varchar(64)" json:"user_id"`
	Content   string `gorm:"not null;type:text" json:"content"`

	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

func (Comment) TableName() string {
	return "comments"
}

func (c *Comment) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Reaction 每个 (meeting, user, emoji) 至多一行，重复点击即取消
type Reaction struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	MeetingID string `gorm:"uniqueIndex:idx_reaction_meeting_user_emoji;not null;type:varchar(64)" json:"meeting_id"`
	UserID    string `gorm:"uniqueIndex:idx_reaction_meeting_user_emoji;not null;type:varchar(64)" json:"user_id"`
	Emoji     string `gorm:"uniqueIndex:idx_reaction_meeting_user_emoji;not null;type:varchar(32)" json:"emoji"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Reaction) TableName() string {
	return "reactions"
}

func (r *Reaction) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
