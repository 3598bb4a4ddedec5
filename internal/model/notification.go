package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NotificationComment  = "comment"
	NotificationReaction = "reaction"
	NotificationBadge    = "badge"
	NotificationMeeting  = "meeting"
)

type Notification struct {
	ID      string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	UserID  string `gorm:"index:idx_notification_user_created;not null;type:varchar(64)" json:"user_id"`
	Type    string `gorm:"not null;type:varchar(16)" json:"type"`
	Title   string `gorm:"not null;type:varchar(255)" json:"title"`
	Content string `gorm:"type:text" json:"content"`
	Link    string `gorm:"type:varchar(255)" json:"link"`
	// Payload 结构化附加信息，例如 meeting_id、badge_id
	Payload datatypes.JSONMap `json:"payload,omitempty"`
	IsRead  bool              `gorm:"not null;default:false" json:"is_read"`

	CreatedAt time.Time `gorm:"index:idx_notification_user_created;not null" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// All 返回需要迁移的全部模型
func All() []any {
	return []any{
		&Profile{}, &Circle{}, &Membership{},
		&Meeting{}, &Participant{}, &MeetingMedia{},
		&Comment{}, &Reaction{},
		&Badge{}, &UserBadge{},
		&Notification{},
	}
}
