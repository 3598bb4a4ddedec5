package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// Meeting 一次线下聚会（memory）。Date 为 YYYY-MM-DD，年份筛选按前缀匹配。
type Meeting struct {
	ID        string   `gorm:"primaryKey;type:varchar(64)" json:"id"`
	GroupID   string   `gorm:"index;not null;type:varchar(64)" json:"group_id"`
	CreatedBy string   `gorm:"index;not null;type:varchar(64)" json:"created_by"`
	Title     string   `gorm:"not null;type:varchar(255)" json:"title"`
	Date      string   `gorm:"index;not null;type:varchar(10)" json:"date"`
	Location  string   `gorm:"type:varchar(512)" json:"location"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	// MediaURL 第一张保留的附件，兼容只展示单图的旧客户端
	MediaURL string `gorm:"type:varchar(1024)" json:"media_url"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Meeting) TableName() string {
	return "meetings"
}

func (m *Meeting) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

type Participant struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	MeetingID string `gorm:"uniqueIndex:idx_participant_meeting_user;not null;type:varchar(64)" json:"meeting_id"`
	UserID    string `gorm:"uniqueIndex:idx_participant_meeting_user;index;not null;type:varchar(64)" json:"user_id"`
}

func (Participant) TableName() string {
	return "meeting_participants"
}

func (p *Participant) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type MeetingMedia struct {
	ID        string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	MeetingID string `gorm:"index;not null;type:varchar(64)" json:"meeting_id"`
	MediaURL  string `gorm:"not null;type:varchar(1024)" json:"media_url"`
	MediaType string `gorm:"not null;type:varchar(16)" json:"media_type"`
	// ObjectPath 对象存储中的路径，删除附件时使用
	ObjectPath string `gorm:"type:varchar(512)" json:"-"`
	UploadedBy string `gorm:"not null;type:varchar(64)" json:"uploaded_by"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (MeetingMedia) TableName() string {
	return "meeting_media"
}

func (m *MeetingMedia) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
