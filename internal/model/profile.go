package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile 用户资料，与认证身份一一对应
type Profile struct {
	ID           string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name         string `gorm:"not null;type:varchar(255)" json:"name"`
	Email        string `gorm:"uniqueIndex;not null;type:varchar(255)" json:"email"`
	PasswordHash string `gorm:"not null;type:varchar(255)" json:"-"`
	Phone        string `gorm:"type:varchar(64)" json:"phone"`
	FavoriteSpot string `gorm:"type:varchar(255)" json:"favorite_spot"`
	Bio          string `gorm:"type:text" json:"bio"`
	AvatarURL    string `gorm:"type:varchar(1024)" json:"avatar_url"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
