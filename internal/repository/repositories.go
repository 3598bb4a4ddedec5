package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories 聚合所有仓储；Transaction 内的回调拿到绑定同一事务的仓储
type Repositories struct {
	db *gorm.DB

	Profiles      IProfileRepository
	Circles       ICircleRepository
	Meetings      IMeetingRepository
	Engagement    IEngagementRepository
	Badges        IBadgeRepository
	Notifications INotificationRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:            db,
		Profiles:      NewProfileRepository(db),
		Circles:       NewCircleRepository(db),
		Meetings:      NewMeetingRepository(db),
		Engagement:    NewEngagementRepository(db),
		Badges:        NewBadgeRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}

// Transaction runs fn atomically. Returning an error from fn rolls everything back.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}
