package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/store"
)

// MeetingSummary is a meeting joined with the name of its circle.
type MeetingSummary struct {
	model.Meeting
	CircleName string `json:"circle_name"`
}

// IMeetingRepository defines the interface for meeting, participant and media data operations
type IMeetingRepository interface {
	Create(ctx context.Context, meeting *model.Meeting) error
	Update(ctx context.Context, meeting *model.Meeting) error
	FindByID(ctx context.Context, id string) (*model.Meeting, error)
	ListByGroup(ctx context.Context, groupID string) ([]*model.Meeting, error)
	ListByCreator(ctx context.Context, userID string) ([]*MeetingSummary, error)
	ListInvolving(ctx context.Context, userID string) ([]*model.Meeting, error)
	Delete(ctx context.Context, id string) error

	ReplaceParticipants(ctx context.Context, meetingID string, userIDs []string) error
	Participants(ctx context.Context, meetingIDs []string) ([]*model.Participant, error)

	AddMedia(ctx context.Context, media []*model.MeetingMedia) error
	Media(ctx context.Context, meetingIDs []string) ([]*model.MeetingMedia, error)
	DeleteMedia(ctx context.Context, meetingID string, ids []string) error
}

type MeetingRepository struct {
	db *gorm.DB
}

func NewMeetingRepository(db *gorm.DB) IMeetingRepository {
	return &MeetingRepository{db: db}
}

func (r *MeetingRepository) Create(ctx context.Context, meeting *model.Meeting) error {
	return store.Translate("meeting.create", r.db.WithContext(ctx).Create(meeting).Error)
}

// Update 覆盖可编辑字段，group_id 与 created_by 不变
func (r *MeetingRepository) Update(ctx context.Context, meeting *model.Meeting) error {
	res := r.db.WithContext(ctx).Model(&model.Meeting{}).
		Where("id = ?", meeting.ID).
		Updates(map[string]any{
			"title":      meeting.Title,
			"date":       meeting.Date,
			"location":   meeting.Location,
			"latitude":   meeting.Latitude,
			"longitude":  meeting.Longitude,
			"media_url":  meeting.MediaURL,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return store.Translate("meeting.update", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.Translate("meeting.update", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*model.Meeting, error) {
	var meeting model.Meeting
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&meeting).Error; err != nil {
		return nil, store.Translate("meeting.find", err)
	}
	return &meeting, nil
}

// ListByGroup 按日期升序，与图表的时间轴一致
func (r *MeetingRepository) ListByGroup(ctx context.Context, groupID string) ([]*model.Meeting, error) {
	var meetings []*model.Meeting
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("date ASC, created_at ASC").
		Find(&meetings).Error
	if err != nil {
		return nil, store.Translate("meeting.list_by_group", err)
	}
	return meetings, nil
}

// ListByCreator 当前用户创建的聚会，最新的在前
func (r *MeetingRepository) ListByCreator(ctx context.Context, userID string) ([]*MeetingSummary, error) {
	var meetings []*MeetingSummary
	err := r.db.WithContext(ctx).
		Table("meetings").
		Select("meetings.*, circles.name AS circle_name").
		Joins("JOIN circles ON circles.id = meetings.group_id").
		Where("meetings.created_by = ?", userID).
		Order("meetings.date DESC, meetings.created_at DESC").
		Scan(&meetings).Error
	if err != nil {
		return nil, store.Translate("meeting.list_by_creator", err)
	}
	return meetings, nil
}

// ListInvolving 用户创建或参加的聚会（去重），用于徽章评估
func (r *MeetingRepository) ListInvolving(ctx context.Context, userID string) ([]*model.Meeting, error) {
	db := r.db.WithContext(ctx)
	attended := db.Model(&model.Participant{}).Select("meeting_id").Where("user_id = ?", userID)

	var meetings []*model.Meeting
	err := db.Where("created_by = ? OR id IN (?)", userID, attended).
		Order("date ASC").
		Find(&meetings).Error
	if err != nil {
		return nil, store.Translate("meeting.list_involving", err)
	}
	return meetings, nil
}

// Delete 删除聚会及其参与者、附件、评论和表情。应在事务中调用。
func (r *MeetingRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	for _, child := range []any{&model.Participant{}, &model.MeetingMedia{}, &model.Comment{}, &model.Reaction{}} {
		if err := db.Where("meeting_id = ?", id).Delete(child).Error; err != nil {
			return store.Translate("meeting.delete", err)
		}
	}
	res := db.Where("id = ?", id).Delete(&model.Meeting{})
	if res.Error != nil {
		return store.Translate("meeting.delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.Translate("meeting.delete", gorm.ErrRecordNotFound)
	}
	return nil
}

// ReplaceParticipants 整体替换参与者：先删后插，不做差异比对
func (r *MeetingRepository) ReplaceParticipants(ctx context.Context, meetingID string, userIDs []string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("meeting_id = ?", meetingID).Delete(&model.Participant{}).Error; err != nil {
		return store.Translate("meeting.replace_participants", err)
	}
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]*model.Participant, 0, len(userIDs))
	for _, uid := range userIDs {
		rows = append(rows, &model.Participant{MeetingID: meetingID, UserID: uid})
	}
	return store.Translate("meeting.replace_participants", db.Create(&rows).Error)
}

func (r *MeetingRepository) Participants(ctx context.Context, meetingIDs []string) ([]*model.Participant, error) {
	var participants []*model.Participant
	if len(meetingIDs) == 0 {
		return participants, nil
	}
	if err := r.db.WithContext(ctx).Where("meeting_id IN ?", meetingIDs).Find(&participants).Error; err != nil {
		return nil, store.Translate("meeting.participants", err)
	}
	return participants, nil
}

func (r *MeetingRepository) AddMedia(ctx context.Context, media []*model.MeetingMedia) error {
	if len(media) == 0 {
		return nil
	}
	return store.Translate("meeting.add_media", r.db.WithContext(ctx).Create(&media).Error)
}

func (r *MeetingRepository) Media(ctx context.Context, meetingIDs []string) ([]*model.MeetingMedia, error) {
	var media []*model.MeetingMedia
	if len(meetingIDs) == 0 {
		return media, nil
	}
	err := r.db.WithContext(ctx).
		Where("meeting_id IN ?", meetingIDs).
		Order("created_at ASC").
		Find(&media).Error
	if err != nil {
		return nil, store.Translate("meeting.media", err)
	}
	return media, nil
}

func (r *MeetingRepository) DeleteMedia(ctx context.Context, meetingID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("meeting_id = ? AND id IN ?", meetingID, ids).
		Delete(&model.MeetingMedia{}).Error
	return store.Translate("meeting.delete_media", err)
}
