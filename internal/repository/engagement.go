package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/store"
)

// CommentView carries the author's display fields next to the comment.
type CommentView struct {
	model.Comment
	AuthorName   string `json:"author_name"`
	AuthorAvatar string `json:"author_avatar"`
}

// IEngagementRepository defines the interface for comment and reaction data operations
type IEngagementRepository interface {
	AddComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, meetingID string) ([]*CommentView, error)
	FindComment(ctx context.Context, id string) (*model.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	FindReaction(ctx context.Context, meetingID, userID, emoji string) (*model.Reaction, error)
	AddReaction(ctx context.Context, reaction *model.Reaction) error
	DeleteReaction(ctx context.Context, id string) error
	ListReactions(ctx context.Context, meetingID string) ([]*model.Reaction, error)
}

type EngagementRepository struct {
	db *gorm.DB
}

func NewEngagementRepository(db *gorm.DB) IEngagementRepository {
	return &EngagementRepository{db: db}
}

func (r *EngagementRepository) AddComment(ctx context.Context, comment *model.Comment) error {
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}
	return store.Translate("comment.create", r.db.WithContext(ctx).Create(comment).Error)
}

// ListComments 按创建时间升序
func (r *EngagementRepository) ListComments(ctx context.Context, meetingID string) ([]*CommentView, error) {
	var comments []*CommentView
	err := r.db.WithContext(ctx).
		Table("comments").
		Select("comments.*, profiles.name AS author_name, profiles.avatar_url AS author_avatar").
		Joins("LEFT JOIN profiles ON profiles.id = comments.user_id").
		Where("comments.meeting_id = ?", meetingID).
		Order("comments.created_at ASC").
		Scan(&comments).Error
	if err != nil {
		return nil, store.Translate("comment.list", err)
	}
	return comments, nil
}

func (r *EngagementRepository) FindComment(ctx context.Context, id string) (*model.Comment, error) {
	var comment model.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		return nil, store.Translate("comment.find", err)
	}
	return &comment, nil
}

func (r *EngagementRepository) DeleteComment(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Comment{})
	if res.Error != nil {
		return store.Translate("comment.delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.Translate("comment.delete", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *EngagementRepository) FindReaction(ctx context.Context, meetingID, userID, emoji string) (*model.Reaction, error) {
	var reaction model.Reaction
	err := r.db.WithContext(ctx).
		Where("meeting_id = ? AND user_id = ? AND emoji = ?", meetingID, userID, emoji).
		First(&reaction).Error
	if err != nil {
		return nil, store.Translate("reaction.find", err)
	}
	return &reaction, nil
}

func (r *EngagementRepository) AddReaction(ctx context.Context, reaction *model.Reaction) error {
	return store.Translate("reaction.create", r.db.WithContext(ctx).Create(reaction).Error)
}

func (r *EngagementRepository) DeleteReaction(ctx context.Context, id string) error {
	return store.Translate("reaction.delete", r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Reaction{}).Error)
}

func (r *EngagementRepository) ListReactions(ctx context.Context, meetingID string) ([]*model.Reaction, error) {
	var reactions []*model.Reaction
	err := r.db.WithContext(ctx).Where("meeting_id = ?", meetingID).Order("created_at ASC").Find(&reactions).Error
	if err != nil {
		return nil, store.Translate("reaction.list", err)
	}
	return reactions, nil
}
