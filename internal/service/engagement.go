package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/session"
)

const (
	MaxCommentRunes = 1000
	maxEmojiLength  = 32
	// commentPreviewRunes 通知里截取的评论长度
	commentPreviewRunes = 20
)

type CommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// ReactionSummary is the per-emoji count on one meeting.
type ReactionSummary struct {
	Emoji   string `json:"emoji"`
	Count   int    `json:"count"`
	Reacted bool   `json:"reacted"`
}

// ToggleResult tells whether the caller's reaction now exists.
type ToggleResult struct {
	Added   bool               `json:"added"`
	Summary []*ReactionSummary `json:"summary"`
}

// IEngagementService defines comment and reaction operations on a meeting
type IEngagementService interface {
	ListComments(ctx context.Context, sess session.Session, meetingID string) ([]*repository.CommentView, error)
	AddComment(ctx context.Context, sess session.Session, meetingID, content string) (*model.Comment, error)
	DeleteComment(ctx context.Context, sess session.Session, commentID string) error
	ToggleReaction(ctx context.Context, sess session.Session, meetingID, emoji string) (*ToggleResult, error)
	Reactions(ctx context.Context, sess session.Session, meetingID string) ([]*ReactionSummary, error)
}

type EngagementService struct {
	repos         *repository.Repositories
	notifications INotificationService
	logger        *zap.Logger
}

func NewEngagementService(repos *repository.Repositories, notifications INotificationService, logger *zap.Logger) IEngagementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngagementService{repos: repos, notifications: notifications, logger: logger}
}

// visibleMeeting 调用者必须是聚会所在圈子的成员
func (s *EngagementService) visibleMeeting(ctx context.Context, op string, sess session.Session, meetingID string) (*model.Meeting, error) {
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	meeting, err := s.repos.Meetings.FindByID(ctx, meetingID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound(op, "memory not found")
		}
		return nil, err
	}
	if err := requireMember(ctx, op, s.repos.Circles, meeting.GroupID, sess.UserID); err != nil {
		return nil, err
	}
	return meeting, nil
}

func (s *EngagementService) ListComments(ctx context.Context, sess session.Session, meetingID string) ([]*repository.CommentView, error) {
	const op = "service.Engagement.ListComments"
	if _, err := s.visibleMeeting(ctx, op, sess, meetingID); err != nil {
		return nil, err
	}
	return s.repos.Engagement.ListComments(ctx, meetingID)
}

func (s *EngagementService) AddComment(ctx context.Context, sess session.Session, meetingID, content string) (*model.Comment, error) {
	const op = "service.Engagement.AddComment"
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Validation(op, "comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentRunes {
		return nil, apperr.Validation(op, fmt.Sprintf("comment is longer than %d characters", MaxCommentRunes))
	}
	meeting, err := s.visibleMeeting(ctx, op, sess, meetingID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{MeetingID: meetingID, UserID: sess.UserID, Content: content}
	if err := s.repos.Engagement.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	if meeting.CreatedBy != sess.UserID {
		n := &model.Notification{
			UserID:  meeting.CreatedBy,
			Type:    model.NotificationComment,
			Title:   "New Comment",
			Content: fmt.Sprintf("%s commented on your memory: \"%s...\"", actorName(ctx, s.repos.Profiles, sess), truncateRunes(content, commentPreviewRunes)),
			Link:    fmt.Sprintf("#meeting-%s", meetingID),
			Payload: map[string]any{"meeting_id": meetingID, "comment_id": comment.ID},
		}
		// 通知失败不影响评论本身
		if err := notifyNew(ctx, s.repos.Notifications, s.notifications, n); err != nil {
			s.logger.Warn("failed to create comment notification", zap.String("meeting_id", meetingID), zap.Error(err))
		}
	}
	return comment, nil
}

// DeleteComment 只能删除自己的评论
func (s *EngagementService) DeleteComment(ctx context.Context, sess session.Session, commentID string) error {
	const op = "service.Engagement.DeleteComment"
	if err := requireSession(op, sess); err != nil {
		return err
	}
	comment, err := s.repos.Engagement.FindComment(ctx, commentID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.NotFound(op, "comment not found")
		}
		return err
	}
	if comment.UserID != sess.UserID {
		return apperr.Forbidden(op, "you can only delete your own comments")
	}
	return s.repos.Engagement.DeleteComment(ctx, commentID)
}

// ToggleReaction 已存在则删除，否则插入。并发插入输掉的一方视为已添加。
func (s *EngagementService) ToggleReaction(ctx context.Context, sess session.Session, meetingID, emoji string) (*ToggleResult, error) {
	const op = "service.Engagement.ToggleReaction"
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > maxEmojiLength {
		return nil, apperr.Validation(op, "a single emoji is required")
	}
	meeting, err := s.visibleMeeting(ctx, op, sess, meetingID)
	if err != nil {
		return nil, err
	}

	result := &ToggleResult{}
	existing, err := s.repos.Engagement.FindReaction(ctx, meetingID, sess.UserID, emoji)
	switch {
	case err == nil:
		if err := s.repos.Engagement.DeleteReaction(ctx, existing.ID); err != nil {
			return nil, err
		}
	case apperr.KindOf(err) == apperr.KindNotFound:
		err := s.repos.Engagement.AddReaction(ctx, &model.Reaction{MeetingID: meetingID, UserID: sess.UserID, Emoji: emoji})
		switch {
		case err == nil:
			result.Added = true
			s.notifyReaction(ctx, sess, meeting, emoji)
		case apperr.KindOf(err) == apperr.KindAlreadyExists:
			result.Added = true
		default:
			return nil, err
		}
	default:
		return nil, err
	}

	result.Summary, err = s.summary(ctx, sess.UserID, meetingID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *EngagementService) notifyReaction(ctx context.Context, sess session.Session, meeting *model.Meeting, emoji string) {
	if meeting.CreatedBy == sess.UserID {
		return
	}
	n := &model.Notification{
		UserID:  meeting.CreatedBy,
		Type:    model.NotificationReaction,
		Title:   "New Reaction",
		Content: fmt.Sprintf("%s reacted with %s to your memory.", actorName(ctx, s.repos.Profiles, sess), emoji),
		Link:    fmt.Sprintf("#meeting-%s", meeting.ID),
		Payload: map[string]any{"meeting_id": meeting.ID, "emoji": emoji},
	}
	if err := notifyNew(ctx, s.repos.Notifications, s.notifications, n); err != nil {
		s.logger.Warn("failed to create reaction notification", zap.String("meeting_id", meeting.ID), zap.Error(err))
	}
}

func (s *EngagementService) Reactions(ctx context.Context, sess session.Session, meetingID string) ([]*ReactionSummary, error) {
	const op = "service.Engagement.Reactions"
	if _, err := s.visibleMeeting(ctx, op, sess, meetingID); err != nil {
		return nil, err
	}
	return s.summary(ctx, sess.UserID, meetingID)
}

// summary 按表情首次出现的顺序汇总
func (s *EngagementService) summary(ctx context.Context, userID, meetingID string) ([]*ReactionSummary, error) {
	reactions, err := s.repos.Engagement.ListReactions(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	return SummarizeReactions(reactions, userID), nil
}

func SummarizeReactions(reactions []*model.Reaction, userID string) []*ReactionSummary {
	out := make([]*ReactionSummary, 0)
	index := make(map[string]*ReactionSummary)
	for _, r := range reactions {
		sum, ok := index[r.Emoji]
		if !ok {
			sum = &ReactionSummary{Emoji: r.Emoji}
			index[r.Emoji] = sum
			out = append(out, sum)
		}
		sum.Count++
		if r.UserID == userID {
			sum.Reacted = true
		}
	}
	return out
}
