package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/config"
	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/stats"
)

// TrophyBadge is a badge definition with the caller's earned flag.
type TrophyBadge struct {
	*model.Badge
	Earned bool `json:"earned"`
}

// IBadgeService defines badge seeding, evaluation and the trophy room
type IBadgeService interface {
	Seed(ctx context.Context, defs []config.BadgeConfig) error
	// Evaluate awards every newly satisfied badge to userID and returns them.
	Evaluate(ctx context.Context, userID string) ([]*model.Badge, error)
	Metrics(ctx context.Context, userID string) (stats.BadgeMetrics, error)
	TrophyRoom(ctx context.Context, userID string) ([]*TrophyBadge, error)
}

type BadgeService struct {
	repos         *repository.Repositories
	notifications INotificationService
	logger        *zap.Logger
}

func NewBadgeService(repos *repository.Repositories, notifications INotificationService, logger *zap.Logger) IBadgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgeService{repos: repos, notifications: notifications, logger: logger}
}

// Seed upserts badge definitions by name.
func (s *BadgeService) Seed(ctx context.Context, defs []config.BadgeConfig) error {
	for _, d := range defs {
		b := &model.Badge{
			Name:          d.Name,
			Description:   d.Description,
			Icon:          d.Icon,
			CriteriaType:  d.CriteriaType,
			CriteriaValue: d.CriteriaValue,
		}
		if err := s.repos.Badges.Upsert(ctx, b); err != nil {
			return fmt.Errorf("seed badge %q: %w", d.Name, err)
		}
	}
	return nil
}

func (s *BadgeService) Metrics(ctx context.Context, userID string) (stats.BadgeMetrics, error) {
	meetings, err := s.repos.Meetings.ListInvolving(ctx, userID)
	if err != nil {
		return stats.BadgeMetrics{}, err
	}
	ids := make([]string, len(meetings))
	for i, m := range meetings {
		ids[i] = m.ID
	}
	participants, err := s.repos.Meetings.Participants(ctx, ids)
	if err != nil {
		return stats.BadgeMetrics{}, err
	}
	return stats.ComputeBadgeMetrics(meetings, stats.GroupParticipants(participants)), nil
}

// Evaluate 唯一索引 (user_id, badge_id) 保证至多授予一次；并发评估时输掉的一方得到
// AlreadyExists，事务回滚，不会产生重复通知。
func (s *BadgeService) Evaluate(ctx context.Context, userID string) ([]*model.Badge, error) {
	metrics, err := s.Metrics(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges, err := s.repos.Badges.List(ctx)
	if err != nil {
		return nil, err
	}
	earnedIDs, err := s.repos.Badges.EarnedBadgeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned := make(map[string]bool, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = true
	}

	var awarded []*model.Badge
	var created []*model.Notification
	for _, b := range badges {
		if earned[b.ID] || !metrics.Satisfies(b.CriteriaType, b.CriteriaValue) {
			continue
		}
		n := badgeNotification(userID, b)
		err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
			if err := tx.Badges.Award(ctx, userID, b.ID); err != nil {
				return err
			}
			return tx.Notifications.Create(ctx, n)
		})
		switch {
		case err == nil:
			awarded = append(awarded, b)
			created = append(created, n)
			s.logger.Info("badge awarded", zap.String("user_id", userID), zap.String("badge", b.Name))
		case apperr.KindOf(err) == apperr.KindAlreadyExists:
			continue
		default:
			s.notifications.Publish(ctx, created...)
			return awarded, err
		}
	}
	s.notifications.Publish(ctx, created...)
	return awarded, nil
}

func badgeNotification(userID string, b *model.Badge) *model.Notification {
	return &model.Notification{
		UserID:  userID,
		Type:    model.NotificationBadge,
		Title:   "New Badge Unlocked!",
		Content: fmt.Sprintf("Congrats! You've earned the \"%s\" badge.", b.Name),
		Link:    "#trophy-room",
		Payload: map[string]any{"badge_id": b.ID},
	}
}

func (s *BadgeService) TrophyRoom(ctx context.Context, userID string) ([]*TrophyBadge, error) {
	badges, err := s.repos.Badges.List(ctx)
	if err != nil {
		return nil, err
	}
	earnedIDs, err := s.repos.Badges.EarnedBadgeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned := make(map[string]bool, len(earnedIDs))
	for _, id := range earnedIDs {
		earned[id] = true
	}
	out := make([]*TrophyBadge, len(badges))
	for i, b := range badges {
		out[i] = &TrophyBadge{Badge: b, Earned: earned[b.ID]}
	}
	return out, nil
}
