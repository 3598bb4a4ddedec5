package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/pkg/events"
	"github.com/Gopher0727/SocialSync/internal/pkg/kafka"
	redis "github.com/Gopher0727/SocialSync/internal/pkg/redis"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/session"
)

// RecentNotifications is the page size of the notification center.
const RecentNotifications = 20

// Publisher delivers a stored notification to the realtime channel.
type Publisher interface {
	Publish(ctx context.Context, n *model.Notification) error
}

// RedisPublisher publishes the websocket frame on notifications:<userID>.
type RedisPublisher struct {
	client redis.RedisClient
}

func NewRedisPublisher(client redis.RedisClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, n *model.Notification) error {
	frame, err := events.FromModel(n).JSON()
	if err != nil {
		return fmt.Errorf("encode notification frame: %w", err)
	}
	return p.client.PublishNotification(ctx, n.UserID, frame)
}

// KafkaPublisher puts notifications on the kafka topic; the relay consumer
// republishes them to redis.
type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, n *model.Notification) error {
	return p.producer.PublishNotification(ctx, events.FromModel(n))
}

type NotificationList struct {
	Items []*model.Notification `json:"items"`
	// UnreadCount counts only the loaded page
	UnreadCount int `json:"unread_count"`
}

// INotificationService defines the notification center operations
type INotificationService interface {
	List(ctx context.Context, sess session.Session) (*NotificationList, error)
	MarkRead(ctx context.Context, sess session.Session, id string) error
	MarkAllRead(ctx context.Context, sess session.Session) (int64, error)
	Delete(ctx context.Context, sess session.Session, id string) error
	// Publish pushes already stored notifications to the realtime channel.
	// Failures are logged, never returned.
	Publish(ctx context.Context, notifications ...*model.Notification)
}

type NotificationService struct {
	repos     *repository.Repositories
	publisher Publisher
	logger    *zap.Logger
}

func NewNotificationService(repos *repository.Repositories, publisher Publisher, logger *zap.Logger) INotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repos: repos, publisher: publisher, logger: logger}
}

func (s *NotificationService) List(ctx context.Context, sess session.Session) (*NotificationList, error) {
	const op = "service.Notification.List"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	items, err := s.repos.Notifications.ListRecent(ctx, sess.UserID, RecentNotifications)
	if err != nil {
		return nil, err
	}
	list := &NotificationList{Items: items}
	for _, n := range items {
		if !n.IsRead {
			list.UnreadCount++
		}
	}
	return list, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, sess session.Session, id string) error {
	const op = "service.Notification.MarkRead"
	if err := requireSession(op, sess); err != nil {
		return err
	}
	return s.repos.Notifications.MarkRead(ctx, sess.UserID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, sess session.Session) (int64, error) {
	const op = "service.Notification.MarkAllRead"
	if err := requireSession(op, sess); err != nil {
		return 0, err
	}
	return s.repos.Notifications.MarkAllRead(ctx, sess.UserID)
}

func (s *NotificationService) Delete(ctx context.Context, sess session.Session, id string) error {
	const op = "service.Notification.Delete"
	if err := requireSession(op, sess); err != nil {
		return err
	}
	return s.repos.Notifications.Delete(ctx, sess.UserID, id)
}

func (s *NotificationService) Publish(ctx context.Context, notifications ...*model.Notification) {
	if s.publisher == nil {
		return
	}
	for _, n := range notifications {
		if err := s.publisher.Publish(ctx, n); err != nil {
			s.logger.Warn("failed to publish notification",
				zap.String("notification_id", n.ID), zap.String("user_id", n.UserID), zap.Error(err))
		}
	}
}

// notifyNew stores n and publishes it. Only for notifications created outside
// a transaction; inside one, publish after commit.
func notifyNew(ctx context.Context, repo repository.INotificationRepository, notifier INotificationService, n *model.Notification) error {
	if err := repo.Create(ctx, n); err != nil {
		return err
	}
	notifier.Publish(ctx, n)
	return nil
}
