package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/pkg/mailer"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/session"
	"github.com/Gopher0727/SocialSync/internal/utils"
	"github.com/Gopher0727/SocialSync/utils/bloom"
)

const maxInviteCodeAttempts = 10

const (
	InviteAdded          = "added"
	InviteAlreadyMember  = "already_member"
	InviteExternalInvite = "external_invite"
)

// PreferenceStore persists the last used circle per user.
type PreferenceStore interface {
	SetActiveCircle(ctx context.Context, userID, circleID string) error
	GetActiveCircle(ctx context.Context, userID string) (string, error)
}

// CreateCircleRequest represents a new circle
type CreateCircleRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

type JoinCircleRequest struct {
	InviteCode string `json:"invite_code" binding:"required"`
}

type InviteRequest struct {
	Email string `json:"email" binding:"required"`
}

// InviteOutcome is the result of inviting someone by email.
type InviteOutcome struct {
	Status     string         `json:"status"`
	Profile    *model.Profile `json:"profile,omitempty"`
	InviteLink string         `json:"invite_link,omitempty"`
	Emailed    bool           `json:"emailed"`
}

// ICircleService defines the circle manager and member directory operations
type ICircleService interface {
	ListMine(ctx context.Context, sess session.Session) ([]*model.Circle, error)
	Create(ctx context.Context, sess session.Session, req *CreateCircleRequest) (*model.Circle, error)
	Join(ctx context.Context, sess session.Session, inviteCode string) (*model.Circle, error)
	InviteByEmail(ctx context.Context, sess session.Session, circleID, email string) (*InviteOutcome, error)
	Leave(ctx context.Context, sess session.Session, circleID string) error
	Delete(ctx context.Context, sess session.Session, circleID string) error
	ListMembers(ctx context.Context, sess session.Session, circleID string) ([]*model.Profile, error)
	// GetActive returns nil when the user belongs to no circle.
	GetActive(ctx context.Context, sess session.Session) (*model.Circle, error)
	SetActive(ctx context.Context, sess session.Session, circleID string) (*model.Circle, error)
	InviteLink(code string) string
	// WarmInviteCodes loads existing invite codes into the bloom filter.
	WarmInviteCodes(ctx context.Context) error
}

type CircleService struct {
	repos         *repository.Repositories
	prefs         PreferenceStore
	mailer        mailer.Mailer
	codes         *bloom.Filter
	cleaner       *BlobCleaner
	publicBaseURL string
	logger        *zap.Logger
}

func NewCircleService(
	repos *repository.Repositories,
	prefs PreferenceStore,
	m mailer.Mailer,
	codes *bloom.Filter,
	cleaner *BlobCleaner,
	publicBaseURL string,
	logger *zap.Logger,
) ICircleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = mailer.Nop{}
	}
	if codes == nil {
		codes = bloom.New(10000, 0.01)
	}
	return &CircleService{
		repos:         repos,
		prefs:         prefs,
		mailer:        m,
		codes:         codes,
		cleaner:       cleaner,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

func (s *CircleService) WarmInviteCodes(ctx context.Context) error {
	codes, err := s.repos.Circles.InviteCodes(ctx)
	if err != nil {
		return err
	}
	for _, c := range codes {
		s.codes.Add(c)
	}
	s.logger.Info("invite code filter warmed", zap.Int("codes", len(codes)))
	return nil
}

func (s *CircleService) InviteLink(code string) string {
	return fmt.Sprintf("%s/auth?join=%s", s.publicBaseURL, url.QueryEscape(code))
}

func (s *CircleService) ListMine(ctx context.Context, sess session.Session) ([]*model.Circle, error) {
	const op = "service.Circle.ListMine"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	return s.repos.Circles.ListByUser(ctx, sess.UserID)
}

// nextInviteCode 布隆过滤器判定"一定不存在"时直接使用，否则查库确认
func (s *CircleService) nextInviteCode(ctx context.Context) (string, error) {
	code, err := utils.GenerateInviteCode()
	if err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	if !s.codes.MayContain(code) {
		return code, nil
	}
	exists, err := s.repos.Circles.InviteCodeExists(ctx, code)
	if err != nil {
		return "", err
	}
	if exists {
		return "", nil
	}
	return code, nil
}

// Create inserts the circle and the creator's membership in one transaction.
func (s *CircleService) Create(ctx context.Context, sess session.Session, req *CreateCircleRequest) (*model.Circle, error) {
	const op = "service.Circle.Create"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation(op, "circle name is required")
	}

	for attempt := 0; attempt < maxInviteCodeAttempts; attempt++ {
		code, err := s.nextInviteCode(ctx)
		if err != nil {
			return nil, err
		}
		if code == "" {
			continue
		}
		circle := &model.Circle{Name: name, CreatedBy: sess.UserID, InviteCode: code}
		err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
			if err := tx.Circles.Create(ctx, circle); err != nil {
				return err
			}
			return tx.Circles.AddMember(ctx, circle.ID, sess.UserID)
		})
		if apperr.KindOf(err) == apperr.KindAlreadyExists {
			// 唯一索引冲突：另一请求抢先用了这个码
			s.codes.Add(code)
			continue
		}
		if err != nil {
			return nil, err
		}
		s.codes.Add(code)
		s.rememberActive(ctx, sess.UserID, circle.ID)
		s.logger.Info("circle created", zap.String("circle_id", circle.ID), zap.String("user_id", sess.UserID))
		return circle, nil
	}
	return nil, apperr.Store(op, fmt.Errorf("no free invite code after %d attempts", maxInviteCodeAttempts))
}

// Join 重复加入由唯一索引拒绝，返回 AlreadyExists
func (s *CircleService) Join(ctx context.Context, sess session.Session, inviteCode string) (*model.Circle, error) {
	const op = "service.Circle.Join"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	code := strings.ToLower(strings.TrimSpace(inviteCode))
	if code == "" {
		return nil, apperr.Validation(op, "invite code is required")
	}
	circle, err := s.repos.Circles.FindByInviteCode(ctx, code)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound(op, "invalid invite code")
		}
		return nil, err
	}
	if err := s.repos.Circles.AddMember(ctx, circle.ID, sess.UserID); err != nil {
		if apperr.KindOf(err) == apperr.KindAlreadyExists {
			return nil, apperr.E(apperr.KindAlreadyExists, op, "you are already a member of this circle", err)
		}
		return nil, err
	}
	s.rememberActive(ctx, sess.UserID, circle.ID)
	return circle, nil
}

func (s *CircleService) InviteByEmail(ctx context.Context, sess session.Session, circleID, email string) (*InviteOutcome, error) {
	const op = "service.Circle.InviteByEmail"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	email = utils.NormalizeEmail(email)
	if !utils.ValidateEmail(email) {
		return nil, apperr.Validation(op, "a valid email is required")
	}
	if err := requireMember(ctx, op, s.repos.Circles, circleID, sess.UserID); err != nil {
		return nil, err
	}
	circle, err := s.repos.Circles.FindByID(ctx, circleID)
	if err != nil {
		return nil, err
	}

	profile, err := s.repos.Profiles.FindByEmail(ctx, email)
	switch {
	case apperr.KindOf(err) == apperr.KindNotFound:
		return s.externalInvite(ctx, sess, circle, email), nil
	case err != nil:
		return nil, err
	}

	member, err := s.repos.Circles.IsMember(ctx, circleID, profile.ID)
	if err != nil {
		return nil, err
	}
	if member {
		return &InviteOutcome{Status: InviteAlreadyMember, Profile: profile}, nil
	}
	if err := s.repos.Circles.AddMember(ctx, circleID, profile.ID); err != nil {
		if apperr.KindOf(err) == apperr.KindAlreadyExists {
			return &InviteOutcome{Status: InviteAlreadyMember, Profile: profile}, nil
		}
		return nil, err
	}
	return &InviteOutcome{Status: InviteAdded, Profile: profile}, nil
}

// externalInvite 邮件发送失败不影响结果，链接总会返回
func (s *CircleService) externalInvite(ctx context.Context, sess session.Session, circle *model.Circle, email string) *InviteOutcome {
	out := &InviteOutcome{Status: InviteExternalInvite, InviteLink: s.InviteLink(circle.InviteCode)}
	if !s.mailer.Enabled() {
		return out
	}
	err := s.mailer.SendInvite(ctx, mailer.Invite{
		ToEmail:     email,
		InviterName: actorName(ctx, s.repos.Profiles, sess),
		CircleName:  circle.Name,
		Link:        out.InviteLink,
	})
	if err != nil {
		s.logger.Warn("failed to email invite", zap.String("circle_id", circle.ID), zap.Error(err))
		return out
	}
	out.Emailed = true
	return out
}

func (s *CircleService) Leave(ctx context.Context, sess session.Session, circleID string) error {
	const op = "service.Circle.Leave"
	if err := requireSession(op, sess); err != nil {
		return err
	}
	if err := s.repos.Circles.RemoveMember(ctx, circleID, sess.UserID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.NotFound(op, "you are not a member of this circle")
		}
		return err
	}
	return nil
}

// Delete 仅创建者可删除；聚会附件在提交后清理
func (s *CircleService) Delete(ctx context.Context, sess session.Session, circleID string) error {
	const op = "service.Circle.Delete"
	if err := requireSession(op, sess); err != nil {
		return err
	}
	circle, err := s.repos.Circles.FindByID(ctx, circleID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.NotFound(op, "circle not found")
		}
		return err
	}
	if circle.CreatedBy != sess.UserID {
		return apperr.Forbidden(op, "only the creator can delete this circle")
	}

	var paths []string
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		meetings, err := tx.Meetings.ListByGroup(ctx, circleID)
		if err != nil {
			return err
		}
		ids := make([]string, len(meetings))
		for i, m := range meetings {
			ids[i] = m.ID
		}
		media, err := tx.Meetings.Media(ctx, ids)
		if err != nil {
			return err
		}
		for _, m := range media {
			paths = append(paths, m.ObjectPath)
		}
		return tx.Circles.Delete(ctx, circleID)
	})
	if err != nil {
		return err
	}
	s.cleaner.Remove(paths...)
	s.logger.Info("circle deleted", zap.String("circle_id", circleID), zap.Int("blobs", len(paths)))
	return nil
}

func (s *CircleService) ListMembers(ctx context.Context, sess session.Session, circleID string) ([]*model.Profile, error) {
	const op = "service.Circle.ListMembers"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	if err := requireMember(ctx, op, s.repos.Circles, circleID, sess.UserID); err != nil {
		return nil, err
	}
	return s.repos.Circles.Members(ctx, circleID)
}

// GetActive 偏好未设置或已不是成员时，退回到加入的第一个圈子
func (s *CircleService) GetActive(ctx context.Context, sess session.Session) (*model.Circle, error) {
	const op = "service.Circle.GetActive"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	circles, err := s.repos.Circles.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if len(circles) == 0 {
		return nil, nil
	}
	if s.prefs != nil {
		id, err := s.prefs.GetActiveCircle(ctx, sess.UserID)
		if err != nil {
			s.logger.Warn("failed to load active circle", zap.String("user_id", sess.UserID), zap.Error(err))
		}
		for _, c := range circles {
			if c.ID == id {
				return c, nil
			}
		}
	}
	return circles[0], nil
}

func (s *CircleService) SetActive(ctx context.Context, sess session.Session, circleID string) (*model.Circle, error) {
	const op = "service.Circle.SetActive"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	if err := requireMember(ctx, op, s.repos.Circles, circleID, sess.UserID); err != nil {
		return nil, err
	}
	circle, err := s.repos.Circles.FindByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if s.prefs != nil {
		if err := s.prefs.SetActiveCircle(ctx, sess.UserID, circleID); err != nil {
			return nil, apperr.Store(op, err)
		}
	}
	return circle, nil
}

func (s *CircleService) rememberActive(ctx context.Context, userID, circleID string) {
	if s.prefs == nil {
		return
	}
	if err := s.prefs.SetActiveCircle(ctx, userID, circleID); err != nil {
		s.logger.Warn("failed to save active circle", zap.String("user_id", userID), zap.Error(err))
	}
}
