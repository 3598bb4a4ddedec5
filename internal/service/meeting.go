package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/pkg/geocode"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/session"
	"github.com/Gopher0727/SocialSync/internal/stats"
	"github.com/Gopher0727/SocialSync/internal/utils"
)

// MeetingInput is the memory form. Latitude and Longitude are optional.
type MeetingInput struct {
	CircleID       string   `form:"circle_id" json:"circle_id"`
	Title          string   `form:"title" json:"title"`
	Date           string   `form:"date" json:"date"`
	Location       string   `form:"location" json:"location"`
	Latitude       *float64 `form:"latitude" json:"latitude"`
	Longitude      *float64 `form:"longitude" json:"longitude"`
	ParticipantIDs []string `form:"participant_ids" json:"participant_ids"`
	// RemovedMediaIDs 编辑时被移除的附件
	RemovedMediaIDs []string `form:"removed_media_ids" json:"removed_media_ids"`
}

// MeetingDetail is a meeting with its participants and attachments.
type MeetingDetail struct {
	*model.Meeting
	CircleName   string                `json:"circle_name,omitempty"`
	Participants []string              `json:"participants"`
	Media        []*model.MeetingMedia `json:"media"`
}

// IMeetingService defines the memory logger and memory list operations
type IMeetingService interface {
	Log(ctx context.Context, sess session.Session, in *MeetingInput, uploads []Upload) (*MeetingDetail, error)
	Edit(ctx context.Context, sess session.Session, meetingID string, in *MeetingInput, uploads []Upload) (*MeetingDetail, error)
	ListMine(ctx context.Context, sess session.Session) ([]*repository.MeetingSummary, error)
	ListByCircle(ctx context.Context, sess session.Session, circleID, year string) ([]*MeetingDetail, error)
	Get(ctx context.Context, sess session.Session, meetingID string) (*MeetingDetail, error)
	Delete(ctx context.Context, sess session.Session, meetingID string) error
}

type MeetingService struct {
	repos         *repository.Repositories
	uploader      *Uploader
	cleaner       *BlobCleaner
	geocoder      geocode.Geocoder
	notifications INotificationService
	maxFiles      int
	logger        *zap.Logger
}

func NewMeetingService(
	repos *repository.Repositories,
	uploader *Uploader,
	cleaner *BlobCleaner,
	geocoder geocode.Geocoder,
	notifications INotificationService,
	maxFiles int,
	logger *zap.Logger,
) IMeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if geocoder == nil {
		geocoder = geocode.Disabled{}
	}
	return &MeetingService{
		repos:         repos,
		uploader:      uploader,
		cleaner:       cleaner,
		geocoder:      geocoder,
		notifications: notifications,
		maxFiles:      maxFiles,
		logger:        logger,
	}
}

// validate 校验表单字段，返回去重后的参与者
func (s *MeetingService) validate(ctx context.Context, op, circleID string, in *MeetingInput, uploads int) ([]string, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Date = strings.TrimSpace(in.Date)
	in.Location = strings.TrimSpace(in.Location)
	if in.Title == "" {
		return nil, apperr.Validation(op, "title is required")
	}
	if !utils.ValidateDate(in.Date) {
		return nil, apperr.Validation(op, "date must be a YYYY-MM-DD calendar date")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, apperr.Validation(op, "latitude and longitude must be given together")
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180) {
		return nil, apperr.Validation(op, "coordinates out of range")
	}
	if s.maxFiles > 0 && uploads > s.maxFiles {
		return nil, apperr.Validation(op, fmt.Sprintf("at most %d attachments per submission", s.maxFiles))
	}

	participants := dedupe(in.ParticipantIDs)
	if len(participants) == 0 {
		return nil, apperr.Validation(op, "select at least one participant")
	}
	members, err := s.repos.Circles.Members(ctx, circleID)
	if err != nil {
		return nil, err
	}
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m.ID] = true
	}
	for _, id := range participants {
		if !memberSet[id] {
			return nil, apperr.Validation(op, "every participant must be a member of the circle")
		}
	}
	return participants, nil
}

// fillCoordinates 没有坐标但有地点文字时，用正向地理编码的第一条结果补全
func (s *MeetingService) fillCoordinates(ctx context.Context, m *model.Meeting) {
	if m.Latitude != nil || m.Location == "" {
		return
	}
	places, err := s.geocoder.Search(ctx, m.Location)
	if err != nil {
		if !errors.Is(err, geocode.ErrDisabled) {
			s.logger.Warn("forward geocoding failed", zap.String("location", m.Location), zap.Error(err))
		}
		return
	}
	if len(places) == 0 {
		return
	}
	lat, lon := places[0].Lat, places[0].Lon
	m.Latitude, m.Longitude = &lat, &lon
}

func (s *MeetingService) storeUploads(ctx context.Context, userID string, uploads []Upload) ([]*StoredObject, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	return s.uploader.PutMeetingMedia(ctx, userID, uploads)
}

func mediaRows(meetingID, uploaderID string, objects []*StoredObject) []*model.MeetingMedia {
	rows := make([]*model.MeetingMedia, 0, len(objects))
	for _, o := range objects {
		rows = append(rows, &model.MeetingMedia{
			MeetingID:  meetingID,
			MediaURL:   o.URL,
			MediaType:  o.MediaType,
			ObjectPath: o.Path,
			UploadedBy: uploaderID,
		})
	}
	return rows
}

func objectPaths(objects []*StoredObject) []string {
	paths := make([]string, len(objects))
	for i, o := range objects {
		paths[i] = o.Path
	}
	return paths
}

// Log 先上传附件，再在一个事务里写入聚会、参与者、附件和通知；事务失败时删除已上传的对象
func (s *MeetingService) Log(ctx context.Context, sess session.Session, in *MeetingInput, uploads []Upload) (*MeetingDetail, error) {
	const op = "service.Meeting.Log"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.CircleID) == "" {
		return nil, apperr.Validation(op, "circle is required")
	}
	if err := requireMember(ctx, op, s.repos.Circles, in.CircleID, sess.UserID); err != nil {
		return nil, err
	}
	participants, err := s.validate(ctx, op, in.CircleID, in, len(uploads))
	if err != nil {
		return nil, err
	}

	meeting := &model.Meeting{
		GroupID:   in.CircleID,
		CreatedBy: sess.UserID,
		Title:     in.Title,
		Date:      in.Date,
		Location:  in.Location,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
	}
	s.fillCoordinates(ctx, meeting)

	stored, err := s.storeUploads(ctx, sess.UserID, uploads)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		meeting.MediaURL = stored[0].URL
	}

	var (
		rows    []*model.MeetingMedia
		created []*model.Notification
	)
	actor := actorName(ctx, s.repos.Profiles, sess)
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Meetings.Create(ctx, meeting); err != nil {
			return err
		}
		if err := tx.Meetings.ReplaceParticipants(ctx, meeting.ID, participants); err != nil {
			return err
		}
		rows = mediaRows(meeting.ID, sess.UserID, stored)
		if err := tx.Meetings.AddMedia(ctx, rows); err != nil {
			return err
		}
		for _, uid := range participants {
			if uid == sess.UserID {
				continue
			}
			n := meetingNotification(uid, actor, meeting)
			if err := tx.Notifications.Create(ctx, n); err != nil {
				return err
			}
			created = append(created, n)
		}
		return nil
	})
	if err != nil {
		s.cleaner.RemoveNow(ctx, objectPaths(stored)...)
		return nil, err
	}
	s.notifications.Publish(ctx, created...)
	s.logger.Info("meeting logged",
		zap.String("meeting_id", meeting.ID), zap.String("circle_id", meeting.GroupID),
		zap.Int("participants", len(participants)), zap.Int("media", len(rows)))
	return &MeetingDetail{Meeting: meeting, Participants: participants, Media: rows}, nil
}

func meetingNotification(userID, actor string, m *model.Meeting) *model.Notification {
	return &model.Notification{
		UserID:  userID,
		Type:    model.NotificationMeeting,
		Title:   "New Memory",
		Content: fmt.Sprintf("%s added you to \"%s\".", actor, m.Title),
		Link:    fmt.Sprintf("#meeting-%s", m.ID),
		Payload: map[string]any{"meeting_id": m.ID},
	}
}

// loadOwned 只有创建者可以修改或删除
func (s *MeetingService) loadOwned(ctx context.Context, op string, sess session.Session, meetingID string) (*model.Meeting, error) {
	meeting, err := s.repos.Meetings.FindByID(ctx, meetingID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound(op, "memory not found")
		}
		return nil, err
	}
	if meeting.CreatedBy != sess.UserID {
		return nil, apperr.Forbidden(op, "only the creator can change this memory")
	}
	return meeting, nil
}

// Edit 覆盖字段、整体替换参与者、删除被移除的附件并追加新附件。圈子不可更改。
func (s *MeetingService) Edit(ctx context.Context, sess session.Session, meetingID string, in *MeetingInput, uploads []Upload) (*MeetingDetail, error) {
	const op = "service.Meeting.Edit"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	meeting, err := s.loadOwned(ctx, op, sess, meetingID)
	if err != nil {
		return nil, err
	}
	if in.CircleID != "" && in.CircleID != meeting.GroupID {
		return nil, apperr.Validation(op, "the circle of a memory cannot be changed")
	}
	participants, err := s.validate(ctx, op, meeting.GroupID, in, len(uploads))
	if err != nil {
		return nil, err
	}

	existing, err := s.repos.Meetings.Media(ctx, []string{meeting.ID})
	if err != nil {
		return nil, err
	}
	removed := make(map[string]bool)
	for _, id := range in.RemovedMediaIDs {
		removed[id] = true
	}
	var (
		kept         []*model.MeetingMedia
		removedIDs   []string
		removedPaths []string
	)
	for _, m := range existing {
		if removed[m.ID] {
			removedIDs = append(removedIDs, m.ID)
			removedPaths = append(removedPaths, m.ObjectPath)
			continue
		}
		kept = append(kept, m)
	}

	locationChanged := in.Location != meeting.Location
	meeting.Title = in.Title
	meeting.Date = in.Date
	meeting.Location = in.Location
	// 未提供坐标且地点未变时保留原坐标
	if in.Latitude != nil || locationChanged {
		meeting.Latitude, meeting.Longitude = in.Latitude, in.Longitude
	}
	s.fillCoordinates(ctx, meeting)

	stored, err := s.storeUploads(ctx, sess.UserID, uploads)
	if err != nil {
		return nil, err
	}
	added := mediaRows(meeting.ID, sess.UserID, stored)
	all := append(kept, added...)
	meeting.MediaURL = ""
	if len(all) > 0 {
		meeting.MediaURL = all[0].MediaURL
	}

	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Meetings.Update(ctx, meeting); err != nil {
			return err
		}
		if err := tx.Meetings.ReplaceParticipants(ctx, meeting.ID, participants); err != nil {
			return err
		}
		if err := tx.Meetings.DeleteMedia(ctx, meeting.ID, removedIDs); err != nil {
			return err
		}
		return tx.Meetings.AddMedia(ctx, added)
	})
	if err != nil {
		s.cleaner.RemoveNow(ctx, objectPaths(stored)...)
		return nil, err
	}
	s.cleaner.Remove(removedPaths...)
	return &MeetingDetail{Meeting: meeting, Participants: participants, Media: all}, nil
}

func (s *MeetingService) ListMine(ctx context.Context, sess session.Session) ([]*repository.MeetingSummary, error) {
	const op = "service.Meeting.ListMine"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	return s.repos.Meetings.ListByCreator(ctx, sess.UserID)
}

// details 批量加载参与者和附件
func (s *MeetingService) details(ctx context.Context, meetings []*model.Meeting) ([]*MeetingDetail, error) {
	ids := make([]string, len(meetings))
	for i, m := range meetings {
		ids[i] = m.ID
	}
	participants, err := s.repos.Meetings.Participants(ctx, ids)
	if err != nil {
		return nil, err
	}
	media, err := s.repos.Meetings.Media(ctx, ids)
	if err != nil {
		return nil, err
	}
	att := stats.GroupParticipants(participants)
	byMeeting := make(map[string][]*model.MeetingMedia)
	for _, m := range media {
		byMeeting[m.MeetingID] = append(byMeeting[m.MeetingID], m)
	}

	out := make([]*MeetingDetail, len(meetings))
	for i, m := range meetings {
		d := &MeetingDetail{Meeting: m, Participants: att[m.ID], Media: byMeeting[m.ID]}
		if d.Participants == nil {
			d.Participants = []string{}
		}
		if d.Media == nil {
			d.Media = []*model.MeetingMedia{}
		}
		out[i] = d
	}
	return out, nil
}

func (s *MeetingService) ListByCircle(ctx context.Context, sess session.Session, circleID, year string) ([]*MeetingDetail, error) {
	const op = "service.Meeting.ListByCircle"
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	year, err := normalizeYear(op, year)
	if err != nil {
		return nil, err
	}
	if err := requireMember(ctx, op, s.repos.Circles, circleID, sess.UserID); err != nil {
		return nil, err
	}
	meetings, err := s.repos.Meetings.ListByGroup(ctx, circleID)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, stats.FilterByYear(meetings, year))
}

func (s *MeetingService) Get(ctx context.Context, sess session.Session, meetingID string) (*MeetingDetail, error) {
	const op = "service.Meeting.Get"
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
	out, err := s.details(ctx, []*model.Meeting{meeting})
	if err != nil {
		return nil, err
	}
	if circle, err := s.repos.Circles.FindByID(ctx, meeting.GroupID); err == nil {
		out[0].CircleName = circle.Name
	}
	return out[0], nil
}

// Delete 在一个事务里删除聚会及其参与者、附件、评论和表情
func (s *MeetingService) Delete(ctx context.Context, sess session.Session, meetingID string) error {
	const op = "service.Meeting.Delete"
	if err := requireSession(op, sess); err != nil {
		return err
	}
	if _, err := s.loadOwned(ctx, op, sess, meetingID); err != nil {
		return err
	}
	var paths []string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		media, err := tx.Meetings.Media(ctx, []string{meetingID})
		if err != nil {
			return err
		}
		for _, m := range media {
			paths = append(paths, m.ObjectPath)
		}
		return tx.Meetings.Delete(ctx, meetingID)
	})
	if err != nil {
		return err
	}
	s.cleaner.Remove(paths...)
	return nil
}
