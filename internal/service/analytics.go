package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/session"
	"github.com/Gopher0727/SocialSync/internal/stats"
)

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// unknownName 成员已离开圈子时显示
const unknownName = "Unknown"

// MemberRef is the slice of a profile the dashboard shows.
type MemberRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// TopDuoView names the two members, or shows the placeholder.
type TopDuoView struct {
	A     string `json:"a"`
	B     string `json:"b"`
	AName string `json:"a_name"`
	BName string `json:"b_name"`
	Count int    `json:"count"`
	Label string `json:"label"`
}

// Analytics is the dashboard of one circle for one year.
type Analytics struct {
	CircleID            string             `json:"circle_id"`
	Year                string             `json:"year"`
	AvailableYears      []string           `json:"available_years"`
	Members             []MemberRef        `json:"members"`
	TotalMeetings       int                `json:"total_meetings"`
	AverageParticipants float64            `json:"average_participants"`
	TopDuo              TopDuoView         `json:"top_duo"`
	MonthlyHistogram    [12]int            `json:"monthly_histogram"`
	Matrix              stats.Matrix       `json:"matrix"`
	Chart               []stats.ChartPoint `json:"chart"`
	FullGroupMeetups    []*model.Meeting   `json:"full_group_meetups"`
	Map                 stats.MapView      `json:"map"`
}

// circleData is everything the aggregations read for one circle.
type circleData struct {
	circle   *model.Circle
	members  []*model.Profile
	meetings []*model.Meeting
	att      stats.Attendance
}

// IAnalyticsService defines the interaction aggregator view
type IAnalyticsService interface {
	Circle(ctx context.Context, sess session.Session, circleID, year string) (*Analytics, error)
}

type AnalyticsService struct {
	repos *repository.Repositories
	now   func() time.Time
}

func NewAnalyticsService(repos *repository.Repositories) IAnalyticsService {
	return &AnalyticsService{repos: repos, now: time.Now}
}

func normalizeYear(op, year string) (string, error) {
	year = strings.TrimSpace(year)
	if year == "" || strings.EqualFold(year, stats.AllYears) {
		return stats.AllYears, nil
	}
	if !yearPattern.MatchString(year) {
		return "", apperr.Validation(op, `year must be "All" or a 4-digit year`)
	}
	return year, nil
}

// loadCircle 成员校验后一次取出成员、聚会和参与者
func loadCircle(ctx context.Context, op string, repos *repository.Repositories, sess session.Session, circleID string) (*circleData, error) {
	if err := requireSession(op, sess); err != nil {
		return nil, err
	}
	if err := requireMember(ctx, op, repos.Circles, circleID, sess.UserID); err != nil {
		return nil, err
	}
	circle, err := repos.Circles.FindByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	members, err := repos.Circles.Members(ctx, circleID)
	if err != nil {
		return nil, err
	}
	meetings, err := repos.Meetings.ListByGroup(ctx, circleID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(meetings))
	for i, m := range meetings {
		ids[i] = m.ID
	}
	participants, err := repos.Meetings.Participants(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &circleData{circle: circle, members: members, meetings: meetings, att: stats.GroupParticipants(participants)}, nil
}

func (s *AnalyticsService) Circle(ctx context.Context, sess session.Session, circleID, year string) (*Analytics, error) {
	const op = "service.Analytics.Circle"
	year, err := normalizeYear(op, year)
	if err != nil {
		return nil, err
	}
	data, err := loadCircle(ctx, op, s.repos, sess, circleID)
	if err != nil {
		return nil, err
	}
	return BuildAnalytics(data.circle.ID, year, data.members, data.meetings, data.att, s.now()), nil
}

// BuildAnalytics 纯计算，year 已规范化
func BuildAnalytics(circleID, year string, members []*model.Profile, meetings []*model.Meeting, att stats.Attendance, now time.Time) *Analytics {
	filtered := stats.FilterByYear(meetings, year)

	names := make(map[string]string, len(members))
	refs := make([]MemberRef, len(members))
	memberIDs := make([]string, len(members))
	for i, m := range members {
		names[m.ID] = m.Name
		refs[i] = MemberRef{ID: m.ID, Name: m.Name, AvatarURL: m.AvatarURL}
		memberIDs[i] = m.ID
	}

	return &Analytics{
		CircleID:            circleID,
		Year:                year,
		AvailableYears:      stats.AvailableYears(meetings, now),
		Members:             refs,
		TotalMeetings:       len(filtered),
		AverageParticipants: stats.AverageParticipants(filtered, att),
		TopDuo:              topDuoView(filtered, att, names),
		MonthlyHistogram:    stats.MonthlyHistogram(filtered),
		Matrix:              stats.PairwiseMatrix(memberIDs, filtered, att),
		Chart:               stats.ChartPoints(filtered, att),
		FullGroupMeetups:    stats.FullGroupMeetups(filtered, att, len(members)),
		Map:                 stats.BuildMapView(filtered),
	}
}

func topDuoView(meetings []*model.Meeting, att stats.Attendance, names map[string]string) TopDuoView {
	duo, ok := stats.TopDuo(meetings, att)
	if !ok {
		return TopDuoView{Label: stats.Placeholder}
	}
	nameOf := func(id string) string {
		if n, ok := names[id]; ok && n != "" {
			return n
		}
		return unknownName
	}
	v := TopDuoView{A: duo.A, B: duo.B, AName: nameOf(duo.A), BName: nameOf(duo.B), Count: duo.Count}
	v.Label = v.AName + " & " + v.BName
	return v
}
