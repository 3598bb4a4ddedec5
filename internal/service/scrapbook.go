package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/session"
	"github.com/Gopher0727/SocialSync/internal/stats"
	"github.com/Gopher0727/SocialSync/internal/utils"
)

//go:embed templates/scrapbook.html
var templateFS embed.FS

var scrapbookTemplate = template.Must(
	template.New("scrapbook.html").
		Funcs(template.FuncMap{"odd": func(i int) bool { return i%2 == 1 }}).
		ParseFS(templateFS, "templates/scrapbook.html"),
)

// ScrapbookCard is one printed memory.
type ScrapbookCard struct {
	Title       string
	DisplayDate string
	Location    string
	Caption     string
	Media       []*model.MeetingMedia
}

type scrapbookPage struct {
	CircleName    string
	Year          string
	Cards         []ScrapbookCard
	GeneratedYear int
}

// IScrapbookService renders the printable export of a circle
type IScrapbookService interface {
	Render(ctx context.Context, sess session.Session, circleID, year string) ([]byte, error)
}

type ScrapbookService struct {
	repos *repository.Repositories
	now   func() time.Time
}

func NewScrapbookService(repos *repository.Repositories) IScrapbookService {
	return &ScrapbookService{repos: repos, now: time.Now}
}

func scrapbookCaption(participants int) string {
	return fmt.Sprintf("A moment frozen in time. %d friends unified on this day.", participants)
}

// displayDate 例如 "June 10, 2024"，无法解析时原样返回
func displayDate(date string) string {
	t, err := time.Parse(utils.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("January 2, 2006")
}

func (s *ScrapbookService) Render(ctx context.Context, sess session.Session, circleID, year string) ([]byte, error) {
	const op = "service.Scrapbook.Render"
	year, err := normalizeYear(op, year)
	if err != nil {
		return nil, err
	}
	data, err := loadCircle(ctx, op, s.repos, sess, circleID)
	if err != nil {
		return nil, err
	}
	meetings := stats.FilterByYear(data.meetings, year)

	ids := make([]string, len(meetings))
	for i, m := range meetings {
		ids[i] = m.ID
	}
	media, err := s.repos.Meetings.Media(ctx, ids)
	if err != nil {
		return nil, err
	}
	byMeeting := make(map[string][]*model.MeetingMedia)
	for _, m := range media {
		byMeeting[m.MeetingID] = append(byMeeting[m.MeetingID], m)
	}

	page := scrapbookPage{CircleName: data.circle.Name, Year: year, GeneratedYear: s.now().Year()}
	for _, m := range meetings {
		card := ScrapbookCard{
			Title:       m.Title,
			DisplayDate: displayDate(m.Date),
			Location:    m.Location,
			Caption:     scrapbookCaption(len(data.att[m.ID])),
			Media:       byMeeting[m.ID],
		}
		// 旧数据只有 media_url
		if len(card.Media) == 0 && m.MediaURL != "" {
			card.Media = []*model.MeetingMedia{{MediaURL: m.MediaURL, MediaType: model.MediaTypeImage}}
		}
		page.Cards = append(page.Cards, card)
	}

	var buf bytes.Buffer
	if err := scrapbookTemplate.Execute(&buf, page); err != nil {
		return nil, apperr.Store(op, err)
	}
	return buf.Bytes(), nil
}
