package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Gopher0727/SocialSync/config"
	"github.com/Gopher0727/SocialSync/internal/model"
	"github.com/Gopher0727/SocialSync/internal/pkg/blob"
	"github.com/Gopher0727/SocialSync/internal/pkg/geocode"
	"github.com/Gopher0727/SocialSync/internal/pkg/mailer"
	"github.com/Gopher0727/SocialSync/internal/pkg/media"
	redis "github.com/Gopher0727/SocialSync/internal/pkg/redis"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/session"
	"github.com/Gopher0727/SocialSync/internal/store"
	"github.com/Gopher0727/SocialSync/middleware/jwt"
	"github.com/Gopher0727/SocialSync/utils/bloom"
	"github.com/Gopher0727/SocialSync/utils/snowflake"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []*model.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n *model.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return nil
}

func (p *recordingPublisher) Sent() []*model.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.Notification(nil), p.sent...)
}

type recordingMailer struct {
	mu      sync.Mutex
	invites []mailer.Invite
	err     error
}

func (m *recordingMailer) Enabled() bool { return true }

func (m *recordingMailer) SendInvite(_ context.Context, inv mailer.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invites = append(m.invites, inv)
	return m.err
}

type fakeGeocoder struct {
	address string
	places  []geocode.Place
	err     error
}

func (g *fakeGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	return g.address, g.err
}

func (g *fakeGeocoder) Search(context.Context, string) ([]geocode.Place, error) {
	return g.places, g.err
}

type fixture struct {
	db        *gorm.DB
	repos     *repository.Repositories
	redis     *redis.Client
	mr        *miniredis.Miniredis
	blobs     *blob.Local
	publisher *recordingPublisher
	mailer    *recordingMailer
	geocoder  *fakeGeocoder
	tokens    *jwt.TokenManager

	notifications INotificationService
	badges        IBadgeService
	auth          IAuthService
	circles       ICircleService
	meetings      IMeetingService
	engagement    IEngagementService
	analytics     IAnalyticsService
	scrapbook     IScrapbookService
	profiles      IProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(db) })

	mr := miniredis.RunT(t)
	rc := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })

	local, err := blob.NewLocal(config.LocalStorage{Root: filepath.Join(t.TempDir(), "blobs"), BaseURL: "/uploads"})
	require.NoError(t, err)
	ids, err := snowflake.NewGenerator(1)
	require.NoError(t, err)

	f := &fixture{
		db:        db,
		repos:     repository.New(db),
		redis:     rc,
		mr:        mr,
		blobs:     local,
		publisher: &recordingPublisher{},
		mailer:    &recordingMailer{},
		geocoder:  &fakeGeocoder{},
		tokens:    jwt.NewTokenManager("test-secret", 1, 2),
	}
	uploader := NewUploader(media.NewProcessor(config.MediaConfig{}), local, ids)
	cleaner := NewBlobCleaner(local, nil, nil)

	f.notifications = NewNotificationService(f.repos, f.publisher, nil)
	f.badges = NewBadgeService(f.repos, f.notifications, nil)
	f.auth = NewAuthService(f.repos, f.tokens, rc, f.badges, 2, nil)
	f.circles = NewCircleService(f.repos, rc, f.mailer, bloom.New(1000, 0.01), cleaner, "https://socialsync.test/", nil)
	f.meetings = NewMeetingService(f.repos, uploader, cleaner, f.geocoder, f.notifications, 5, nil)
	f.engagement = NewEngagementService(f.repos, f.notifications, nil)
	f.analytics = NewAnalyticsService(f.repos)
	f.scrapbook = NewScrapbookService(f.repos)
	f.profiles = NewProfileService(f.repos, uploader, nil)
	return f
}

// signUp creates an account and returns its session.
func (f *fixture) signUp(t *testing.T, name, email string) session.Session {
	t.Helper()
	res, err := f.auth.SignUp(context.Background(), &SignUpRequest{Email: email, Password: "password123", Name: name})
	require.NoError(t, err)
	return res.Session
}

func (f *fixture) circle(t *testing.T, owner session.Session, name string, members ...session.Session) *model.Circle {
	t.Helper()
	ctx := context.Background()
	c, err := f.circles.Create(ctx, owner, &CreateCircleRequest{Name: name})
	require.NoError(t, err)
	for _, m := range members {
		_, err := f.circles.Join(ctx, m, c.InviteCode)
		require.NoError(t, err)
	}
	return c
}

func (f *fixture) logMeeting(t *testing.T, sess session.Session, circleID, title, date string, participants ...string) *MeetingDetail {
	t.Helper()
	d, err := f.meetings.Log(context.Background(), sess, &MeetingInput{
		CircleID:       circleID,
		Title:          title,
		Date:           date,
		ParticipantIDs: participants,
	}, nil)
	require.NoError(t, err)
	return d
}

// pngBytes 生成噪点图，PNG 压不动，重新编码成 JPEG 一定更小
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewPCG(uint64(w), uint64(h)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			v := rng.Uint32()
			img.Set(x, y, color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
