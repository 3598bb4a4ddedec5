package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/SocialSync/config"
	redis "github.com/Gopher0727/SocialSync/internal/pkg/redis"
)

type fixture struct {
	hub *Hub
	rc  *redis.Client
	srv *httptest.Server
}

func newFixture(t *testing.T, cfg *config.WebsocketConfig) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { rc.Close() })

	hub := NewHub(context.Background(), cfg, rc, nil, nil)
	require.NoError(t, hub.StartSubscriber(redis.NotificationPattern))
	t.Cleanup(func() { hub.Shutdown() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, err := hub.Subscribe(w, r, r.URL.Query().Get("user"))
		if err != nil {
			return
		}
		defer sub.Close()
		sub.Run()
	}))
	t.Cleanup(srv.Close)

	return &fixture{hub: hub, rc: rc, srv: srv}
}

func (f *fixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/?user=" + userID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func wsConfig() *config.WebsocketConfig {
	return &config.WebsocketConfig{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		HeartbeatInterval: 30,
		ConnectionTimeout: 60,
		MaxConnsPerUser:   2,
	}
}

func TestHub_DeliversToUser(t *testing.T) {
	f := newFixture(t, wsConfig())
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")

	require.Eventually(t, func() bool { return f.hub.Connections().ConnectionCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	online, err := f.rc.IsUserOnline(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, online)

	frame := `{"type":"notification","data":{"id":"n-1"}}`
	require.NoError(t, f.rc.PublishNotification(ctx, "alice", []byte(frame)))

	alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := alice.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, frame, string(data))

	// bob 不应收到 alice 的通知
	bob.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err = bob.ReadMessage()
	assert.Error(t, err)
}

func TestHub_DisconnectCleansUp(t *testing.T) {
	f := newFixture(t, wsConfig())
	alice := f.dial(t, "alice")
	require.Eventually(t, func() bool { return f.hub.Connections().ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.Close())

	require.Eventually(t, func() bool { return f.hub.Connections().ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	online, err := f.rc.IsUserOnline(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestHub_EvictsOldestOverLimit(t *testing.T) {
	f := newFixture(t, wsConfig())
	first := f.dial(t, "alice")
	require.Eventually(t, func() bool { return f.hub.Connections().ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	f.dial(t, "alice")
	require.Eventually(t, func() bool { return f.hub.Connections().ConnectionCount() == 2 }, 2*time.Second, 10*time.Millisecond)
	f.dial(t, "alice")

	// 第一个连接被服务端关闭
	first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return len(f.hub.Connections().ConnectionsOf("alice")) == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DeliverIgnoresForeignChannels(t *testing.T) {
	f := newFixture(t, wsConfig())
	assert.Equal(t, 0, f.hub.deliver(&goredis.Message{Channel: "presence:alice", Payload: "{}"}))
	assert.Equal(t, 0, f.hub.deliver(&goredis.Message{Channel: "notifications:nobody", Payload: "{}"}))
}

func TestConnectionManager_CheckHeartbeats(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer rc.Close()

	cfg := wsConfig()
	cfg.HeartbeatInterval = 0 // 不启动后台监控，手动触发
	cm := NewConnectionManager(context.Background(), cfg, rc, nil)
	defer cm.Shutdown()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		require.NoError(t, err)
		conn := NewConnection(context.Background(), "alice", ws)
		conn.heartbeatMu.Lock()
		conn.lastHeartbeat = time.Now().Add(-time.Hour)
		conn.heartbeatMu.Unlock()
		cm.Add(conn)
	}))
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return cm.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	cm.checkHeartbeats(time.Minute)
	assert.Equal(t, 0, cm.ConnectionCount())
}
