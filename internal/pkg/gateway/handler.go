// Package gateway 通过 websocket 把通知实时推送给在线用户。
//
// 每个节点都对 notifications:* 做模式订阅，收到消息后推给本节点上该用户的所有连接。
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/config"
	redis "github.com/Gopher0727/SocialSync/internal/pkg/redis"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// Hub upgrades requests to websockets and fans redis notifications out to them.
type Hub struct {
	connManager *ConnectionManager
	redisClient redis.RedisClient
	config      *config.WebsocketConfig
	upgrader    websocket.Upgrader
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub builds a hub. checkOrigin may be nil to accept every origin.
func NewHub(ctx context.Context, cfg *config.WebsocketConfig, redisClient redis.RedisClient, logger *zap.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		connManager: NewConnectionManager(hubCtx, cfg, redisClient, logger),
		redisClient: redisClient,
		config:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
		ctx:    hubCtx,
		cancel: cancel,
	}
}

func (h *Hub) Connections() *ConnectionManager {
	return h.connManager
}

// Subscription is a live websocket of one user. Close must be called on
// every path once Subscribe succeeded.
type Subscription struct {
	hub  *Hub
	conn *Connection
	once sync.Once
}

// Subscribe upgrades the request and registers the connection. On failure the
// upgrader has already written an HTTP error.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, userID string) (*Subscription, error) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	conn := NewConnection(h.ctx, userID, ws)
	h.connManager.Add(conn)
	h.logger.Debug("websocket connected", zap.String("user_id", userID), zap.String("conn_id", conn.ID))
	return &Subscription{hub: h, conn: conn}, nil
}

// Run pumps frames until the client goes away or the hub shuts down.
func (s *Subscription) Run() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.hub.writePump(s.conn)
	}()
	s.hub.readPump(s.conn)
	// readPump 返回后关闭连接，writePump 随之退出
	s.Close()
	<-done
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.connManager.Remove(s.conn)
		s.hub.logger.Debug("websocket closed", zap.String("user_id", s.conn.UserID), zap.String("conn_id", s.conn.ID))
	})
}

func (h *Hub) readTimeout() time.Duration {
	if h.config.ConnectionTimeout > 0 {
		return time.Duration(h.config.ConnectionTimeout) * time.Second
	}
	return 60 * time.Second
}

// readPump 只处理心跳；客户端不会通过 websocket 上行业务数据
func (h *Hub) readPump(conn *Connection) {
	conn.Conn.SetReadLimit(maxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(h.readTimeout()))
	conn.Conn.SetPongHandler(func(string) error {
		conn.UpdateHeartbeat()
		return conn.Conn.SetReadDeadline(time.Now().Add(h.readTimeout()))
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !conn.IsClosed() {
				h.logger.Debug("websocket read error", zap.String("user_id", conn.UserID), zap.Error(err))
			}
			return
		}
		conn.UpdateHeartbeat()
		conn.Conn.SetReadDeadline(time.Now().Add(h.readTimeout()))
	}
}

func (h *Hub) writePump(conn *Connection) {
	interval := time.Duration(h.config.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.Context().Done():
			return
		case frame, ok := <-conn.Send:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.logger.Debug("websocket write failed", zap.String("user_id", conn.UserID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartSubscriber pattern-subscribes to the per-user notification channels.
// It returns once redis confirmed the subscription.
func (h *Hub) StartSubscriber(pattern string) error {
	pubsub, err := h.redisClient.PSubscribe(h.ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to subscribe to pattern %s: %w", pattern, err)
	}

	h.wg.Add(1)
	go h.receiveMessages(pubsub)

	h.logger.Info("subscribed to redis pattern", zap.String("pattern", pattern))
	return nil
}

func (h *Hub) receiveMessages(pubsub *redislib.PubSub) {
	defer h.wg.Done()
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				// 订阅断开后不再推送，直到进程重启
				h.logger.Warn("redis pub/sub channel closed")
				return
			}
			h.deliver(msg)
		}
	}
}

// deliver pushes the raw payload (already a JSON frame) to every connection
// of the channel's user on this node.
func (h *Hub) deliver(msg *redislib.Message) int {
	userID, ok := redis.UserFromChannel(msg.Channel)
	if !ok {
		return 0
	}
	frame := []byte(msg.Payload)
	delivered := 0
	for _, conn := range h.connManager.ConnectionsOf(userID) {
		if conn.Enqueue(frame) {
			delivered++
		} else {
			h.logger.Warn("dropping frame for slow connection",
				zap.String("user_id", userID), zap.String("conn_id", conn.ID))
		}
	}
	return delivered
}

// Shutdown stops the subscriber and closes every connection.
func (h *Hub) Shutdown() error {
	h.cancel()
	h.wg.Wait()
	return h.connManager.Shutdown()
}
