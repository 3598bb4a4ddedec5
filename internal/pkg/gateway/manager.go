package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/SocialSync/config"
	redis "github.com/Gopher0727/SocialSync/internal/pkg/redis"
)

// ConnectionManager tracks live websocket connections per user and drops
// the ones whose heartbeat stopped.
type ConnectionManager struct {
	// userID -> connID -> connection
	connections map[string]map[string]*Connection
	mu          sync.RWMutex

	config      *config.WebsocketConfig
	redisClient redis.RedisClient
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewConnectionManager(ctx context.Context, cfg *config.WebsocketConfig, redisClient redis.RedisClient, logger *zap.Logger) *ConnectionManager {
	managerCtx, cancel := context.WithCancel(ctx)
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &ConnectionManager{
		connections: make(map[string]map[string]*Connection),
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
		ctx:         managerCtx,
		cancel:      cancel,
	}

	if cfg.HeartbeatInterval > 0 {
		cm.wg.Add(1)
		go cm.monitorHeartbeats()
	}
	return cm
}

func (cm *ConnectionManager) presenceTTL() time.Duration {
	return time.Duration(cm.config.HeartbeatInterval*2) * time.Second
}

// Add registers conn. When the user already holds MaxConnsPerUser
// connections the oldest one is closed.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	conns, ok := cm.connections[conn.UserID]
	if !ok {
		conns = make(map[string]*Connection)
		cm.connections[conn.UserID] = conns
	}
	var evicted []*Connection
	if limit := cm.config.MaxConnsPerUser; limit > 0 {
		for len(conns) >= limit {
			oldest := oldestOf(conns)
			delete(conns, oldest.ID)
			evicted = append(evicted, oldest)
		}
	}
	conns[conn.ID] = conn
	cm.mu.Unlock()

	for _, old := range evicted {
		cm.logger.Info("closing oldest connection over per-user limit",
			zap.String("user_id", old.UserID), zap.String("conn_id", old.ID))
		old.Close()
	}

	if err := cm.redisClient.SetUserOnline(cm.ctx, conn.UserID, cm.presenceTTL()); err != nil {
		// presence 只是辅助信息，失败不影响推送
		cm.logger.Warn("failed to set user online", zap.String("user_id", conn.UserID), zap.Error(err))
	}
}

func oldestOf(conns map[string]*Connection) *Connection {
	var oldest *Connection
	for _, c := range conns {
		if oldest == nil || c.createdAt.Before(oldest.createdAt) {
			oldest = c
		}
	}
	return oldest
}

// Remove closes conn and forgets it. Safe to call more than once.
func (cm *ConnectionManager) Remove(conn *Connection) {
	cm.mu.Lock()
	remaining := -1
	if conns, ok := cm.connections[conn.UserID]; ok {
		if _, ok := conns[conn.ID]; ok {
			delete(conns, conn.ID)
			remaining = len(conns)
			if remaining == 0 {
				delete(cm.connections, conn.UserID)
			}
		}
	}
	cm.mu.Unlock()

	if err := conn.Close(); err != nil {
		cm.logger.Debug("close connection", zap.String("conn_id", conn.ID), zap.Error(err))
	}
	if remaining != 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cm.redisClient.RemoveUserOnline(ctx, conn.UserID); err != nil {
		cm.logger.Warn("failed to remove user online status", zap.String("user_id", conn.UserID), zap.Error(err))
	}
}

// ConnectionsOf returns a snapshot of the user's connections, oldest first.
func (cm *ConnectionManager) ConnectionsOf(userID string) []*Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	conns := make([]*Connection, 0, len(cm.connections[userID]))
	for _, c := range cm.connections[userID] {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].createdAt.Before(conns[j].createdAt) })
	return conns
}

func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	n := 0
	for _, conns := range cm.connections {
		n += len(conns)
	}
	return n
}

func (cm *ConnectionManager) monitorHeartbeats() {
	defer cm.wg.Done()

	ticker := time.NewTicker(time.Duration(cm.config.HeartbeatInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-ticker.C:
			cm.checkHeartbeats(cm.presenceTTL())
		}
	}
}

// checkHeartbeats closes connections silent for longer than timeout and
// refreshes presence of everyone else.
func (cm *ConnectionManager) checkHeartbeats(timeout time.Duration) {
	var dead []*Connection
	alive := make(map[string]struct{})

	cm.mu.RLock()
	for userID, conns := range cm.connections {
		for _, c := range conns {
			if c.IsAlive(timeout) {
				alive[userID] = struct{}{}
			} else {
				dead = append(dead, c)
			}
		}
	}
	cm.mu.RUnlock()

	for _, c := range dead {
		cm.logger.Info("removing dead connection", zap.String("user_id", c.UserID), zap.String("conn_id", c.ID))
		cm.Remove(c)
	}
	for userID := range alive {
		if err := cm.redisClient.SetUserOnline(cm.ctx, userID, cm.presenceTTL()); err != nil {
			cm.logger.Warn("failed to refresh online status", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// Shutdown closes every connection and stops the heartbeat monitor.
func (cm *ConnectionManager) Shutdown() error {
	cm.cancel()

	cm.mu.Lock()
	all := cm.connections
	cm.connections = make(map[string]map[string]*Connection)
	cm.mu.Unlock()

	for _, conns := range all {
		for _, c := range conns {
			c.Close()
		}
	}
	cm.wg.Wait()
	return nil
}
