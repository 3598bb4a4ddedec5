// Package session 保存已认证用户的显式会话，由网关中间件建立，服务层按参数接收。
package session

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Session identifies the signed-in user for the lifetime of one token.
type Session struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) Valid() bool {
	return s.UserID != ""
}

type ctxKey struct{}

// ginKey is where the session gate stores the session on a gin context.
const ginKey = "session"

func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok && s.Valid()
}

// Set 由 SessionGate 调用，同时写入 user_id 以兼容按 user_id 取值的中间件
func Set(c *gin.Context, s Session) {
	c.Set(ginKey, s)
	c.Set("user_id", s.UserID)
	c.Request = c.Request.WithContext(NewContext(c.Request.Context(), s))
}

func FromGin(c *gin.Context) (Session, bool) {
	v, ok := c.Get(ginKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok && s.Valid()
}
