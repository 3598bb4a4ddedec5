// Package service 实现各业务模块：会话、圈子、聚会记录、互动、统计、徽章、通知与个人资料。
//
// 所有方法都显式接收 session.Session，不从全局状态读取当前用户。
// 错误统一为 *apperr.Error，由 handler 层映射为 HTTP 状态码。
package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/repository"
	"github.com/Gopher0727/SocialSync/internal/session"
)

func requireSession(op string, sess session.Session) error {
	if !sess.Valid() {
		return apperr.Unauthenticated(op, "sign in required")
	}
	return nil
}

// requireMember fails with Forbidden unless userID belongs to the circle.
// A missing circle is NotFound.
func requireMember(ctx context.Context, op string, circles repository.ICircleRepository, circleID, userID string) error {
	if _, err := circles.FindByID(ctx, circleID); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.NotFound(op, "circle not found")
		}
		return err
	}
	ok, err := circles.IsMember(ctx, circleID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden(op, "you are not a member of this circle")
	}
	return nil
}

// actorName reads the caller's current display name from the profile row.
// The name in the token is only a fallback: it goes stale after a rename.
func actorName(ctx context.Context, profiles repository.IProfileRepository, sess session.Session) string {
	name := sess.Name
	if p, err := profiles.FindByID(ctx, sess.UserID); err == nil {
		name = p.Name
	}
	if strings.TrimSpace(name) == "" {
		return "Someone"
	}
	return name
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
