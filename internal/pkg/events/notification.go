// Package events 定义通知事件的两种编码：kafka 上用 protobuf (structpb)，
// redis/websocket 上用 JSON 帧。
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Gopher0727/SocialSync/internal/model"
)

// FrameNotification is the websocket frame type for a new notification.
const FrameNotification = "notification"

var ErrMalformedEvent = errors.New("malformed notification event")

type Notification struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Link      string         `json:"link"`
	Payload   map[string]any `json:"payload,omitempty"`
	IsRead    bool           `json:"is_read"`
	CreatedAt time.Time      `json:"created_at"`
}

func FromModel(n *model.Notification) Notification {
	return Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Content:   n.Content,
		Link:      n.Link,
		Payload:   n.Payload,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// Marshal encodes the event as a protobuf Struct for the kafka topic.
func (n Notification) Marshal() ([]byte, error) {
	fields := map[string]any{
		"id":         n.ID,
		"user_id":    n.UserID,
		"type":       n.Type,
		"title":      n.Title,
		"content":    n.Content,
		"link":       n.Link,
		"is_read":    n.IsRead,
		"created_at": n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if len(n.Payload) > 0 {
		fields["payload"] = n.Payload
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode notification %s: %w", n.ID, err)
	}
	return proto.Marshal(s)
}

func Unmarshal(data []byte) (Notification, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	m := s.AsMap()

	str := func(key string) string {
		v, _ := m[key].(string)
		return v
	}
	n := Notification{
		ID:      str("id"),
		UserID:  str("user_id"),
		Type:    str("type"),
		Title:   str("title"),
		Content: str("content"),
		Link:    str("link"),
	}
	n.IsRead, _ = m["is_read"].(bool)
	if p, ok := m["payload"].(map[string]any); ok {
		n.Payload = p
	}
	if ts := str("created_at"); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Notification{}, fmt.Errorf("%w: created_at %q", ErrMalformedEvent, ts)
		}
		n.CreatedAt = t
	}
	if n.ID == "" || n.UserID == "" {
		return Notification{}, fmt.Errorf("%w: missing id or user_id", ErrMalformedEvent)
	}
	return n, nil
}

// Frame is what a websocket client receives.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// JSON encodes the event as a websocket frame.
func (n Notification) JSON() ([]byte, error) {
	return json.Marshal(Frame{Type: FrameNotification, Data: n})
}
