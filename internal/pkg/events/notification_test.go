package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/SocialSync/internal/model"
)

func TestNotificationWireFormat(t *testing.T) {
	created := time.Date(2024, 6, 10, 9, 30, 0, 123, time.UTC)
	n := FromModel(&model.Notification{
		ID:        "n1",
		UserID:    "u1",
		Type:      model.NotificationBadge,
		Title:     "New Badge Unlocked!",
		Content:   `Congrats! You've earned the "Regular" badge.`,
		Link:      "#trophy-room",
		Payload:   map[string]any{"badge_id": "b1"},
		CreatedAt: created,
	})

	data, err := n.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, n.Title, got.Title)
	assert.Equal(t, "b1", got.Payload["badge_id"])
	assert.True(t, created.Equal(got.CreatedAt))
	assert.False(t, got.IsRead)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte{0xff, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrMalformedEvent)

	empty, err := Notification{}.Marshal()
	require.NoError(t, err)
	_, err = Unmarshal(empty)
	assert.ErrorIs(t, err, ErrMalformedEvent)
}

func TestJSONFrame(t *testing.T) {
	data, err := Notification{ID: "n1", UserID: "u1", Title: "New Comment"}.JSON()
	require.NoError(t, err)

	var frame struct {
		Type string       `json:"type"`
		Data Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, FrameNotification, frame.Type)
	assert.Equal(t, "New Comment", frame.Data.Title)
}
