package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/model"
)

func TestEngagementService_Comments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signUp(t, "Aiko", "aiko@example.com")
	b := f.signUp(t, "Ben", "ben@example.com")
	outsider := f.signUp(t, "Cleo", "cleo@example.com")
	c := f.circle(t, a, "Kyoto Crew", b)
	m := f.logMeeting(t, a, c.ID, "Ramen", "2024-06-10", a.UserID, b.UserID)

	t.Run("comment notifies the creator", func(t *testing.T) {
		before := len(f.publisher.Sent())
		_, err := f.engagement.AddComment(ctx, b, m.ID, "What a night in Kyoto, best ramen ever")
		require.NoError(t, err)

		sent := f.publisher.Sent()
		require.Len(t, sent, before+1)
		n := sent[len(sent)-1]
		assert.Equal(t, a.UserID, n.UserID)
		assert.Equal(t, model.NotificationComment, n.Type)
		assert.Equal(t, "New Comment", n.Title)
		assert.Equal(t, `Ben commented on your memory: "What a night in Kyot..."`, n.Content)
		assert.Equal(t, "#meeting-"+m.ID, n.Link)

		list, err := f.notifications.List(ctx, a)
		require.NoError(t, err)
		assert.Equal(t, 1, list.UnreadCount)
	})

	t.Run("own comment does not notify", func(t *testing.T) {
		before := len(f.publisher.Sent())
		_, err := f.engagement.AddComment(ctx, a, m.ID, "thanks!")
		require.NoError(t, err)
		assert.Len(t, f.publisher.Sent(), before)
	})

	t.Run("listed ascending with authors", func(t *testing.T) {
		comments, err := f.engagement.ListComments(ctx, a, m.ID)
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, "Ben", comments[0].AuthorName)
		assert.Equal(t, "Aiko", comments[1].AuthorName)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := f.engagement.AddComment(ctx, a, m.ID, "   ")
		assert.ErrorIs(t, err, apperr.ErrValidation)
		_, err = f.engagement.AddComment(ctx, a, m.ID, strings.Repeat("é", MaxCommentRunes+1))
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("outsiders cannot comment", func(t *testing.T) {
		_, err := f.engagement.AddComment(ctx, outsider, m.ID, "hi")
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("delete own only", func(t *testing.T) {
		comments, err := f.engagement.ListComments(ctx, a, m.ID)
		require.NoError(t, err)
		bens := comments[0].ID
		assert.ErrorIs(t, f.engagement.DeleteComment(ctx, a, bens), apperr.ErrForbidden)
		require.NoError(t, f.engagement.DeleteComment(ctx, b, bens))
		assert.ErrorIs(t, f.engagement.DeleteComment(ctx, b, bens), apperr.ErrNotFound)
	})
}

func TestEngagementService_Reactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signUp(t, "Aiko", "aiko@example.com")
	b := f.signUp(t, "Ben", "ben@example.com")
	c := f.circle(t, a, "Kyoto Crew", b)
	m := f.logMeeting(t, a, c.ID, "Ramen", "2024-06-10", a.UserID, b.UserID)

	res, err := f.engagement.ToggleReaction(ctx, a, m.ID, "🔥")
	require.NoError(t, err)
	assert.True(t, res.Added)

	before := len(f.publisher.Sent())
	res, err = f.engagement.ToggleReaction(ctx, b, m.ID, "🔥")
	require.NoError(t, err)
	assert.True(t, res.Added)
	require.Len(t, res.Summary, 1)
	assert.Equal(t, 2, res.Summary[0].Count)
	assert.True(t, res.Summary[0].Reacted)

	sent := f.publisher.Sent()
	require.Len(t, sent, before+1)
	assert.Equal(t, "Ben reacted with 🔥 to your memory.", sent[len(sent)-1].Content)
	assert.Equal(t, model.NotificationReaction, sent[len(sent)-1].Type)

	t.Run("toggling removes only the caller's row", func(t *testing.T) {
		res, err := f.engagement.ToggleReaction(ctx, b, m.ID, "🔥")
		require.NoError(t, err)
		assert.False(t, res.Added)
		require.Len(t, res.Summary, 1)
		assert.Equal(t, 1, res.Summary[0].Count)
		assert.False(t, res.Summary[0].Reacted)

		summary, err := f.engagement.Reactions(ctx, a, m.ID)
		require.NoError(t, err)
		assert.True(t, summary[0].Reacted)
	})

	t.Run("empty emoji", func(t *testing.T) {
		_, err := f.engagement.ToggleReaction(ctx, a, m.ID, " ")
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestSummarizeReactions(t *testing.T) {
	reactions := []*model.Reaction{
		{UserID: "a", Emoji: "❤️"},
		{UserID: "b", Emoji: "🔥"},
		{UserID: "c", Emoji: "❤️"},
	}
	got := SummarizeReactions(reactions, "c")
	require.Len(t, got, 2)
	assert.Equal(t, ReactionSummary{Emoji: "❤️", Count: 2, Reacted: true}, *got[0])
	assert.Equal(t, ReactionSummary{Emoji: "🔥", Count: 1, Reacted: false}, *got[1])

	assert.Empty(t, SummarizeReactions(nil, "a"))
}

func TestNotificationsUseCurrentName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signUp(t, "Aiko", "aiko@example.com")
	b := f.signUp(t, "Ben", "ben@example.com")
	c := f.circle(t, a, "Kyoto Crew", b)
	m := f.logMeeting(t, a, c.ID, "Ramen", "2024-06-10", a.UserID, b.UserID)

	// 改名后会话里仍是旧名字
	newName := "Benji"
	_, err := f.profiles.Update(ctx, b, &UpdateProfileRequest{Name: &newName})
	require.NoError(t, err)
	require.Equal(t, "Ben", b.Name)

	last := func(t *testing.T) *model.Notification {
		t.Helper()
		sent := f.publisher.Sent()
		require.NotEmpty(t, sent)
		return sent[len(sent)-1]
	}

	t.Run("comment", func(t *testing.T) {
		_, err := f.engagement.AddComment(ctx, b, m.ID, "see you next time")
		require.NoError(t, err)
		assert.Equal(t, `Benji commented on your memory: "see you next time..."`, last(t).Content)
	})

	t.Run("reaction", func(t *testing.T) {
		_, err := f.engagement.ToggleReaction(ctx, b, m.ID, "🎉")
		require.NoError(t, err)
		assert.Equal(t, "Benji reacted with 🎉 to your memory.", last(t).Content)
	})

	t.Run("meeting", func(t *testing.T) {
		f.logMeeting(t, b, c.ID, "Tea", "2024-06-12", a.UserID, b.UserID)
		assert.Equal(t, `Benji added you to "Tea".`, last(t).Content)
	})

	t.Run("email invite", func(t *testing.T) {
		_, err := f.circles.InviteByEmail(ctx, b, c.ID, "dana@example.com")
		require.NoError(t, err)
		require.NotEmpty(t, f.mailer.invites)
		assert.Equal(t, "Benji", f.mailer.invites[len(f.mailer.invites)-1].InviterName)
	})
}
