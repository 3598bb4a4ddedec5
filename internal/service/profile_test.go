package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/SocialSync/internal/apperr"
)

func strPtr(s string) *string { return &s }

func TestProfileService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signUp(t, "Aiko", "aiko@example.com")
	b := f.signUp(t, "Ben", "ben@example.com")

	t.Run("partial update", func(t *testing.T) {
		p, err := f.profiles.Update(ctx, a, &UpdateProfileRequest{Bio: strPtr(" likes ramen "), FavoriteSpot: strPtr("Gion")})
		require.NoError(t, err)
		assert.Equal(t, "likes ramen", p.Bio)
		assert.Equal(t, "Gion", p.FavoriteSpot)
		assert.Equal(t, "Aiko", p.Name)
	})

	t.Run("name cannot be blank", func(t *testing.T) {
		_, err := f.profiles.Update(ctx, a, &UpdateProfileRequest{Name: strPtr("  ")})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("view another profile", func(t *testing.T) {
		p, err := f.profiles.Get(ctx, a, b.UserID)
		require.NoError(t, err)
		assert.Equal(t, "Ben", p.Name)

		_, err = f.profiles.Get(ctx, a, "missing")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("avatar", func(t *testing.T) {
		p, err := f.profiles.UploadAvatar(ctx, a, Upload{Filename: "me.png", Body: bytes.NewReader(pngBytes(t, 32, 32))})
		require.NoError(t, err)
		assert.Equal(t, "/uploads/avatars/"+a.UserID+".jpg", p.AvatarURL)
		assert.FileExists(t, f.objectFile(p.AvatarURL))

		_, err = f.profiles.UploadAvatar(ctx, a, Upload{Filename: "me.txt", Body: strings.NewReader("hello")})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}
