package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/SocialSync/internal/apperr"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.Validation("op", "bad"), http.StatusBadRequest},
		{"not found", apperr.NotFound("op", "missing"), http.StatusNotFound},
		{"already exists", apperr.AlreadyExists("op", "dup"), http.StatusConflict},
		{"store", apperr.Store("op", errors.New("disk full")), http.StatusInternalServerError},
		{"external", apperr.ExternalService("op", errors.New("timeout")), http.StatusBadGateway},
		{"forbidden", apperr.Forbidden("op", "no"), http.StatusForbidden},
		{"unauthenticated", apperr.Unauthenticated("op", "who"), http.StatusUnauthorized},
		{"wrapped", errors.Join(errors.New("ctx"), apperr.NotFound("op", "missing")), http.StatusNotFound},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	respond := func(err error) (int, string, *gin.Context) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, err)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w.Code, body["error"], c
	}

	t.Run("store message is surfaced", func(t *testing.T) {
		code, msg, c := respond(apperr.Store("repo.create", errors.New("constraint failed")))
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, "constraint failed", msg)
		assert.Len(t, c.Errors, 1)
	})

	t.Run("unknown errors are hidden", func(t *testing.T) {
		code, msg, _ := respond(errors.New("secret internals"))
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, "internal server error", msg)
	})

	t.Run("missing session", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		_, ok := currentSession(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
