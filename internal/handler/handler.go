// Package handler 把 HTTP 请求翻译成服务调用，并按错误分类返回状态码。
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/SocialSync/internal/apperr"
	"github.com/Gopher0727/SocialSync/internal/session"
)

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAlreadyExists:
		return http.StatusConflict
	case apperr.KindExternalService:
		return http.StatusBadGateway
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": msg} and records err on the context for the access log.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := StatusOf(err)
	msg := apperr.Message(err)
	if apperr.KindOf(err) == apperr.KindUnknown {
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// currentSession reads the session placed by the gate. Routes without the gate answer 401.
func currentSession(c *gin.Context) (session.Session, bool) {
	sess, ok := session.FromGin(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return sess, ok
}
