package jwt

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrTokenNotYetValid  = errors.New("token not yet valid")
	ErrRefreshWindow     = errors.New("token expired beyond refresh window")
	ErrRefreshNotAllowed = errors.New("token not yet eligible for refresh")
)

// Claims 会话令牌声明，ID (jti) 用于注销
type Claims struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	jwt.RegisteredClaims
}

// TokenID returns the jti the token was issued with.
func (c *Claims) TokenID() string {
	return c.ID
}

// ExpiresAtTime is the zero time when the token carries no exp claim.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

type TokenManager struct {
	secret     []byte
	expireDur  time.Duration
	refreshDur time.Duration
	now        func() time.Time
}

func NewTokenManager(secret string, expireHours, refreshHours int) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		expireDur:  time.Duration(expireHours) * time.Hour,
		refreshDur: time.Duration(refreshHours) * time.Hour,
		now:        time.Now,
	}
}

// GenerateToken 签发新令牌，每次都分配新的 jti
func (tm *TokenManager) GenerateToken(userID, username, email string) (string, *Claims, error) {
	now := tm.now()

	claims := &Claims{
		UserID:    userID,
		UserName:  username,
		UserEmail: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expireDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", nil, err
	}
	return tokenString, claims, nil
}

func (tm *TokenManager) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return tm.secret, nil
}

func (tm *TokenManager) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, tm.keyFunc, jwt.WithTimeFunc(tm.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RefreshToken 在刷新窗口内重新签发令牌：
// 未过期但剩余时间不超过 refreshDur，或已过期但过期不超过 refreshDur。
// 返回旧令牌的声明，调用方据此注销旧 jti。
func (tm *TokenManager) RefreshToken(tokenString string) (string, *Claims, *Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, tm.keyFunc, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", nil, nil, ErrInvalidToken
	}

	old, ok := token.Claims.(*Claims)
	if !ok || old.ExpiresAt == nil || old.UserID == "" {
		return "", nil, nil, ErrInvalidToken
	}

	now := tm.now()
	expiryTime := old.ExpiresAt.Time
	if now.After(expiryTime) {
		if now.Sub(expiryTime) > tm.refreshDur {
			return "", nil, nil, ErrRefreshWindow
		}
	} else if expiryTime.Sub(now) > tm.refreshDur {
		return "", nil, nil, ErrRefreshNotAllowed
	}

	fresh, claims, err := tm.GenerateToken(old.UserID, old.UserName, old.UserEmail)
	if err != nil {
		return "", nil, nil, err
	}
	return fresh, claims, old, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
