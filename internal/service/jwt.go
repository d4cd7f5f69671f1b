package service

import (
	"errors"
	"time"

	"github.com/waimai-next/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// UserJWTClaims 用户 JWT 载荷
type UserJWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IssueUserToken 签发用户 Token（接入环境由上游签发，此处供种子工具与测试使用）
func IssueUserToken(secretKey string, user *models.User, expireHours int) (string, error) {
	if secretKey == "" {
		return "", errors.New("jwt secret missing")
	}
	if user == nil || user.ID == 0 {
		return "", errors.New("user required")
	}
	if expireHours <= 0 {
		expireHours = 24
	}
	now := time.Now()
	claims := UserJWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secretKey))
}
