package middleware

import (
	"errors"
	"fmt"
	"strings"

	"menu-analyzer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

// Authenticator 驗證 HS256 bearer token，只驗證不簽發
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator secret 為空時所有 token 都視為無效
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// ParseToken 驗證 token 並回傳使用者 ID（sub）
func (a *Authenticator) ParseToken(tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("authentication is not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid token: missing subject")
	}
	return claims.Subject, nil
}

// Authenticate 解析 Authorization header；required 為 false 時沒帶 token 也放行
func Authenticate(a *Authenticator, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				common.WriteError(c, common.ErrUnauthenticated, false)
				return
			}
			c.Next()
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			common.WriteError(c, common.Unauthenticated("Invalid authorization header"), false)
			return
		}

		userID, err := a.ParseToken(strings.TrimSpace(tokenString))
		if err != nil {
			common.WriteError(c, common.Unauthenticated("Invalid or expired token"), false)
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// RequireUser 必須已登入
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			common.WriteError(c, common.ErrUnauthenticated, false)
			return
		}
		c.Next()
	}
}

// UserID 取得已驗證的使用者 ID，未登入為空字串
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
