package account

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session 登录后的会话：token + 从 JWT 解析出的过期时间。
// 这里只读取 exp，不做签名校验（校验在服务端）。
type Session struct {
	Token     string
	User      User
	ExpiresAt time.Time
}

var errNoExpiry = errors.New("session: token carries no exp claim")

// NewSession 从登录返回的 token 构造会话。token 不是合法 JWT
// 或缺少 exp 时 ExpiresAt 为零值，调用方按永不过期处理。
func NewSession(token string, user User) Session {
	s := Session{Token: token, User: user}
	if exp, err := tokenExpiry(token); err == nil {
		s.ExpiresAt = exp
	}
	return s
}

// Expired 判断会话是否已过期；无 exp 的会话永不过期。
func (s Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return now.After(s.ExpiresAt)
}

func tokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errNoExpiry
	}
	return exp.Time, nil
}
