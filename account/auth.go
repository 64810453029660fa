package account

import (
	"context"

	"exchange-terminal-go/infrastructure/logger"
)

// User 认证服务返回的用户信息。
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	TwoFAEnabled  bool   `json:"twoFAEnabled"`
}

// RegisterInput 注册参数；Phone 与 ReferralCode 可选。
type RegisterInput struct {
	Username     string
	Email        string
	Password     string
	Phone        string
	ReferralCode string
}

// LoginInput 登录参数；TwoFACode 仅在开启两步验证时必填。
type LoginInput struct {
	Email     string
	Password  string
	TwoFACode string
}

// AuthService 注册/登录。登录成功后把 token 写回客户端，
// 之后同一客户端上的钱包请求自动携带凭证。
type AuthService struct {
	gql *GraphQLClient
	log *logger.Logger
}

func NewAuthService(gql *GraphQLClient, log *logger.Logger) *AuthService {
	return &AuthService{gql: gql, log: log}
}

const registerMutation = `
mutation Register($username: String!, $email: String!, $password: String!, $phone: String, $referralCode: String) {
  register(username: $username, email: $email, password: $password, phone: $phone, referralCode: $referralCode) {
    id
    email
    username
  }
}`

const loginMutation = `
mutation Login($email: String!, $password: String!, $twoFACode: String) {
  login(email: $email, password: $password, twoFACode: $twoFACode) {
    token
    user {
      id
      email
      username
      emailVerified
      twoFAEnabled
    }
  }
}`

// Register 创建账户，返回服务端生成的用户信息。
func (a *AuthService) Register(ctx context.Context, in RegisterInput) (User, error) {
	vars := map[string]interface{}{
		"username": in.Username,
		"email":    in.Email,
		"password": in.Password,
	}
	if in.Phone != "" {
		vars["phone"] = in.Phone
	}
	if in.ReferralCode != "" {
		vars["referralCode"] = in.ReferralCode
	}

	var out struct {
		Register User `json:"register"`
	}
	if err := a.gql.Do(ctx, registerMutation, vars, &out); err != nil {
		return User{}, err
	}
	if a.log != nil {
		a.log.LogFeed("account_registered", "", map[string]interface{}{"email": in.Email})
	}
	return out.Register, nil
}

// Login 登录并建立会话；成功后客户端凭证被更新。
func (a *AuthService) Login(ctx context.Context, in LoginInput) (Session, error) {
	vars := map[string]interface{}{
		"email":    in.Email,
		"password": in.Password,
	}
	if in.TwoFACode != "" {
		vars["twoFACode"] = in.TwoFACode
	}

	var out struct {
		Login struct {
			Token string `json:"token"`
			User  User   `json:"user"`
		} `json:"login"`
	}
	if err := a.gql.Do(ctx, loginMutation, vars, &out); err != nil {
		return Session{}, err
	}

	a.gql.SetToken(out.Login.Token)
	if a.log != nil {
		a.log.LogFeed("account_login", "", map[string]interface{}{"user": out.Login.User.Username})
	}
	return NewSession(out.Login.Token, out.Login.User), nil
}

// Logout 丢弃本地凭证。
func (a *AuthService) Logout() {
	a.gql.SetToken("")
}
