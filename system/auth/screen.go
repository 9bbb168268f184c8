package auth

import (
	"context"

	"neuralmail/system/auth/providers"
)

// LoginScreen 登录界面
type LoginScreen struct {
	DefaultEmail string
	svc          Service
	catalog      *providers.Catalog
}

func (s *LoginScreen) ScreenName() string { return "Login" }

// Submit 提交登录
func (s *LoginScreen) Submit(ctx context.Context, email, password string) error {
	return s.svc.Login(ctx, email, password)
}

// Suggestions 邮箱输入框的域名补全
func (s *LoginScreen) Suggestions(input string) []string {
	return s.catalog.SuggestDomains(input, 5)
}

// Provider 输入邮箱对应的服务商，用于展示服务器与提示
func (s *LoginScreen) Provider(email string) (providers.Provider, bool) {
	return s.catalog.FindProvider(email)
}

// RegisterScreen 注册界面
type RegisterScreen struct{}

func (s *RegisterScreen) ScreenName() string { return "Register" }
