package auth

import (
	"context"
)

// 路由
const (
	RouteLogin    = "/auth/login"
	RouteRegister = "/auth/register"
)

// User 当前登录用户，保存在 user_profile 表
type User struct {
	ID        string  `json:"id" gorm:"column:id;primaryKey"`
	Email     string  `json:"email" gorm:"column:email"`
	Nickname  *string `json:"nickname,omitempty" gorm:"column:nickname"`
	AvatarURL *string `json:"avatarURL,omitempty" gorm:"column:avatarURL"`
}

func (User) TableName() string  { return "user_profile" }
func (User) PrimaryKey() string { return "id" }

// Service 认证服务，管理登录状态、令牌和用户信息
type Service interface {
	IsLoggedIn() bool
	CurrentUser() (*User, bool)
	AccessToken() string
	Login(ctx context.Context, email, password string) error
	// Logout 服务端登出失败只记录日志，本地会话总会被清理
	Logout(ctx context.Context)
	// RestoreSession 从本地数据库恢复上次的会话
	RestoreSession(ctx context.Context)
}

// SessionObserver 登录状态变化时通知的对象，一般是模块管理器
type SessionObserver interface {
	UserDidLogin(userID string)
	UserDidLogout()
}
