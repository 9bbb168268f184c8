package auth

import (
	"context"
	"sync"
	"time"

	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"
	"neuralmail/system/data"
	"neuralmail/system/network"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type credentials struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type logoutResponse struct {
	Ret bool `json:"ret"`
}

// session 认证服务实现
type session struct {
	mu     sync.RWMutex
	token  string
	user   *User
	device string

	network  *modular.Injected[network.Service]
	store    *modular.OptionalInjected[data.Service]
	observer SessionObserver
	center   *modular.NotificationCenter
	validate *validator.Validate
	now      func() time.Time
	log      *logger.Log
	err      *errorc.ErrorBuilder
}

func newSession(r *modular.Registry, observer SessionObserver, center *modular.NotificationCenter, log *logger.Log) *session {
	return &session{
		network:  modular.Inject[network.Service](r),
		store:    modular.InjectOptional[data.Service](r),
		observer: observer,
		center:   center,
		validate: validator.New(),
		now:      time.Now,
		log:      log,
		err:      errorc.NewErrorBuilder("AuthService"),
	}
}

func (s *session) IsLoggedIn() bool {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	return token != "" && !tokenExpired(token, s.now())
}

func (s *session) CurrentUser() (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, false
	}
	u := *s.user
	return &u, true
}

func (s *session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// connectedStore 数据模块未注册或未连接时返回 false
func (s *session) connectedStore() (data.Service, bool) {
	store, ok := s.store.Get()
	if !ok || !store.IsConnected() {
		return nil, false
	}
	return store, true
}

// deviceID 读取或生成设备标识，数据库可用时持久化
func (s *session) deviceID(ctx context.Context) string {
	s.mu.RLock()
	id := s.device
	s.mu.RUnlock()
	if id != "" {
		return id
	}

	store, ok := s.connectedStore()
	if ok {
		var e sessionEntry
		if found, err := store.Fetch(ctx, &e, sessionKeyDevice); err == nil && found && e.Value != "" {
			id = e.Value
		}
	}
	if id == "" {
		id = uuid.NewString()
		if ok {
			if err := store.Save(ctx, &sessionEntry{Name: sessionKeyDevice, Value: id}); err != nil {
				s.log.WithErr(err).Warn("保存设备标识失败")
			}
		}
	}

	s.mu.Lock()
	if s.device == "" {
		s.device = id
	}
	id = s.device
	s.mu.Unlock()
	return id
}

func (s *session) Login(ctx context.Context, email, password string) error {
	if err := s.validate.Struct(credentials{Email: email, Password: password}); err != nil {
		return s.err.New("邮箱或密码格式不正确", err).ValidWithCtx()
	}
	s.log.WithField("email", email).Info("开始登录")

	var resp loginResponse
	err := s.network.Get().Request(ctx, network.Target{
		Path:   "/auth/login",
		Method: network.MethodPost,
		Params: map[string]any{"email": email, "password": password, "deviceId": s.deviceID(ctx)},
	}, &resp)
	if err != nil {
		return s.err.New("登录请求失败", err)
	}
	if resp.Token == "" || resp.User.ID == "" {
		return s.err.New("登录响应缺少令牌或用户信息", nil).Third()
	}

	if store, ok := s.connectedStore(); ok {
		if err := store.Save(ctx, &resp.User); err != nil {
			return s.err.New("保存用户信息失败", err)
		}
		s.saveSession(ctx, store, resp.Token, resp.User.ID)
	} else {
		s.log.Warn("数据库不可用，会话只保存在内存")
	}

	user := resp.User
	s.mu.Lock()
	s.token = resp.Token
	s.user = &user
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.UserDidLogin(user.ID)
	}
	s.post(modular.UserDidLogin, map[string]any{"userId": user.ID})
	s.log.WithUserID(user.ID).Info("登录成功")
	return nil
}

func (s *session) Logout(ctx context.Context) {
	s.log.Info("开始登出")

	var resp logoutResponse
	err := s.network.Get().Request(ctx, network.Target{Path: "/auth/logout", Method: network.MethodPost}, &resp)
	switch {
	case err != nil:
		s.log.WithErr(err).Error("登出请求失败，继续清理本地会话")
	case !resp.Ret:
		s.log.Warn("服务端登出返回失败，继续清理本地会话")
	}

	if store, ok := s.connectedStore(); ok {
		for _, key := range []string{sessionKeyToken, sessionKeyUserID} {
			if err := store.Delete(ctx, &sessionEntry{}, key); err != nil {
				s.log.WithErr(err).Warn("清理本地会话记录失败")
			}
		}
	}

	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.UserDidLogout()
	}
	s.post(modular.UserDidLogout, nil)
	s.log.Info("本地会话已清理")
}

func (s *session) RestoreSession(ctx context.Context) {
	store, ok := s.connectedStore()
	if !ok {
		return
	}

	var token, uid sessionEntry
	found, err := store.Fetch(ctx, &token, sessionKeyToken)
	if err != nil || !found || token.Value == "" {
		if err != nil {
			s.log.WithErr(err).Error("读取会话令牌失败")
		}
		return
	}

	s.mu.Lock()
	s.token = token.Value
	s.mu.Unlock()

	found, err = store.Fetch(ctx, &uid, sessionKeyUserID)
	if err != nil || !found {
		return
	}

	var user User
	found, err = store.Fetch(ctx, &user, uid.Value)
	if err != nil {
		s.log.WithErr(err).Error("恢复用户信息失败")
		return
	}
	if !found {
		return
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	s.log.WithField("email", user.Email).Debug("会话已恢复")
}

func (s *session) saveSession(ctx context.Context, store data.Service, token, userID string) {
	for _, e := range []sessionEntry{{Name: sessionKeyToken, Value: token}, {Name: sessionKeyUserID, Value: userID}} {
		e := e
		if err := store.Save(ctx, &e); err != nil {
			s.log.WithErr(err).Warn("保存会话失败")
		}
	}
}

func (s *session) post(name string, info map[string]any) {
	if s.center == nil {
		return
	}
	s.center.Post(modular.Notification{Name: name, Object: s, UserInfo: info})
}
