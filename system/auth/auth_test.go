package auth

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"neuralmail/pkg/core/config"
	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"
	"neuralmail/system/data"
	"neuralmail/system/network"

	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logger.Log {
	return logger.NewLogger("error", io.Discard)
}

// fakeNetwork 记录请求并按路径返回预设响应
type fakeNetwork struct {
	mu           sync.Mutex
	interceptors []network.Interceptor
	paths        []string
	headers      []map[string]string
	params       []map[string]any
	responses    map[string]string
	failures     map[string]error
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{responses: map[string]string{}, failures: map[string]error{}}
}

func (f *fakeNetwork) Request(ctx context.Context, target network.Target, out any) error {
	f.mu.Lock()
	interceptors := append([]network.Interceptor(nil), f.interceptors...)
	f.mu.Unlock()

	req := &network.Request{Method: target.Method, URL: target.Path, Header: map[string]string{}}
	for _, i := range interceptors {
		if err := i.Adapt(ctx, req); err != nil {
			return err
		}
	}

	f.mu.Lock()
	f.paths = append(f.paths, target.Path)
	f.headers = append(f.headers, req.Header)
	f.params = append(f.params, target.Params)
	body, failure := f.responses[target.Path], f.failures[target.Path]
	f.mu.Unlock()

	if failure != nil {
		return failure
	}
	if out == nil || body == "" {
		return nil
	}
	return jsoniter.UnmarshalFromString(body, out)
}

func (f *fakeNetwork) RegisterInterceptor(i network.Interceptor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interceptors = append(f.interceptors, i)
}

func (f *fakeNetwork) SetCommonHeader(key, value string) {}
func (f *fakeNetwork) ConfigureEnvironment(isDebug bool) {}

func (f *fakeNetwork) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

type recordingObserver struct {
	logins  []string
	logouts int
}

func (o *recordingObserver) UserDidLogin(userID string) { o.logins = append(o.logins, userID) }
func (o *recordingObserver) UserDidLogout()             { o.logouts++ }

type fixture struct {
	registry *modular.Registry
	center   *modular.NotificationCenter
	router   *modular.Router
	net      *fakeNetwork
	data     *data.Module
	observer *recordingObserver
	module   *Module
	events   []string
}

func newFixture(t *testing.T, store *data.Module) *fixture {
	f := &fixture{
		registry: modular.NewRegistry(testLog()),
		center:   modular.NewNotificationCenter(testLog()),
		router:   modular.NewRouter(testLog()),
		net:      newFakeNetwork(),
		data:     store,
		observer: &recordingObserver{},
	}
	if f.data == nil {
		f.data = data.NewModule(config.Database{Dialect: config.DialectSqlite, Path: ":memory:"}, config.ProxyConfig{}, testLog())
		t.Cleanup(func() { _ = f.data.Close() })
	}
	for _, name := range []string{modular.UserDidLogin, modular.UserDidLogout} {
		name := name
		f.center.Subscribe(name, func(modular.Notification) { f.events = append(f.events, name) })
	}

	f.data.RegisterServices(f.registry)
	modular.Register[network.Service](f.registry, modular.ScopeSingleton, func() network.Service { return f.net })
	f.module = NewModule(f.observer, f.center, f.router, testLog())
	f.module.RegisterServices(f.registry)

	lc := modular.NewLaunchContext(nil, false)
	require.NoError(t, f.data.Start(context.Background(), lc))
	require.NoError(t, f.module.Start(context.Background(), lc))
	return f
}

func signedToken(t *testing.T, exp time.Time) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

// TestLogin_Validation 测试登录参数校验失败时不发请求
func TestLogin_Validation(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.module.Service()

	err := svc.Login(context.Background(), "not-an-email", "secret123")
	assert.True(t, errorc.HasCode(err, errorc.ErrorCodeValid))
	err = svc.Login(context.Background(), "alice@gmail.com", "123")
	assert.True(t, errorc.HasCode(err, errorc.ErrorCodeValid))

	assert.Empty(t, f.net.Paths())
	assert.False(t, svc.IsLoggedIn())
}

// TestLogin_Success 测试登录成功后保存会话并广播
func TestLogin_Success(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.module.Service()
	token := signedToken(t, time.Now().Add(time.Hour))
	f.net.responses["/auth/login"] = `{"token":"` + token + `","user":{"id":"u1","email":"alice@gmail.com","nickname":"Alice"}}`

	require.NoError(t, svc.Login(context.Background(), "alice@gmail.com", "secret123"))

	assert.True(t, svc.IsLoggedIn())
	assert.Equal(t, token, svc.AccessToken())
	user, ok := svc.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "alice@gmail.com", user.Email)
	require.NotNil(t, user.Nickname)
	assert.Equal(t, "Alice", *user.Nickname)
	assert.Nil(t, user.AvatarURL)

	assert.Equal(t, []string{"u1"}, f.observer.logins)
	assert.Equal(t, []string{modular.UserDidLogin}, f.events)

	store := f.data.Service()
	var saved User
	found, err := store.Fetch(context.Background(), &saved, "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alice@gmail.com", saved.Email)

	f.net.mu.Lock()
	device, _ := f.net.params[0]["deviceId"].(string)
	f.net.mu.Unlock()
	assert.NotEmpty(t, device)
	var stored sessionEntry
	found, err = store.Fetch(context.Background(), &stored, sessionKeyDevice)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, device, stored.Value)

	// 后续请求带上令牌
	require.NoError(t, f.net.Request(context.Background(), network.Target{Path: "/mail/list"}, nil))
	f.net.mu.Lock()
	last := f.net.headers[len(f.net.headers)-1]
	f.net.mu.Unlock()
	assert.Equal(t, "Bearer "+token, last["Authorization"])
}

// TestLogin_BadResponse 测试响应缺少令牌时登录失败
func TestLogin_BadResponse(t *testing.T) {
	f := newFixture(t, nil)
	f.net.responses["/auth/login"] = `{"user":{"id":"u1","email":"alice@gmail.com"}}`

	err := f.module.Service().Login(context.Background(), "alice@gmail.com", "secret123")
	assert.True(t, errorc.HasCode(err, errorc.ErrorCodeThird))
	assert.False(t, f.module.Service().IsLoggedIn())
	assert.Empty(t, f.observer.logins)
}

// TestLogout_NetworkFailure 测试登出请求失败时仍清理本地会话
func TestLogout_NetworkFailure(t *testing.T) {
	f := newFixture(t, nil)
	svc := f.module.Service()
	f.net.responses["/auth/login"] = `{"token":"opaque-token","user":{"id":"u1","email":"alice@gmail.com"}}`
	require.NoError(t, svc.Login(context.Background(), "alice@gmail.com", "secret123"))

	f.net.failures["/auth/logout"] = errors.New("offline")
	svc.Logout(context.Background())

	assert.False(t, svc.IsLoggedIn())
	assert.Empty(t, svc.AccessToken())
	_, ok := svc.CurrentUser()
	assert.False(t, ok)
	assert.Equal(t, 1, f.observer.logouts)
	assert.Equal(t, []string{modular.UserDidLogin, modular.UserDidLogout}, f.events)
	assert.Equal(t, []string{"/auth/login", "/auth/logout"}, f.net.Paths())

	var e sessionEntry
	found, err := f.data.Service().Fetch(context.Background(), &e, sessionKeyToken)
	require.NoError(t, err)
	assert.False(t, found)

	// 设备标识在登出后保留
	found, err = f.data.Service().Fetch(context.Background(), &e, sessionKeyDevice)
	require.NoError(t, err)
	assert.True(t, found)
}

// TestRestoreSession 测试重新启动时从数据库恢复会话
func TestRestoreSession(t *testing.T) {
	f := newFixture(t, nil)
	f.net.responses["/auth/login"] = `{"token":"opaque-token","user":{"id":"u1","email":"alice@gmail.com"}}`
	require.NoError(t, f.module.Service().Login(context.Background(), "alice@gmail.com", "secret123"))

	second := newFixture(t, f.data)
	svc := second.module.Service()
	assert.True(t, svc.IsLoggedIn())
	assert.Equal(t, "opaque-token", svc.AccessToken())
	user, ok := svc.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)
}

// TestTokenExpired 测试 JWT 过期判断
func TestTokenExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, tokenExpired(signedToken(t, now.Add(time.Minute)), now))
	assert.True(t, tokenExpired(signedToken(t, now.Add(-time.Minute)), now))
	assert.False(t, tokenExpired("opaque-token", now))

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.False(t, tokenExpired(noExp, now))
}

// TestIsLoggedIn_Expired 测试令牌过期后视为未登录
func TestIsLoggedIn_Expired(t *testing.T) {
	f := newFixture(t, nil)
	f.module.session.mu.Lock()
	f.module.session.token = signedToken(t, time.Now().Add(-time.Hour))
	f.module.session.mu.Unlock()
	assert.False(t, f.module.Service().IsLoggedIn())
}

// TestRoutes 测试登录与注册路由
func TestRoutes(t *testing.T) {
	f := newFixture(t, nil)

	screen, ok := f.router.Match("neuralmail://app/auth/login?email=bob@qq.com")
	require.True(t, ok)
	login, ok := screen.(*LoginScreen)
	require.True(t, ok)
	assert.Equal(t, "bob@qq.com", login.DefaultEmail)
	assert.Equal(t, []string{"bob@qq.com"}, login.Suggestions("bob@qq"))

	p, ok := login.Provider(login.DefaultEmail)
	require.True(t, ok)
	assert.Equal(t, "imap.qq.com", p.Incoming.Host)

	screen, ok = f.router.Match("/auth/register")
	require.True(t, ok)
	assert.Equal(t, "Register", screen.ScreenName())

	f.net.responses["/auth/login"] = `{"token":"t","user":{"id":"u9","email":"bob@qq.com"}}`
	require.NoError(t, login.Submit(context.Background(), "bob@qq.com", "secret123"))
	assert.True(t, f.module.Service().IsLoggedIn())
}

// TestLogin_MissingNetwork 测试网络服务未注册时登录 panic
func TestLogin_MissingNetwork(t *testing.T) {
	r := modular.NewRegistry(testLog())
	m := NewModule(nil, nil, nil, testLog())
	m.RegisterServices(r)
	require.NoError(t, m.Start(context.Background(), modular.NewLaunchContext(nil, false)))

	defer func() {
		rec := recover()
		assert.True(t, modular.IsMissingService(rec))
	}()
	_ = m.Service().Login(context.Background(), "alice@gmail.com", "secret123")
	t.Fatal("expected panic")
}
