package modular

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"neuralmail/pkg/core/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder 按发生顺序记录事件
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) index(event string) int {
	for i, e := range r.snapshot() {
		if e == event {
			return i
		}
	}
	return -1
}

type testModule struct {
	BaseModule
	name     string
	priority Priority
	delay    time.Duration
	rec      *recorder
	starts   *int32
	startErr error
	panics   bool
	onStart  func(ctx context.Context)
}

func (m *testModule) Name() string       { return m.name }
func (m *testModule) Priority() Priority { return m.priority }

func (m *testModule) RegisterServices(*Registry) {
	m.rec.add("register:%s", m.name)
}

func (m *testModule) Start(ctx context.Context, _ LaunchContext) error {
	m.rec.add("start:%s", m.name)
	if m.starts != nil {
		atomic.AddInt32(m.starts, 1)
	}
	if m.panics {
		panic("boom")
	}
	if m.onStart != nil {
		m.onStart(ctx)
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.rec.add("end:%s", m.name)
	return m.startErr
}

func (m *testModule) UserDidLogin(userID string) { m.rec.add("login:%s:%s", m.name, userID) }
func (m *testModule) UserDidLogout()             { m.rec.add("logout:%s", m.name) }
func (m *testModule) ApplicationDidEnterBackground() {
	m.rec.add("background:%s", m.name)
}

func newTestManager(opts ...Option) *Manager {
	log := testLogger()
	return NewManager(NewRegistry(log), NewNotificationCenter(log), log, opts...)
}

// TestManager_StartupOrdering 测试注册阶段先于启动阶段、关键模块按注册顺序串行完成
func TestManager_StartupOrdering(t *testing.T) {
	rec := &recorder{}
	m := newTestManager()
	m.Register(
		&testModule{name: "critA", priority: PriorityCritical, delay: 20 * time.Millisecond, rec: rec},
		&testModule{name: "high", priority: PriorityHigh, rec: rec},
		&testModule{name: "critB", priority: PriorityCritical, delay: 10 * time.Millisecond, rec: rec},
		&testModule{name: "low", priority: PriorityLow, rec: rec},
	)

	m.Startup(context.Background(), NewLaunchContext(nil, false))
	// Startup 返回时关键模块必须已经完成
	assert.GreaterOrEqual(t, rec.index("end:critA"), 0)
	assert.GreaterOrEqual(t, rec.index("end:critB"), 0)
	m.Wait()

	events := rec.snapshot()
	firstStart := len(events)
	lastRegister := -1
	for i, e := range events {
		if len(e) > 6 && e[:6] == "start:" && i < firstStart {
			firstStart = i
		}
		if len(e) > 9 && e[:9] == "register:" {
			lastRegister = i
		}
	}
	assert.Less(t, lastRegister, firstStart)

	assert.Equal(t, []string{"register:critA", "register:critB", "register:high", "register:low"}, events[:4])
	assert.Less(t, rec.index("end:critA"), rec.index("start:critB"))
	assert.Less(t, rec.index("end:critB"), rec.index("start:high"))
	assert.Less(t, rec.index("end:critB"), rec.index("start:low"))

	names := make([]string, 0, 4)
	for _, mod := range m.Modules() {
		names = append(names, mod.Name())
	}
	assert.Equal(t, []string{"critA", "critB", "high", "low"}, names)
}

// TestManager_StartupIdempotent 测试重复调用 Startup 不会重复启动模块
func TestManager_StartupIdempotent(t *testing.T) {
	rec := &recorder{}
	var starts int32
	m := newTestManager()
	m.Register(
		&testModule{name: "a", priority: PriorityCritical, rec: rec, starts: &starts},
		&testModule{name: "b", priority: PriorityHigh, rec: rec, starts: &starts},
		&testModule{name: "c", priority: PriorityNormal, rec: rec, starts: &starts},
	)

	m.Startup(context.Background(), NewLaunchContext(nil, false))
	m.Startup(context.Background(), NewLaunchContext(nil, false))
	m.Wait()

	assert.Equal(t, int32(3), atomic.LoadInt32(&starts))
	assert.Equal(t, StateReady, m.State())
}

// TestManager_ReadyAndNotification 测试就绪标记与启动完成通知只触发一次
func TestManager_ReadyAndNotification(t *testing.T) {
	log := testLogger()
	center := NewNotificationCenter(log)
	m := NewManager(NewRegistry(log), center, log)
	m.Register(&testModule{name: "a", priority: PriorityHigh, rec: &recorder{}})

	var posted int32
	var readyWhenPosted bool
	center.Subscribe(AppDidFinishStartup, func(n Notification) {
		atomic.AddInt32(&posted, 1)
		readyWhenPosted = m.IsReady()
	})

	assert.False(t, m.IsReady())
	assert.Equal(t, StateUnstarted, m.State())

	lc := NewLaunchContext(map[string]string{"k": "v"}, true)
	m.Startup(context.Background(), lc)
	m.Startup(context.Background(), lc)

	select {
	case <-m.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready channel 未关闭")
	}
	assert.True(t, m.IsReady())
	assert.True(t, readyWhenPosted)
	assert.Equal(t, int32(1), atomic.LoadInt32(&posted))
	m.Wait()
}

// TestManager_StartFailureDoesNotAbort 测试模块启动失败或 panic 不影响后续模块
func TestManager_StartFailureDoesNotAbort(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger("info", &buf)
	rec := &recorder{}
	metrics := NewMetrics(nil)
	m := NewManager(NewRegistry(log), NewNotificationCenter(log), log, WithStartObserver(metrics))
	m.Register(
		&testModule{name: "broken", priority: PriorityCritical, rec: rec, startErr: errors.New("db down")},
		&testModule{name: "panicky", priority: PriorityCritical, rec: rec, panics: true},
		&testModule{name: "ok", priority: PriorityCritical, rec: rec},
	)

	m.Startup(context.Background(), NewLaunchContext(nil, false))

	assert.True(t, m.IsReady())
	assert.GreaterOrEqual(t, rec.index("end:ok"), 0)
	assert.Contains(t, buf.String(), "模块 broken 启动失败")
	assert.Contains(t, buf.String(), "panicky")

	_, ok := m.StartupDuration("ok")
	assert.True(t, ok)
}

// TestManager_CriticalTimeout 测试关键模块超时后继续启动
func TestManager_CriticalTimeout(t *testing.T) {
	rec := &recorder{}
	release := make(chan struct{})
	m := newTestManager(WithCriticalTimeout(20 * time.Millisecond))
	m.Register(
		&testModule{name: "hung", priority: PriorityCritical, rec: rec, onStart: func(ctx context.Context) {
			select {
			case <-release:
			case <-ctx.Done():
			}
		}},
		&testModule{name: "next", priority: PriorityCritical, rec: rec},
	)

	m.Startup(context.Background(), NewLaunchContext(nil, false))
	assert.True(t, m.IsReady())
	assert.GreaterOrEqual(t, rec.index("end:next"), 0)
	assert.Equal(t, -1, rec.index("end:hung"))

	close(release)
	m.Wait()
	assert.GreaterOrEqual(t, rec.index("end:hung"), 0)
}

// TestManager_Shutdown 测试关闭时取消后台启动任务
func TestManager_Shutdown(t *testing.T) {
	rec := &recorder{}
	m := newTestManager()
	m.Register(&testModule{name: "waiter", priority: PriorityNormal, rec: rec, onStart: func(ctx context.Context) {
		<-ctx.Done()
	}})

	m.Startup(context.Background(), NewLaunchContext(nil, false))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))
	assert.GreaterOrEqual(t, rec.index("end:waiter"), 0)
}

// TestManager_ShutdownTimeout 测试后台任务不退出时关闭超时
func TestManager_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m := newTestManager()
	m.Register(&testModule{name: "stubborn", priority: PriorityLow, rec: &recorder{}, onStart: func(context.Context) {
		<-release
	}})
	m.Startup(context.Background(), NewLaunchContext(nil, false))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := m.Shutdown(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "等待模块启动任务退出超时")
}

// TestManager_LifecycleFanOut 测试生命周期事件按排序后的顺序分发
func TestManager_LifecycleFanOut(t *testing.T) {
	rec := &recorder{}
	m := newTestManager()
	m.Register(
		&testModule{name: "low", priority: PriorityLow, rec: rec},
		&testModule{name: "crit", priority: PriorityCritical, rec: rec},
	)
	m.Startup(context.Background(), NewLaunchContext(nil, false))
	m.Wait()

	before := len(rec.snapshot())
	m.UserDidLogin("u1")
	m.UserDidLogout()
	m.ApplicationDidEnterBackground()
	m.ApplicationDidReceiveMemoryWarning()

	assert.Equal(t, []string{
		"login:crit:u1", "login:low:u1",
		"logout:crit", "logout:low",
		"background:crit", "background:low",
	}, rec.snapshot()[before:])
}

// TestManager_RegisterAfterStartup 测试启动后注册模块被忽略
func TestManager_RegisterAfterStartup(t *testing.T) {
	m := newTestManager()
	m.Register(&testModule{name: "a", priority: PriorityHigh, rec: &recorder{}})
	m.Startup(context.Background(), NewLaunchContext(nil, false))
	assert.False(t, m.Register(&testModule{name: "late", priority: PriorityHigh, rec: &recorder{}}))
	m.Wait()

	assert.Len(t, m.Modules(), 1)
}

// TestManager_RegisterDuringStartup 测试与 Startup 并发注册时，被接受的模块都会启动
func TestManager_RegisterDuringStartup(t *testing.T) {
	for round := 0; round < 20; round++ {
		var starts int32
		m := newTestManager()

		const n = 16
		accepted := make([]bool, n)
		var wg sync.WaitGroup
		begin := make(chan struct{})
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-begin
				accepted[i] = m.Register(&testModule{
					name:     fmt.Sprintf("m%d", i),
					priority: PriorityNormal,
					rec:      &recorder{},
					starts:   &starts,
				})
			}(i)
		}
		close(begin)
		m.Startup(context.Background(), NewLaunchContext(nil, false))
		wg.Wait()
		m.Wait()

		want := 0
		for i, ok := range accepted {
			if !ok {
				continue
			}
			want++
			_, started := m.StartupDuration(fmt.Sprintf("m%d", i))
			assert.True(t, started, "m%d", i)
		}
		assert.Equal(t, int32(want), atomic.LoadInt32(&starts))
		assert.Len(t, m.Modules(), want)
	}
}

// TestLaunchContext 测试启动参数不可变
func TestLaunchContext(t *testing.T) {
	opts := map[string]string{"env": "dev"}
	lc := NewLaunchContext(opts, true)
	opts["env"] = "prod"

	v, ok := lc.Option("env")
	require.True(t, ok)
	assert.Equal(t, "dev", v)

	copied := lc.Options()
	copied["env"] = "test"
	v, _ = lc.Option("env")
	assert.Equal(t, "dev", v)

	assert.True(t, lc.IsDebug())
	assert.NotEmpty(t, lc.SessionID())
	assert.NotEqual(t, lc.SessionID(), NewLaunchContext(nil, false).SessionID())
}

// TestPriority 测试优先级排序与关键层判断
func TestPriority(t *testing.T) {
	assert.True(t, PriorityCritical > PriorityHigh)
	assert.True(t, PriorityHigh > PriorityNormal)
	assert.True(t, PriorityNormal > PriorityLow)
	assert.True(t, PriorityCritical.IsCritical())
	assert.False(t, PriorityHigh.IsCritical())
	assert.Equal(t, "high", PriorityHigh.String())
	assert.Equal(t, PriorityNormal, BaseModule{}.Priority())
}
