package mail

import (
	"context"
	"sync"
	"time"

	"neuralmail/pkg/core/config"
	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"
	"neuralmail/pkg/modular"
	"neuralmail/pkg/scheduler"

	"github.com/redis/go-redis/v9"
)

const pollTimeout = time.Minute

// Module 邮件模块门面
type Module struct {
	modular.BaseModule
	cfg    config.MailConfig
	client *mailClient
	rdb    redis.UniversalClient
	sched  *scheduler.Scheduler

	mu     sync.Mutex
	pollID string

	log *logger.Log
}

// NewModule sched 为空时不做定时收件；redisCfg 未配置时只用本地缓存
func NewModule(cfg config.MailConfig, redisCfg config.RedisConfig, proxy config.ProxyConfig, sched *scheduler.Scheduler, log *logger.Log) *Module {
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithEntryName("MailModule")

	var rdb redis.UniversalClient
	if redisCfg.Enabled() {
		rdb = config.InitRDB(redisCfg, proxy)
	}
	return &Module{
		cfg:    cfg,
		client: newMailClient(tlsDialer(proxy, cfg.DialTimeout), config.InitCache(rdb, cfg.CacheSize, cfg.CacheTTL), cfg.CacheTTL, log),
		rdb:    rdb,
		sched:  sched,
		log:    log,
	}
}

func (m *Module) Name() string { return "mail" }

func (m *Module) RegisterServices(r *modular.Registry) {
	modular.Register[ClientService](r, modular.ScopeSingleton, func() ClientService { return m.client })
}

func (m *Module) Start(ctx context.Context, _ modular.LaunchContext) error {
	if m.rdb != nil {
		if err := m.rdb.Ping(ctx).Err(); err != nil {
			m.log.WithErr(err).Warn("Redis 不可用，邮件缓存仅使用本地层")
		}
	}
	m.log.WithField("pollCron", m.cfg.PollCron).WithField("pageSize", m.cfg.PageSize).Info("邮件模块已就绪")
	return nil
}

// UserDidLogin 登录后开始定时刷新收件箱
func (m *Module) UserDidLogin(userID string) {
	if m.sched == nil || m.cfg.PollCron == "" {
		return
	}
	task, err := scheduler.NewCronTask("mail-poll:"+userID, m.cfg.PollCron, pollTimeout, m.poll)
	if err != nil {
		errorc.New("创建收件任务失败", err).ValidWithCtx().ToLog(m.log.GetLogger())
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pollID != "" {
		m.sched.RemoveTask(m.pollID)
	}
	if err := m.sched.AddTask(task); err != nil {
		m.log.WithErr(err).Warn("添加收件任务失败")
		m.pollID = ""
		return
	}
	m.pollID = task.GetID()
	m.log.WithUserID(userID).WithField("task", m.pollID).Info("已开启定时收件")
}

func (m *Module) poll(ctx context.Context) error {
	if !m.client.IsConnected() {
		return nil
	}
	n, err := m.client.Refresh(ctx, m.cfg.PageSize)
	if err != nil {
		return err
	}
	m.log.WithField("count", n).Debug("收件箱已刷新")
	return nil
}

// UserDidLogout 停止收件并断开邮箱
func (m *Module) UserDidLogout() {
	m.mu.Lock()
	if m.pollID != "" && m.sched != nil {
		m.sched.RemoveTask(m.pollID)
	}
	m.pollID = ""
	m.mu.Unlock()

	m.client.Disconnect()
	m.client.PurgeLocal()
}

func (m *Module) ApplicationDidEnterBackground() {
	n := m.client.PurgeLocal()
	m.log.WithField("keys", n).Debug("已清理本地邮件缓存")
}

func (m *Module) ApplicationDidReceiveMemoryWarning() {
	m.client.PurgeLocal()
}

func (m *Module) Service() ClientService {
	return m.client
}

// PollTaskID 当前定时收件任务 ID，未开启时为空
func (m *Module) PollTaskID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pollID
}

func (m *Module) Close() error {
	m.client.Disconnect()
	if m.rdb != nil {
		return m.rdb.Close()
	}
	return nil
}
