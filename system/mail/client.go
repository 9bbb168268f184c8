package mail

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"

	"github.com/emersion/go-imap"
	"github.com/go-redis/cache/v9"
)

const (
	defaultIMAPPort = 993
	inbox           = "INBOX"
)

// mailClient 基于 IMAP 的客户端服务实现
//
// go-imap 连接不支持并发命令，Select 与 Fetch 需要在 opMu 下成对执行。
type mailClient struct {
	opMu sync.Mutex

	mu     sync.RWMutex
	conn   imapClient
	cfg    Config
	status Status

	keyMu sync.Mutex
	keys  map[string]struct{}

	dial     dialFunc
	cache    *cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
	log      *logger.Log
	err      *errorc.ErrorBuilder
}

func newMailClient(dial dialFunc, c *cache.Cache, ttl time.Duration, log *logger.Log) *mailClient {
	return &mailClient{
		keys:     make(map[string]struct{}),
		dial:     dial,
		cache:    c,
		cacheTTL: ttl,
		now:      time.Now,
		log:      log,
		err:      errorc.NewErrorBuilder("MailClientService"),
		status:   Status{Folders: map[string]FolderStats{}},
	}
}

func (c *mailClient) validate(cfg *Config) error {
	switch cfg.Protocol {
	case "", ProtocolIMAP, ProtocolExchange:
	case ProtocolPOP3:
		return c.err.New("暂不支持 POP3 协议", nil).Unsupported()
	default:
		return c.err.New(fmt.Sprintf("未知协议: %s", cfg.Protocol), nil).ValidWithCtx()
	}
	if cfg.Host == "" {
		return c.err.BadRequest("服务器地址不能为空")
	}
	if cfg.Username == "" {
		cfg.Username = cfg.Email
	}
	if cfg.Username == "" {
		return c.err.BadRequest("用户名不能为空")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultIMAPPort
	}
	return nil
}

func (c *mailClient) Connect(ctx context.Context, cfg Config) error {
	if err := c.validate(&cfg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return c.err.New("连接已取消", err).Timeout()
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.closeConn()

	conn, err := c.dial(cfg)
	if err != nil {
		c.setError(cfg, err)
		return c.err.New("连接邮件服务器失败", err).Third()
	}
	if err := conn.Login(cfg.Username, cfg.Password); err != nil {
		_ = conn.Logout()
		c.setError(cfg, err)
		return c.err.New("邮箱登录失败", err).NoAuth()
	}

	c.mu.Lock()
	c.conn = conn
	c.cfg = cfg
	c.status = Status{
		Connected:   true,
		Email:       cfg.Email,
		Host:        cfg.Host,
		LastChecked: c.now(),
		Folders:     map[string]FolderStats{},
	}
	c.mu.Unlock()

	c.log.WithField("host", cfg.Host).WithField("email", cfg.Email).Info("邮箱已连接")
	return nil
}

func (c *mailClient) setError(cfg Config, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Connected = false
	c.status.Email = cfg.Email
	c.status.Host = cfg.Host
	c.status.LastError = err.Error()
	c.status.LastChecked = c.now()
}

// closeConn 调用方需持有 opMu
func (c *mailClient) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.status.Connected = false
	c.mu.Unlock()

	if conn == nil {
		return
	}
	if conn.State() != imap.LogoutState {
		if err := conn.Logout(); err != nil {
			c.log.WithErr(err).Debug("IMAP 登出失败")
		}
	}
}

func (c *mailClient) Disconnect() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.closeConn()
	c.log.Info("邮箱已断开")
}

func (c *mailClient) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.status
	s.Folders = make(map[string]FolderStats, len(c.status.Folders))
	for k, v := range c.status.Folders {
		s.Folders[k] = v
	}
	return s
}

func (c *mailClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *mailClient) active() (imapClient, Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil, Config{}, c.err.New("邮箱未连接", nil).NotConnected()
	}
	return c.conn, c.cfg, nil
}

func (c *mailClient) FetchFolders(ctx context.Context) ([]Folder, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	conn, _, err := c.active()
	if err != nil {
		return nil, err
	}

	ch := make(chan *imap.MailboxInfo, 16)
	done := make(chan error, 1)
	go func() {
		done <- conn.List("", "*", ch)
	}()

	var folders []Folder
	for info := range ch {
		folders = append(folders, toFolder(info))
	}
	if err := <-done; err != nil {
		return nil, c.err.New("获取文件夹失败", err).Third()
	}
	if err := ctx.Err(); err != nil {
		return nil, c.err.New("获取文件夹已取消", err).Timeout()
	}
	return folders, nil
}

func cacheKey(account, folder string, offset, limit int) string {
	return fmt.Sprintf("mail:%s:%s:%d:%d", strings.ToLower(account), folder, offset, limit)
}

func (c *mailClient) FetchMessages(ctx context.Context, folder string, offset, limit int) ([]Message, error) {
	if folder == "" {
		folder = inbox
	}
	if offset < 0 || limit <= 0 {
		return nil, c.err.BadRequest("分页参数不合法")
	}
	_, cfg, err := c.active()
	if err != nil {
		return nil, err
	}

	key := cacheKey(cfg.Email, folder, offset, limit)
	if c.cache != nil {
		var cached []Message
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			c.log.WithErr(err).WithField("key", key).Warn("读取邮件缓存失败")
		}
	}

	msgs, err := c.fetch(ctx, folder, offset, limit)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, msgs)
	return msgs, nil
}

func (c *mailClient) fetch(ctx context.Context, folder string, offset, limit int) ([]Message, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	conn, _, err := c.active()
	if err != nil {
		return nil, err
	}

	mbox, err := conn.Select(folder, true)
	if err != nil {
		return nil, c.err.New(fmt.Sprintf("打开文件夹 %s 失败", folder), err).Third()
	}
	c.recordStats(folder, mbox)

	from, to, ok := pageRange(mbox.Messages, offset, limit)
	if !ok {
		return []Message{}, nil
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, to)

	ch := make(chan *imap.Message, limit)
	done := make(chan error, 1)
	go func() {
		done <- conn.Fetch(seqset, fetchItems, ch)
	}()

	raw := make([]*imap.Message, 0, limit)
	for m := range ch {
		raw = append(raw, m)
	}
	if err := <-done; err != nil {
		return nil, c.err.New("拉取邮件失败", err).Third()
	}
	if err := ctx.Err(); err != nil {
		return nil, c.err.New("拉取邮件已取消", err).Timeout()
	}

	sort.Slice(raw, func(i, j int) bool { return raw[i].SeqNum > raw[j].SeqNum })
	msgs := make([]Message, 0, len(raw))
	for _, m := range raw {
		msgs = append(msgs, toMessage(m))
	}
	return msgs, nil
}

func (c *mailClient) recordStats(folder string, mbox *imap.MailboxStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.status.Folders[folder] = FolderStats{Total: mbox.Messages, Unseen: mbox.Unseen, LastSync: now}
	c.status.LastChecked = now
	c.status.LastError = ""
}

func (c *mailClient) store(ctx context.Context, key string, msgs []Message) {
	if c.cache == nil {
		return
	}
	err := c.cache.Set(&cache.Item{Ctx: ctx, Key: key, Value: msgs, TTL: c.cacheTTL})
	if err != nil {
		c.log.WithErr(err).WithField("key", key).Warn("写入邮件缓存失败")
		return
	}
	c.keyMu.Lock()
	c.keys[key] = struct{}{}
	c.keyMu.Unlock()
}

// Refresh 跳过缓存重新拉取收件箱第一页，供定时任务调用
func (c *mailClient) Refresh(ctx context.Context, pageSize int) (int, error) {
	_, cfg, err := c.active()
	if err != nil {
		return 0, err
	}
	msgs, err := c.fetch(ctx, inbox, 0, pageSize)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, cfg.Email, inbox)
	c.store(ctx, cacheKey(cfg.Email, inbox, 0, pageSize), msgs)
	return len(msgs), nil
}

// invalidate 删除某个文件夹的全部分页缓存
func (c *mailClient) invalidate(ctx context.Context, account, folder string) {
	if c.cache == nil {
		return
	}
	prefix := fmt.Sprintf("mail:%s:%s:", strings.ToLower(account), folder)
	c.keyMu.Lock()
	var stale []string
	for k := range c.keys {
		if strings.HasPrefix(k, prefix) {
			stale = append(stale, k)
			delete(c.keys, k)
		}
	}
	c.keyMu.Unlock()

	for _, k := range stale {
		if err := c.cache.Delete(ctx, k); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.log.WithErr(err).WithField("key", k).Debug("删除邮件缓存失败")
		}
	}
}

// PurgeLocal 清空进程内缓存，远程缓存保留
func (c *mailClient) PurgeLocal() int {
	if c.cache == nil {
		return 0
	}
	c.keyMu.Lock()
	keys := c.keys
	c.keys = make(map[string]struct{})
	c.keyMu.Unlock()

	for k := range keys {
		c.cache.DeleteFromLocalCache(k)
	}
	return len(keys)
}
