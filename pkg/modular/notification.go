package modular

import (
	"sync"

	"neuralmail/pkg/core/logger"
)

// 通知名称
const (
	AppDidFinishStartup = "NMAppDidFinishStartup"
	UserDidLogin        = "NMUserDidLogin"
	UserDidLogout       = "NMUserDidLogout"
	PreferenceDidChange = "NMPreferenceDidChange"
)

// Notification 进程内广播消息
type Notification struct {
	Name     string
	Object   any
	UserInfo map[string]any
}

type NotificationHandler func(Notification)

type subscription struct {
	id      int64
	handler NotificationHandler
}

// NotificationCenter 同步分发的进程内通知中心
type NotificationCenter struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID int64
	log    *logger.Log
}

func NewNotificationCenter(log *logger.Log) *NotificationCenter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &NotificationCenter{
		subs: make(map[string][]subscription),
		log:  log.WithEntryName("NotificationCenter"),
	}
}

// Subscribe 订阅指定名称的通知，返回取消订阅函数
func (c *NotificationCenter) Subscribe(name string, handler NotificationHandler) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[name] = append(c.subs[name], subscription{id: id, handler: handler})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			list := c.subs[name]
			for i, s := range list {
				if s.id == id {
					c.subs[name] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(c.subs[name]) == 0 {
				delete(c.subs, name)
			}
		})
	}
}

// Post 按订阅顺序同步调用处理函数，处理函数在锁外执行
func (c *NotificationCenter) Post(n Notification) {
	c.mu.RLock()
	handlers := make([]subscription, len(c.subs[n.Name]))
	copy(handlers, c.subs[n.Name])
	c.mu.RUnlock()

	for _, s := range handlers {
		c.dispatch(n, s.handler)
	}
}

func (c *NotificationCenter) dispatch(n Notification, handler NotificationHandler) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("notification", n.Name).WithField("panic", r).Error("通知处理函数发生panic")
		}
	}()
	handler(n)
}
