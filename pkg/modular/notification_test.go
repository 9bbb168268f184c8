package modular

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNotificationCenter_PostOrder 测试按订阅顺序同步分发
func TestNotificationCenter_PostOrder(t *testing.T) {
	c := NewNotificationCenter(testLogger())
	var got []string

	c.Subscribe(UserDidLogin, func(n Notification) { got = append(got, "first:"+n.UserInfo["userId"].(string)) })
	c.Subscribe(UserDidLogin, func(n Notification) { got = append(got, "second") })
	c.Subscribe(UserDidLogout, func(Notification) { got = append(got, "logout") })

	c.Post(Notification{Name: UserDidLogin, UserInfo: map[string]any{"userId": "u1"}})
	assert.Equal(t, []string{"first:u1", "second"}, got)
}

// TestNotificationCenter_Unsubscribe 测试取消订阅后不再收到通知
func TestNotificationCenter_Unsubscribe(t *testing.T) {
	c := NewNotificationCenter(testLogger())
	count := 0
	cancel := c.Subscribe(PreferenceDidChange, func(Notification) { count++ })

	c.Post(Notification{Name: PreferenceDidChange})
	cancel()
	cancel()
	c.Post(Notification{Name: PreferenceDidChange})

	assert.Equal(t, 1, count)
}

// TestNotificationCenter_RecoverPanic 测试处理函数 panic 不影响其他订阅者
func TestNotificationCenter_RecoverPanic(t *testing.T) {
	c := NewNotificationCenter(testLogger())
	reached := false
	c.Subscribe(AppDidFinishStartup, func(Notification) { panic("boom") })
	c.Subscribe(AppDidFinishStartup, func(Notification) { reached = true })

	assert.NotPanics(t, func() {
		c.Post(Notification{Name: AppDidFinishStartup})
	})
	assert.True(t, reached)
}

// TestNotificationCenter_SubscribeInsideHandler 测试处理函数内订阅不会死锁
func TestNotificationCenter_SubscribeInsideHandler(t *testing.T) {
	c := NewNotificationCenter(testLogger())
	nested := 0
	c.Subscribe("outer", func(Notification) {
		c.Subscribe("inner", func(Notification) { nested++ })
	})

	c.Post(Notification{Name: "outer"})
	c.Post(Notification{Name: "inner"})
	assert.Equal(t, 1, nested)
}
