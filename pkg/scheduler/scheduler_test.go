package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"neuralmail/pkg/core/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	s := NewScheduler(SchedulerConfig{MaxWorkers: 2}, logger.NewLogger("error", io.Discard))
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

// TestScheduler_OnceTask 测试一次性任务只执行一次并被移出任务表
func TestScheduler_OnceTask(t *testing.T) {
	s := newTestScheduler(t)
	var runs int32

	task := NewOnceTask("once", time.Now().Add(10*time.Millisecond), time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	require.NoError(t, s.AddTask(task))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return s.GetTask(task.GetID()) == nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, TaskStatusCompleted, task.GetStatus())
	assert.Equal(t, int64(1), s.GetStats().CompletedTasks)
}

// TestScheduler_IntervalTask 测试间隔任务重复执行，移除后停止
func TestScheduler_IntervalTask(t *testing.T) {
	s := newTestScheduler(t)
	var runs int32

	task := NewIntervalTask("interval", time.Now(), 10*time.Millisecond, time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	require.NoError(t, s.AddTask(task))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.True(t, s.RemoveTask(task.GetID()))
	assert.False(t, s.RemoveTask(task.GetID()))

	time.Sleep(30 * time.Millisecond)
	settled := atomic.LoadInt32(&runs)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt32(&runs))
	assert.Empty(t, s.ListTasks())
}

// TestScheduler_FailedTaskKeepsSchedule 测试间隔任务失败后仍继续调度
func TestScheduler_FailedTaskKeepsSchedule(t *testing.T) {
	s := newTestScheduler(t)
	var runs int32

	task := NewIntervalTask("flaky", time.Now(), 10*time.Millisecond, time.Second, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("imap timeout")
	})
	require.NoError(t, s.AddTask(task))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, s.GetStats().FailedTasks, int64(1))
}

// TestScheduler_PanicTask 测试任务 panic 被捕获
func TestScheduler_PanicTask(t *testing.T) {
	s := newTestScheduler(t)
	task := NewOnceTask("panic", time.Now(), time.Second, func(ctx context.Context) error {
		panic("boom")
	})
	require.NoError(t, s.AddTask(task))

	assert.Eventually(t, func() bool { return s.GetStats().FailedTasks == 1 }, time.Second, 5*time.Millisecond)
}

// TestScheduler_NotRunning 测试未启动时不能添加任务
func TestScheduler_NotRunning(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig(), logger.NewLogger("error", io.Discard))
	err := s.AddTask(NewOnceTask("x", time.Now(), 0, nil))
	assert.Error(t, err)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
}

// TestCronTask 测试Cron表达式解析与下次执行时间
func TestCronTask(t *testing.T) {
	task, err := NewCronTask("poll", "0 */5 * * * *", time.Minute, func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, TaskTypeCron, task.GetType())

	base := time.Date(2025, 1, 1, 10, 2, 30, 0, time.Local)
	next := task.UpdateNextTime(base)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 5, 0, 0, time.Local), next)
	assert.Equal(t, next, task.GetNextTime())

	_, err = NewCronTask("bad", "not a cron", time.Minute, nil)
	assert.Error(t, err)
}

// TestTaskHeap_Order 测试任务堆按执行时间弹出
func TestTaskHeap_Order(t *testing.T) {
	th := NewTaskHeap()
	now := time.Now()
	late := NewOnceTask("late", now.Add(time.Hour), 0, nil)
	early := NewOnceTask("early", now.Add(-time.Minute), 0, nil)
	mid := NewOnceTask("mid", now.Add(-time.Second), 0, nil)

	th.SafePush(late)
	th.SafePush(early)
	th.SafePush(mid)

	assert.Equal(t, "early", th.SafePeek().GetName())

	ready := th.PopReadyTasks(now)
	require.Len(t, ready, 2)
	assert.Equal(t, "early", ready[0].GetName())
	assert.Equal(t, "mid", ready[1].GetName())
	assert.Equal(t, 1, th.SafeSize())

	assert.True(t, th.SafeRemove(late.GetID()))
	assert.Nil(t, th.SafePop())
}
