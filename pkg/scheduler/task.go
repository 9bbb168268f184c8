package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// TaskType 任务类型
type TaskType int

const (
	// TaskTypeOnce 一次性任务
	TaskTypeOnce TaskType = iota
	// TaskTypeInterval 固定间隔任务
	TaskTypeInterval
	// TaskTypeCron 基于Cron表达式的任务
	TaskTypeCron
)

func (t TaskType) String() string {
	switch t {
	case TaskTypeOnce:
		return "once"
	case TaskTypeInterval:
		return "interval"
	case TaskTypeCron:
		return "cron"
	default:
		return "unknown"
	}
}

// TaskStatus 任务状态
type TaskStatus int

const (
	TaskStatusWaiting TaskStatus = iota
	TaskStatusRunning
	TaskStatusCompleted
	TaskStatusFailed
	TaskStatusCanceled
)

// TaskFunc 任务执行函数
type TaskFunc func(ctx context.Context) error

// Task 任务接口
type Task interface {
	GetID() string
	GetName() string
	GetType() TaskType
	GetNextTime() time.Time
	GetTimeout() time.Duration

	Execute(ctx context.Context) error

	// UpdateNextTime 根据当前时间计算下次执行时间，返回零值表示不再执行
	UpdateNextTime(currentTime time.Time) time.Time
	// SetNextTime 直接指定下次执行时间，用于延后执行
	SetNextTime(next time.Time)
	CanExecute(currentTime time.Time) bool
	IsCompleted() bool

	GetStatus() TaskStatus
	SetStatus(status TaskStatus)
}

// BaseTask 基础任务实现
type BaseTask struct {
	mu sync.RWMutex

	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Type       TaskType      `json:"type"`
	Status     TaskStatus    `json:"status"`
	NextTime   time.Time     `json:"next_time"`
	Timeout    time.Duration `json:"timeout"`
	Func       TaskFunc      `json:"-"`
	RunCount   int           `json:"run_count"`
	CreateTime time.Time     `json:"create_time"`
	UpdateTime time.Time     `json:"update_time"`
}

func newBaseTask(name string, taskType TaskType, next time.Time, timeout time.Duration, fn TaskFunc) *BaseTask {
	now := time.Now()
	return &BaseTask{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       taskType,
		Status:     TaskStatusWaiting,
		NextTime:   next,
		Timeout:    timeout,
		Func:       fn,
		CreateTime: now,
		UpdateTime: now,
	}
}

func (t *BaseTask) GetID() string {
	return t.ID
}

func (t *BaseTask) GetName() string {
	return t.Name
}

func (t *BaseTask) GetType() TaskType {
	return t.Type
}

func (t *BaseTask) GetNextTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.NextTime
}

func (t *BaseTask) SetNextTime(next time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.NextTime = next
	t.UpdateTime = time.Now()
}

// GetTimeout 获取任务超时时间，未设置时为30秒
func (t *BaseTask) GetTimeout() time.Duration {
	if t.Timeout <= 0 {
		return 30 * time.Second
	}
	return t.Timeout
}

// Execute 执行任务并更新状态
func (t *BaseTask) Execute(ctx context.Context) error {
	if t.Func == nil {
		return nil
	}

	t.SetStatus(TaskStatusRunning)
	err := t.Func(ctx)

	t.mu.Lock()
	t.RunCount++
	t.mu.Unlock()

	switch {
	case t.GetStatus() == TaskStatusCanceled:
	case err != nil:
		t.SetStatus(TaskStatusFailed)
	case t.Type == TaskTypeOnce:
		t.SetStatus(TaskStatusCompleted)
	default:
		t.SetStatus(TaskStatusWaiting)
	}

	return err
}

func (t *BaseTask) CanExecute(currentTime time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status == TaskStatusWaiting && !currentTime.Before(t.NextTime)
}

func (t *BaseTask) IsCompleted() bool {
	status := t.GetStatus()
	return status == TaskStatusCompleted || status == TaskStatusCanceled
}

func (t *BaseTask) GetStatus() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

func (t *BaseTask) SetStatus(status TaskStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Status = status
	t.UpdateTime = time.Now()
}

// Runs 已执行次数
func (t *BaseTask) Runs() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.RunCount
}

// OnceTask 一次性任务
type OnceTask struct {
	*BaseTask
}

func NewOnceTask(name string, executeTime time.Time, timeout time.Duration, fn TaskFunc) *OnceTask {
	return &OnceTask{BaseTask: newBaseTask(name, TaskTypeOnce, executeTime, timeout, fn)}
}

// UpdateNextTime 一次性任务不再调度
func (t *OnceTask) UpdateNextTime(time.Time) time.Time {
	return time.Time{}
}

// IntervalTask 固定间隔任务
type IntervalTask struct {
	*BaseTask
	Interval time.Duration `json:"interval"`
}

func NewIntervalTask(name string, startTime time.Time, interval time.Duration, timeout time.Duration, fn TaskFunc) *IntervalTask {
	return &IntervalTask{
		BaseTask: newBaseTask(name, TaskTypeInterval, startTime, timeout, fn),
		Interval: interval,
	}
}

func (t *IntervalTask) UpdateNextTime(currentTime time.Time) time.Time {
	next := currentTime.Add(t.Interval)
	t.SetNextTime(next)
	return next
}

// CronTask 基于Cron表达式的任务，表达式带秒字段
type CronTask struct {
	*BaseTask
	CronExpr string        `json:"cron_expr"`
	schedule cron.Schedule `json:"-"`
}

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron 校验Cron表达式
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

func NewCronTask(name string, cronExpr string, timeout time.Duration, fn TaskFunc) (*CronTask, error) {
	schedule, err := ParseCron(cronExpr)
	if err != nil {
		return nil, err
	}

	return &CronTask{
		BaseTask: newBaseTask(name, TaskTypeCron, schedule.Next(time.Now()), timeout, fn),
		CronExpr: cronExpr,
		schedule: schedule,
	}, nil
}

func (t *CronTask) UpdateNextTime(currentTime time.Time) time.Time {
	next := t.schedule.Next(currentTime)
	t.SetNextTime(next)
	return next
}
