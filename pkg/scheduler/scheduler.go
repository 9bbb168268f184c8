package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	errorc "neuralmail/pkg/core/err"
	"neuralmail/pkg/core/logger"
)

// Scheduler 本地任务调度器，按下次执行时间驱动单个定时器
type Scheduler struct {
	maxWorkers int

	isRunning atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	taskHeap *TaskHeap
	tasksMu  sync.RWMutex
	tasks    map[string]Task

	workerSemaphore chan struct{}

	timer   *time.Timer
	timerMu sync.Mutex

	log   *logger.Log
	err   *errorc.ErrorBuilder
	stats *SchedulerStats
}

// SchedulerStats 调度器统计信息
type SchedulerStats struct {
	mu              sync.RWMutex
	TotalTasks      int64     `json:"total_tasks"`
	CompletedTasks  int64     `json:"completed_tasks"`
	FailedTasks     int64     `json:"failed_tasks"`
	LastExecuteTime time.Time `json:"last_execute_time"`
}

// SchedulerConfig 调度器配置
type SchedulerConfig struct {
	MaxWorkers int `yaml:"max-workers" json:"max_workers"`
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{MaxWorkers: 4}
}

func NewScheduler(config SchedulerConfig, log *logger.Log) *Scheduler {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultSchedulerConfig().MaxWorkers
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Scheduler{
		maxWorkers:      config.MaxWorkers,
		taskHeap:        NewTaskHeap(),
		tasks:           make(map[string]Task),
		workerSemaphore: make(chan struct{}, config.MaxWorkers),
		log:             log.WithEntryName("Scheduler"),
		err:             errorc.NewErrorBuilder("Scheduler"),
		stats:           &SchedulerStats{},
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	if !s.isRunning.CompareAndSwap(false, true) {
		return s.err.New("调度器已经在运行", nil)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.log.WithField("workers", s.maxWorkers).Info("启动调度器")
	s.resetTimer()
	return nil
}

// Stop 停止调度器并等待正在执行的任务结束
func (s *Scheduler) Stop() error {
	if !s.isRunning.CompareAndSwap(true, false) {
		return nil
	}

	s.log.Info("停止调度器")
	s.cancel()
	s.stopTimer()
	s.wg.Wait()
	s.taskHeap.Clear()
	s.log.Info("调度器已停止")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	return s.isRunning.Load()
}

// AddTask 添加任务
func (s *Scheduler) AddTask(task Task) error {
	if !s.isRunning.Load() {
		return s.err.New("调度器未运行", nil).Unavailable()
	}

	s.tasksMu.Lock()
	s.tasks[task.GetID()] = task
	s.tasksMu.Unlock()

	s.taskHeap.SafePush(task)
	s.stats.IncrementTotalTasks()

	s.log.WithField("task", task.GetName()).
		WithField("id", task.GetID()).
		WithField("type", task.GetType().String()).
		WithField("next", task.GetNextTime().Format(time.DateTime)).
		Info("添加任务")

	s.resetTimer()
	return nil
}

// RemoveTask 移除任务，正在执行的任务本轮结束后不再调度
func (s *Scheduler) RemoveTask(taskID string) bool {
	s.tasksMu.Lock()
	task, ok := s.tasks[taskID]
	delete(s.tasks, taskID)
	s.tasksMu.Unlock()
	if !ok {
		return false
	}

	task.SetStatus(TaskStatusCanceled)
	s.taskHeap.SafeRemove(taskID)
	s.log.WithField("task", task.GetName()).WithField("id", taskID).Info("移除任务")
	s.resetTimer()
	return true
}

func (s *Scheduler) GetTask(taskID string) Task {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()
	return s.tasks[taskID]
}

// ListTasks 列出所有未移除的任务
func (s *Scheduler) ListTasks() []Task {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()
	result := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		result = append(result, t)
	}
	return result
}

// GetStats 获取统计信息副本
func (s *Scheduler) GetStats() *SchedulerStats {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	return &SchedulerStats{
		TotalTasks:      s.stats.TotalTasks,
		CompletedTasks:  s.stats.CompletedTasks,
		FailedTasks:     s.stats.FailedTasks,
		LastExecuteTime: s.stats.LastExecuteTime,
	}
}

func (s *Scheduler) resetTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	if !s.isRunning.Load() {
		return
	}

	nextTime := s.taskHeap.GetNextExecuteTime()
	if nextTime == nil {
		return
	}

	waitDuration := time.Until(*nextTime)
	if waitDuration < 0 {
		waitDuration = 0
	}
	s.timer = time.AfterFunc(waitDuration, s.onTimerFired)
}

func (s *Scheduler) stopTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) onTimerFired() {
	if !s.isRunning.Load() {
		return
	}

	readyTasks := s.taskHeap.PopReadyTasks(time.Now())
	if len(readyTasks) == 0 {
		s.resetTimer()
		return
	}

	for _, task := range readyTasks {
		s.executeTask(task)
	}
	// 下一次定时器由任务执行结束后重置
}

func (s *Scheduler) executeTask(task Task) {
	select {
	case s.workerSemaphore <- struct{}{}:
		s.wg.Add(1)
		go func(t Task) {
			defer s.wg.Done()
			defer func() { <-s.workerSemaphore }()
			s.runTask(t)
		}(task)
	default:
		s.log.WithField("task", task.GetName()).Warn("工作者池已满，任务延后1秒")
		task.SetNextTime(time.Now().Add(time.Second))
		task.SetStatus(TaskStatusWaiting)
		s.taskHeap.SafePush(task)
		s.resetTimer()
	}
}

func (s *Scheduler) runTask(task Task) {
	start := time.Now()
	log := s.log.WithField("task", task.GetName()).WithField("id", task.GetID())
	log.Debug("开始执行任务")

	ctx, cancel := context.WithTimeout(s.ctx, task.GetTimeout())
	defer cancel()

	err := s.safeExecute(ctx, task)
	s.stats.SetLastExecuteTime(start)

	log = log.WithField("cost", time.Since(start).Round(time.Millisecond))
	if err != nil {
		s.err.New("任务执行失败", err).ToLog(log.GetLogger())
		s.stats.IncrementFailedTasks()
	} else {
		log.Debug("任务执行成功")
		s.stats.IncrementCompletedTasks()
	}

	if task.IsCompleted() {
		s.forget(task.GetID())
		s.resetTimer()
		return
	}
	s.reschedule(task, time.Now())
}

func (s *Scheduler) safeExecute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			task.SetStatus(TaskStatusFailed)
			err = fmt.Errorf("任务panic: %v", r)
		}
	}()
	return task.Execute(ctx)
}

// reschedule 计算下次执行时间后重新入堆，已移除或不再执行的任务丢弃
func (s *Scheduler) reschedule(task Task, now time.Time) {
	if !s.isRunning.Load() || s.GetTask(task.GetID()) == nil {
		return
	}

	nextTime := task.UpdateNextTime(now)
	if nextTime.IsZero() {
		s.forget(task.GetID())
		s.resetTimer()
		return
	}

	task.SetStatus(TaskStatusWaiting)
	s.taskHeap.SafePush(task)
	s.resetTimer()
}

func (s *Scheduler) forget(taskID string) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	delete(s.tasks, taskID)
}

func (s *SchedulerStats) IncrementTotalTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalTasks++
}

func (s *SchedulerStats) IncrementCompletedTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CompletedTasks++
}

func (s *SchedulerStats) IncrementFailedTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FailedTasks++
}

func (s *SchedulerStats) SetLastExecuteTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastExecuteTime = t
}
