package app

import (
	"context"
	"time"

	"neuralmail/pkg/modular"
)

// Startup 启动调度器和全部模块，只有第一次成功的调用生效。
// 调度器启动失败时不记录启动上下文，之后可以重试。
func (a *App) Startup(ctx context.Context, launchOptions map[string]string) error {
	a.mu.Lock()
	if a.launch.SessionID() != "" {
		a.mu.Unlock()
		a.Logger.Debug("应用已启动，忽略重复调用")
		return nil
	}
	lc := modular.NewLaunchContext(launchOptions, a.Config.Debug)
	if err := a.Scheduler.Start(); err != nil {
		a.mu.Unlock()
		a.Logger.WithSession(lc.SessionID()).WithErr(err).Error("调度器启动失败")
		return err
	}
	a.launch = lc
	a.mu.Unlock()

	a.Logger.WithSession(lc.SessionID()).
		WithField("env", a.Config.Env).
		WithField("version", a.Config.Version).
		Info("开始启动 NeuralMail")

	a.Manager.Startup(ctx, lc)
	return nil
}

// WaitReady 等待管理器就绪并且后台模块启动完成，超时返回 false。
// 就绪前不创建任何 goroutine；就绪后整个应用共用一个等待后台任务的 goroutine。
func (a *App) WaitReady(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-a.Manager.Ready():
	case <-timer.C:
		return false
	}

	select {
	case <-a.settled():
		return true
	case <-timer.C:
		return false
	}
}

// settled 后台启动任务全部结束后关闭
func (a *App) settled() <-chan struct{} {
	a.settleOnce.Do(func() {
		a.settledCh = make(chan struct{})
		go func() {
			a.Manager.Wait()
			close(a.settledCh)
		}()
	})
	return a.settledCh
}

// EnterBackground 进程收到退出信号时先广播进入后台，让各模块落盘
func (a *App) EnterBackground() {
	a.Manager.ApplicationDidEnterBackground()
}

// Shutdown 停止后台任务并释放模块资源
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Manager.Shutdown(ctx)
	if err != nil {
		a.Logger.WithErr(err).Warn("等待模块启动任务退出超时")
	}

	if a.Scheduler.IsRunning() {
		if stopErr := a.Scheduler.Stop(); stopErr != nil {
			a.Logger.WithErr(stopErr).Warn("停止调度器失败")
		}
	}
	if closeErr := a.MailModule.Close(); closeErr != nil {
		a.Logger.WithErr(closeErr).Warn("关闭邮件模块失败")
	}
	if closeErr := a.DataModule.Close(); closeErr != nil {
		a.Logger.WithErr(closeErr).Warn("关闭数据库失败")
	}
	if closeErr := a.LogModule.Close(); closeErr != nil {
		a.Logger.WithErr(closeErr).Debug("关闭日志失败")
	}

	a.Logger.Info("应用已停止")
	return err
}
