package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"neuralmail/app"
	"neuralmail/base"
	"neuralmail/pkg/core/start"
	"neuralmail/router"

	"github.com/gofiber/fiber/v2"
)

const (
	readyTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	env, filename := getBaseInfo()

	configures, err := start.LoadConfigures(filename, env)
	if err != nil {
		panic(fmt.Sprintf("加载配置失败,因为：%v", err))
	}
	base.Configures = configures
	base.Logger = configures.Logger
	base.ENV = env

	cfg := configures.Config
	appRoot := app.NewApp(cfg, base.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := appRoot.Startup(ctx, map[string]string{"env": env, "config": filename}); err != nil {
		base.Logger.Panic(fmt.Sprintf("启动失败: %v", err))
	}
	if !appRoot.WaitReady(readyTimeout) {
		base.Logger.WithField("timeout", readyTimeout).Warn("模块启动未在限定时间内完成，继续运行")
	}

	var fiberApp *fiber.App
	if cfg.DebugServer.Enabled {
		fiberApp = start.GetApp(base.Logger, appRoot.IsReady)
		router.Register(appRoot, fiberApp)
		go func() {
			addr := fmt.Sprintf("127.0.0.1:%d", cfg.DebugServer.Port)
			base.Logger.WithField("addr", addr).Info("调试服务已启动")
			if err := fiberApp.Listen(addr); err != nil {
				base.Logger.WithErr(err).Error("调试服务退出")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	base.Logger.WithField("signal", sig.String()).Info("收到退出信号")

	appRoot.EnterBackground()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if fiberApp != nil {
		if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
			base.Logger.WithErr(err).Warn("关闭调试服务失败")
		}
	}
	if err := appRoot.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		base.Logger.WithErr(err).Warn("应用退出时出现错误")
	}
}

func getBaseInfo() (string, string) {
	env := flag.String("env", "dev", "环境配置 (dev, prod, test等)")
	configFile := flag.String("config", "", "配置文件路径，默认为 ./resources/{env}.yaml")
	flag.Parse()

	if *configFile != "" {
		return *env, *configFile
	}
	getwd, err := os.Getwd()
	if err != nil {
		panic(fmt.Sprintf("获取当前文件位置失败,因为：%v", err))
	}
	return *env, filepath.Join(getwd, "resources", *env+".yaml")
}
