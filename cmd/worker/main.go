package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"ColombeNotify/pkg/config"
	"ColombeNotify/pkg/service"
)

func main() {
	log.Println("启动后台通知服务...")

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}

	// 装配后台通知层
	manager, err := service.NewManager(cfg, service.RoleWorker)
	if err != nil {
		log.Fatalf("装配通知层失败: %v\n", err)
	}

	if err := manager.Initialize(); err != nil {
		log.Fatalf("初始化通知层失败: %v\n", err)
	}
	defer manager.Teardown()

	log.Println("后台通知服务运行中，按Ctrl+C退出")

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在停止后台通知服务...")
}
