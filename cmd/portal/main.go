package main

import (
	"log"
	"os"

	"ColombeNotify/pkg/api"
	"ColombeNotify/pkg/config"
	"ColombeNotify/pkg/service"
)

func main() {
	log.Println("启动家长端门户服务...")

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v\n", err)
	}

	// 装配前台通知层
	manager, err := service.NewManager(cfg, service.RolePortal)
	if err != nil {
		log.Fatalf("装配通知层失败: %v\n", err)
	}

	if err := manager.Initialize(); err != nil {
		log.Fatalf("初始化通知层失败: %v\n", err)
	}
	defer manager.Teardown()

	// 创建API处理程序
	handlers := api.NewHandlers(manager)

	// 创建并启动服务器
	server := api.NewServer(cfg.API.Port, cfg.API.ReadTimeout, cfg.API.WriteTimeout)
	server.SetupRoutes(handlers)
	server.Start()
}
