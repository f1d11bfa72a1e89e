package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
app:
  name: colombe-notify
  env: test

parent:
  matricule: "PAR001"
  full_name: "Mme Diallo"

children:
  - matricule: "MAT001"
    full_name: "Amadou Diallo"
    class: "3ème A"
    type: secondary

feed:
  url: nats://localhost:4222
  client_id: colombe-test

store:
  backend: sqlite
  sqlite_path: /tmp/test.db

checks:
  interval: 2m
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("解析基本字段", func(t *testing.T) {
		cfg, err := LoadConfig(writeTempConfig(t, sampleYAML))
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}

		if cfg.App.Name != "colombe-notify" {
			t.Errorf("应用名 = %q", cfg.App.Name)
		}
		if cfg.Parent.Matricule != "PAR001" {
			t.Errorf("家长学号 = %q", cfg.Parent.Matricule)
		}
		if len(cfg.Children) != 1 || !cfg.Children[0].Secondary() {
			t.Errorf("子女配置 = %+v", cfg.Children)
		}
		if cfg.Checks.Interval != 2*time.Minute {
			t.Errorf("检查间隔 = %v, 期望 2m", cfg.Checks.Interval)
		}
	})

	t.Run("缺省值补全", func(t *testing.T) {
		cfg, err := LoadConfig(writeTempConfig(t, sampleYAML))
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}

		if cfg.Store.MaxRecords != 200 {
			t.Errorf("保留上限 = %d, 期望 200", cfg.Store.MaxRecords)
		}
		if cfg.Store.OfflineQueueSize != 50 {
			t.Errorf("离线队列上限 = %d, 期望 50", cfg.Store.OfflineQueueSize)
		}
		if cfg.Checks.FirstDelay != 15*time.Second {
			t.Errorf("首次检查延迟 = %v, 期望 15s", cfg.Checks.FirstDelay)
		}
		if cfg.Retry.MaxAttempts != 5 || cfg.Retry.BaseDelay != 3*time.Second || cfg.Retry.MaxDelay != 15*time.Second {
			t.Errorf("重试策略 = %+v", cfg.Retry)
		}
		if cfg.Bridge.URL != cfg.Feed.URL {
			t.Errorf("桥接地址应默认复用变更流地址: %q", cfg.Bridge.URL)
		}
		if cfg.Feed.SubjectPrefix != "feed" {
			t.Errorf("变更流主题前缀 = %q, 期望 feed", cfg.Feed.SubjectPrefix)
		}
		if cfg.API.Port != "8080" {
			t.Errorf("API端口 = %q, 期望 8080", cfg.API.Port)
		}
	})

	t.Run("缺省客户端标识自动生成", func(t *testing.T) {
		yaml := `
feed:
  url: nats://localhost:4222
`
		cfg, err := LoadConfig(writeTempConfig(t, yaml))
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}
		if cfg.Feed.ClientID == "" {
			t.Error("客户端标识应自动生成")
		}
	})

	t.Run("环境变量覆盖", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "postgres")
		t.Setenv("DB_HOST", "db.internal")
		t.Setenv("API_PORT", "9999")

		cfg, err := LoadConfig(writeTempConfig(t, sampleYAML))
		if err != nil {
			t.Fatalf("加载配置失败: %v", err)
		}

		if cfg.Store.Backend != "postgres" {
			t.Errorf("存储后端 = %q, 期望 postgres", cfg.Store.Backend)
		}
		if cfg.Store.Postgres.Host != "db.internal" {
			t.Errorf("数据库地址 = %q", cfg.Store.Postgres.Host)
		}
		if cfg.API.Port != "9999" {
			t.Errorf("API端口 = %q, 期望 9999", cfg.API.Port)
		}
	})

	t.Run("文件不存在返回错误", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/app.yaml"); err == nil {
			t.Error("不存在的配置文件应返回错误")
		}
	})

	t.Run("非法YAML返回错误", func(t *testing.T) {
		if _, err := LoadConfig(writeTempConfig(t, "app: [")); err == nil {
			t.Error("非法YAML应返回错误")
		}
	})
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Run("默认开发环境", func(t *testing.T) {
		t.Setenv("APP_ENV", "")
		if got := GetDefaultConfigPath(); got != "configs/dev/app.yaml" {
			t.Errorf("默认路径 = %q", got)
		}
	})

	t.Run("跟随APP_ENV", func(t *testing.T) {
		t.Setenv("APP_ENV", "prod")
		if got := GetDefaultConfigPath(); got != "configs/prod/app.yaml" {
			t.Errorf("路径 = %q", got)
		}
	})
}
