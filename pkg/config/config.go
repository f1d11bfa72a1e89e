package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"ColombeNotify/pkg/model"
)

// Config 应用配置
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	Parent   model.Parent  `yaml:"parent"`
	Children []model.Child `yaml:"children"`

	Feed struct {
		URL           string `yaml:"url"` // NATS地址
		ClientID      string `yaml:"client_id"`
		SubjectPrefix string `yaml:"subject_prefix"` // 变更流主题前缀，默认 feed
	} `yaml:"feed"`

	Store struct {
		Backend          string `yaml:"backend"` // sqlite 或 postgres
		SQLitePath       string `yaml:"sqlite_path"`
		MaxRecords       int    `yaml:"max_records"`        // 通知保留上限
		OfflineQueueSize int    `yaml:"offline_queue_size"` // 离线队列上限
		Postgres         struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
			SSLMode  string `yaml:"sslmode"`
		} `yaml:"postgres"`
	} `yaml:"store"`

	Notify struct {
		WebhookURL string        `yaml:"webhook_url"` // 系统通知投递地址
		BadgeURL   string        `yaml:"badge_url"`   // 徽章投递地址，为空表示平台不支持徽章
		Icon       string        `yaml:"icon"`
		BadgeIcon  string        `yaml:"badge_icon"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"notify"`

	Bridge struct {
		URL           string `yaml:"url"` // NATS地址，通常与feed共用
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"bridge"`

	Checks struct {
		Interval   time.Duration `yaml:"interval"`    // 周期性复查间隔
		FirstDelay time.Duration `yaml:"first_delay"` // 启动后首次检查延迟
	} `yaml:"checks"`

	Retry struct {
		MaxAttempts int           `yaml:"max_attempts"`
		BaseDelay   time.Duration `yaml:"base_delay"`
		MaxDelay    time.Duration `yaml:"max_delay"`
	} `yaml:"retry"`

	API struct {
		Port         string        `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"api"`
}

// LoadConfig 从文件加载配置
func LoadConfig(path string) (*Config, error) {
	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析YAML
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 环境变量覆盖
	overrideFromEnv(&config)

	// 补全默认值
	applyDefaults(&config)

	return &config, nil
}

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) {
	// 应用名称
	if env := os.Getenv("APP_NAME"); env != "" {
		config.App.Name = env
	}

	// 环境
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}

	// 家长学号
	if env := os.Getenv("PARENT_MATRICULE"); env != "" {
		config.Parent.Matricule = env
	}

	// 变更流配置
	if env := os.Getenv("FEED_URL"); env != "" {
		config.Feed.URL = env
	}
	if env := os.Getenv("FEED_CLIENT_ID"); env != "" {
		config.Feed.ClientID = env
	}

	// 存储配置
	if env := os.Getenv("STORE_BACKEND"); env != "" {
		config.Store.Backend = env
	}
	if env := os.Getenv("STORE_SQLITE_PATH"); env != "" {
		config.Store.SQLitePath = env
	}
	if env := os.Getenv("STORE_MAX_RECORDS"); env != "" {
		if n, err := strconv.Atoi(env); err == nil && n > 0 {
			config.Store.MaxRecords = n
		}
	}
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Store.Postgres.Host = env
	}
	if env := os.Getenv("DB_PORT"); env != "" {
		var port int
		fmt.Sscanf(env, "%d", &port)
		if port > 0 {
			config.Store.Postgres.Port = port
		}
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.Store.Postgres.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Store.Postgres.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Store.Postgres.DBName = env
	}

	// 通知投递配置
	if env := os.Getenv("NOTIFY_WEBHOOK_URL"); env != "" {
		config.Notify.WebhookURL = env
	}
	if env := os.Getenv("NOTIFY_BADGE_URL"); env != "" {
		config.Notify.BadgeURL = env
	}

	// 桥接配置
	if env := os.Getenv("BRIDGE_URL"); env != "" {
		config.Bridge.URL = env
	}

	// API配置
	if env := os.Getenv("API_PORT"); env != "" {
		config.API.Port = env
	}
}

// applyDefaults 补全缺省配置
func applyDefaults(config *Config) {
	if config.Feed.SubjectPrefix == "" {
		config.Feed.SubjectPrefix = "feed"
	}
	if config.Feed.ClientID == "" {
		// 同一NATS服务器上多个实例共存时客户端标识需要唯一
		config.Feed.ClientID = "colombe-" + uuid.NewString()[:8]
	}
	if config.Bridge.URL == "" {
		config.Bridge.URL = config.Feed.URL
	}
	if config.Bridge.SubjectPrefix == "" {
		config.Bridge.SubjectPrefix = "bridge"
	}
	if config.Store.Backend == "" {
		config.Store.Backend = "sqlite"
	}
	if config.Store.SQLitePath == "" {
		config.Store.SQLitePath = "data/notifications.db"
	}
	if config.Store.MaxRecords <= 0 {
		config.Store.MaxRecords = 200
	}
	if config.Store.OfflineQueueSize <= 0 {
		config.Store.OfflineQueueSize = 50
	}
	if config.Notify.Timeout <= 0 {
		config.Notify.Timeout = 10 * time.Second
	}
	if config.Checks.Interval <= 0 {
		config.Checks.Interval = 5 * time.Minute
	}
	if config.Checks.FirstDelay <= 0 {
		config.Checks.FirstDelay = 15 * time.Second
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry.MaxAttempts = 5
	}
	if config.Retry.BaseDelay <= 0 {
		config.Retry.BaseDelay = 3 * time.Second
	}
	if config.Retry.MaxDelay <= 0 {
		config.Retry.MaxDelay = 15 * time.Second
	}
	if config.API.Port == "" {
		config.API.Port = "8080"
	}
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev" // 默认开发环境
	}

	return fmt.Sprintf("configs/%s/app.yaml", env)
}
