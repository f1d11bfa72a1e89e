// pkg/store/factory.go
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ColombeNotify/pkg/config"
)

// Open 按配置打开存储后端
// sqlite：本地单机部署，前后台进程共享同一数据库文件
// postgres：多主机部署时的共享存储
func Open(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	switch cfg.Store.Backend {
	case "sqlite", "":
		if dir := filepath.Dir(cfg.Store.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("创建存储目录失败: %w", err)
			}
		}
		db, err := gorm.Open(sqlite.Open(cfg.Store.SQLitePath), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("打开sqlite存储失败: %w", err)
		}
		return db, nil

	case "postgres":
		pg := cfg.Store.Postgres
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode,
		)
		db, err := gorm.Open(postgres.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("连接postgres存储失败: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("未知的存储后端: %s", cfg.Store.Backend)
	}
}
