package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// tables 由 entity 包注册，避免 config 反向依赖 entity。
var tables []interface{}

// RegisterTables 注册需要 ensureTables 托管的表结构。
func RegisterTables(models ...interface{}) {
	tables = append(tables, models...)
}

func InitDB() error {
	if AppConfig == nil {
		return errors.New("app config is not initialized")
	}

	cfg := AppConfig.DB
	var (
		db  *gorm.DB
		err error
	)

	switch {
	case strings.EqualFold(cfg.Driver, "sqlite"):
		path := cfg.Path
		if strings.TrimSpace(path) == "" {
			path = "data/automl_studio.db"
		}
		db, err = gorm.Open(sqlite.Open(path), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return fmt.Errorf("open sqlite failed (path=%s): %w", path, err)
		}
	case strings.EqualFold(cfg.Driver, "mysql"):
		loc := url.QueryEscape("Asia/Shanghai")
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=%s&timeout=5s&readTimeout=10s&writeTimeout=10s",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			loc,
		)
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
			PrepareStmt: true,
			Logger:      logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return fmt.Errorf(
				"connect mysql failed (host=%s port=%d db=%s user=%s): %w",
				cfg.Host, cfg.Port, cfg.DBName, cfg.User, err,
			)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("get underlying sql.DB failed: %w", err)
		}
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		if err := sqlDB.Ping(); err != nil {
			return fmt.Errorf("mysql ping failed: %w", err)
		}
	default:
		return fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}

	if err := ensureTables(db); err != nil {
		return err
	}

	DB = db
	return nil
}

func ensureTables(db *gorm.DB) error {
	for _, m := range tables {
		if db.Migrator().HasTable(m) {
			continue
		}
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto migrate missing table failed: %w", err)
		}
	}

	return nil
}
