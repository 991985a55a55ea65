package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
	Workflow WorkflowConfig `yaml:"workflow"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DBConfig struct {
	Driver   string `yaml:"driver"` // sqlite | mysql
	Path     string `yaml:"path"`   // sqlite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Path string `yaml:"path"`
}

// WorkflowConfig 工作流引擎相关配置
type WorkflowConfig struct {
	RequireApproval   bool `yaml:"require_approval"`     // 阶段结果需人工确认后才生效
	StageTimeoutSec   int  `yaml:"stage_timeout_sec"`    // 单阶段执行超时（秒）
	TrainingWorkers   int  `yaml:"training_workers"`     // 并行训练 worker 数，0 表示不限
	AutoAnalyzeOnPoll bool `yaml:"auto_analyze_on_poll"` // 首次轮询时自动触发分析
	LockTTLSec        int  `yaml:"lock_ttl_sec"`         // redis 锁的 TTL（秒）
}

// StageTimeout 返回单阶段超时时间；未配置时给一个兜底值，避免阶段永远卡在 running。
func (w WorkflowConfig) StageTimeout() time.Duration {
	if w.StageTimeoutSec <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(w.StageTimeoutSec) * time.Second
}

func (w WorkflowConfig) LockTTL() time.Duration {
	if w.LockTTLSec <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(w.LockTTLSec) * time.Second
}

var AppConfig *Config

func InitConfig() error {
	data, err := os.ReadFile("config/config.yaml")
	if err != nil {
		return fmt.Errorf("read config file failed: %v", err)
	}

	AppConfig = &Config{}
	err = yaml.Unmarshal(data, AppConfig)
	if err != nil {
		return fmt.Errorf("unmarshal config failed: %v", err)
	}

	return nil
}

// InitTestConfig 单元测试用：不读配置文件，直接构造内存配置（sqlite in-memory）。
func InitTestConfig() {
	AppConfig = &Config{
		DB:  DBConfig{Driver: "sqlite", Path: "file::memory:?cache=shared"},
		Log: LogConfig{Path: os.TempDir() + "/automl_studio_test.log"},
		Workflow: WorkflowConfig{
			StageTimeoutSec: 30,
		},
	}
}
