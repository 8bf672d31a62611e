package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"FactoryTrust/internal/score"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 重算触发方式
const (
	TriggerModeInline = "inline" // 在写信号的请求内同步重算
	TriggerModeAsync  = "async"  // 投递到后台 worker 异步重算
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Database DatabaseConfig `mapstructure:"database"` // 数据库配置
	Log      LogConfig      `mapstructure:"log"`      // 日志配置
	Score    ScoreConfig    `mapstructure:"score"`    // 信任分计算配置
	Notify   NotifyConfig   `mapstructure:"notify"`   // 分数变动通知配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig PostgreSQL数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN（URL 形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
	LogSQL          bool          `mapstructure:"log_sql"`           // 是否打印SQL
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"` // debug/info/warn/error
}

// ScoreConfig 信任分计算配置
type ScoreConfig struct {
	AICoefficient float64 `mapstructure:"ai_coefficient"` // AI 系数 a，人工系数为 1-a，取值 (0,1)
	TriggerMode   string  `mapstructure:"trigger_mode"`   // inline / async
	Workers       int     `mapstructure:"workers"`        // 异步重算 worker 数
	QueueSize     int     `mapstructure:"queue_size"`     // 排队工厂上限，超出时在请求内同步重算
}

// NotifyConfig 分数变动后推送到外部消息集成的 webhook 配置
type NotifyConfig struct {
	WebhookURL string  `mapstructure:"webhook_url"` // 为空时不推送
	Token      string  `mapstructure:"token"`       // Bearer Token
	Timeout    int     `mapstructure:"timeout"`     // 请求超时（秒）
	Proxy      string  `mapstructure:"proxy"`       // 代理地址
	MinDelta   float64 `mapstructure:"min_delta"`   // 总分变动达到该值才推送
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile 从指定路径加载配置；path 为空时按默认路径 ./config/config.yaml 查找
func LoadConfigFile(path string) (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	setDefaults()
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
	}
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	if err := overrideFromEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("database.max_open_conns", 20)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", time.Hour)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("score.ai_coefficient", 0.4)
	viper.SetDefault("score.trigger_mode", TriggerModeInline)
	viper.SetDefault("score.workers", 4)
	viper.SetDefault("score.queue_size", 1024)
	viper.SetDefault("notify.timeout", 5)
	viper.SetDefault("notify.min_delta", 1.0)
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("NOTIFY_WEBHOOK_URL"); v != "" {
		cfg.Notify.WebhookURL = v
	}
	if v := os.Getenv("NOTIFY_TOKEN"); v != "" {
		cfg.Notify.Token = v
	}
	if v := os.Getenv("FTGI_AI_COEFFICIENT"); v != "" {
		a, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FTGI_AI_COEFFICIENT 解析失败: %w", err)
		}
		cfg.Score.AICoefficient = a
	}
	return nil
}

// Validate 启动时校验：系数区间、通道/维度权重和、触发方式
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn 不能为空")
	}
	if err := score.ValidateCoefficient(c.Score.AICoefficient); err != nil {
		return err
	}
	if err := score.ValidateWeights(); err != nil {
		return err
	}
	switch strings.ToLower(c.Score.TriggerMode) {
	case TriggerModeInline:
	case TriggerModeAsync:
		if c.Score.Workers <= 0 {
			return fmt.Errorf("score.workers 必须大于 0")
		}
		if c.Score.QueueSize <= 0 {
			return fmt.Errorf("score.queue_size 必须大于 0")
		}
	default:
		return fmt.Errorf("未支持的 score.trigger_mode: %s", c.Score.TriggerMode)
	}
	if c.Notify.MinDelta < 0 {
		return fmt.Errorf("notify.min_delta 不能为负数")
	}
	return nil
}
