package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	AI       AIConfig       `mapstructure:"ai"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode         string `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" validate:"oneof=postgres sqlite"` // sqlite 仅用于本地调试，dbname 为文件路径
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=standalone sentinel cluster"`

	// 单节点模式配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 哨兵模式配置
	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	// 集群模式配置
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// Addr 单节点地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"` // debug, info, warn, error
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json console"`
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// AIConfig 补全服务配置
type AIConfig struct {
	DefaultModel string          `mapstructure:"default_model"`
	Timeout      int             `mapstructure:"timeout" validate:"min=0"` // 秒
	RetryBackoff time.Duration   `mapstructure:"retry_backoff"`            // 首次重试等待，之后翻倍
	OpenAI       OpenAIConfig    `mapstructure:"openai"`
	Anthropic    AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	OrgID      string `mapstructure:"org_id"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// AnthropicConfig Anthropic 配置
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// PipelineConfig 作业流水线配置
type PipelineConfig struct {
	BatchSize        int           `mapstructure:"batch_size" validate:"min=1"`                // 单次扫描认领的作业数
	MaxRewrites      int           `mapstructure:"max_rewrites" validate:"min=0"`              // 质检未通过时最多重写次数，上限 2
	QualityThreshold float64       `mapstructure:"quality_threshold" validate:"min=0,max=100"` // 质检通过分数线
	SweepInterval    string        `mapstructure:"sweep_interval"`                             // 定时扫描 cron 表达式，如 "@every 5m"
	SweepJobTypes    []string      `mapstructure:"sweep_job_types"`                            // 定时扫描的作业类型
	JobTimeout       time.Duration `mapstructure:"job_timeout"`                                // 单个作业超时
	QualityGate      string        `mapstructure:"quality_gate" validate:"oneof=llm scoring"`
	ScoringGroup     string        `mapstructure:"scoring_group" validate:"required_if=QualityGate scoring"` // scoring 质检使用的评分组
	RoutesFile       string        `mapstructure:"routes_file"`                                              // 作业类型路由 YAML，可选
}

// ScoringConfig 评分引擎配置
type ScoringConfig struct {
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	InvalidateChannel    string        `mapstructure:"invalidate_channel"` // Redis 失效广播频道
	EnableRedisBroadcast bool          `mapstructure:"enable_redis_broadcast"`
}

// AuthConfig 接口鉴权配置
type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	Issuer       string        `mapstructure:"issuer"`
	AccessExpiry time.Duration `mapstructure:"access_expiry"`
	Disabled     bool          `mapstructure:"disabled"` // 本地调试时关闭鉴权
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")
	setDefaults(v)

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_HOST

	if err := v.ReadInConfig(); err != nil {
		// 没有配置文件时仅使用默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// setDefaults 默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 300)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 3600)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("ai.default_model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", 120)
	v.SetDefault("ai.retry_backoff", "1s")

	v.SetDefault("pipeline.batch_size", 5)
	v.SetDefault("pipeline.max_rewrites", 2)
	v.SetDefault("pipeline.quality_threshold", 70)
	v.SetDefault("pipeline.sweep_interval", "@every 5m")
	v.SetDefault("pipeline.job_timeout", "10m")
	v.SetDefault("pipeline.quality_gate", "llm")
	v.SetDefault("pipeline.scoring_group", "content_quality")

	v.SetDefault("scoring.cache_ttl", "5m")
	v.SetDefault("scoring.invalidate_channel", "scoring:criteria:invalidate")

	v.SetDefault("auth.issuer", "waide-pipeline")
	v.SetDefault("auth.access_expiry", "2h")
}

// Validate 校验取值范围与枚举项
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}
	return nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
