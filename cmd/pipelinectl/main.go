package main

import (
	"fmt"
	"os"

	"github.com/fiftycompanies/waide-sub001/api"
	"github.com/fiftycompanies/waide-sub001/internal/config"
	"github.com/fiftycompanies/waide-sub001/internal/infra"
	"github.com/fiftycompanies/waide-sub001/internal/logger"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:           "pipelinectl",
	Short:         "内容流水线运维工具",
	Long:          "导入提示词模板与评分项、手动触发作业扫描、试算评分、广播评分缓存失效以及签发访问令牌。",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := config.LoadEnvFile(); err != nil {
			return err
		}
		return nil
	},
}

var (
	flagEnv        string
	flagConfigPath string
	flagMigrate    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", "环境名称，默认读取 APP_ENV")
	rootCmd.PersistentFlags().StringVarP(&flagConfigPath, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&flagMigrate, "migrate", false, "执行前自动迁移表结构")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		errorf("错误: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig 加载配置并初始化控制台日志
func loadConfig() (*config.Config, error) {
	env := flagEnv
	if env == "" {
		env = config.Env()
	}
	cfg, err := config.Load(env, flagConfigPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Options{Level: cfg.Log.Level, Format: "console", OutputPath: "stderr"}); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}

// openDatabase 连接数据库，按需迁移
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := infra.InitDatabase(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		return nil, err
	}
	if flagMigrate || cfg.Database.AutoMigrate {
		if err := infra.AutoMigrate(db, api.Models()...); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// openRedis 连接 Redis
func openRedis(cfg *config.Config) (redis.UniversalClient, error) {
	cfg.Redis = api.NormalizeRedisConfig(cfg.Redis)
	return infra.InitRedis(&cfg.Redis)
}
