package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/ai"
	"github.com/fiftycompanies/waide-sub001/internal/auth"
	"github.com/fiftycompanies/waide-sub001/internal/chain"
	"github.com/fiftycompanies/waide-sub001/internal/config"
	"github.com/fiftycompanies/waide-sub001/internal/content"
	"github.com/fiftycompanies/waide-sub001/internal/infra"
	"github.com/fiftycompanies/waide-sub001/internal/infra/queue"
	"github.com/fiftycompanies/waide-sub001/internal/invocation"
	"github.com/fiftycompanies/waide-sub001/internal/job"
	"github.com/fiftycompanies/waide-sub001/internal/metrics"
	"github.com/fiftycompanies/waide-sub001/internal/prompt"
	"github.com/fiftycompanies/waide-sub001/internal/quality"
	"github.com/fiftycompanies/waide-sub001/internal/scoring"
	"github.com/fiftycompanies/waide-sub001/internal/worker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// promptCacheTTL 模板解析结果的进程内缓存时间
const promptCacheTTL = time.Minute

// Models 返回需要自动迁移的模型
func Models() []any {
	return []any{
		&prompt.PromptTemplate{},
		&invocation.ExecutionLog{},
		&job.Job{},
		&content.GeneratedContent{},
		&scoring.Criterion{},
	}
}

// Invalidator 评分项缓存失效
type Invalidator interface {
	Invalidate(ctx context.Context, group string) error
}

// AppContainer 应用容器，集中管理所有服务依赖
type AppContainer struct {
	// 基础设施
	DB          *gorm.DB
	Config      *config.Config
	RedisClient redis.UniversalClient // Redis 不可用时为 nil
	QueueClient queue.Client          // Redis 不可用时为 nil
	Logger      *zap.Logger

	// 认证
	JWTService *auth.JWTService

	// 模板与调用
	ModelClient  ai.ModelClient
	Templates    *prompt.Repository
	Resolver     *prompt.Resolver
	ExecLogs     *invocation.LogStore
	Engine       *invocation.Engine
	Orchestrator *chain.Orchestrator

	// 作业流水线
	Jobs      *job.Repository
	Contents  *content.Store
	Generator *job.InvocationGenerator
	Gate      quality.Gate
	Pipeline  *job.Pipeline

	// 评分
	Criteria      *scoring.Store
	CriteriaCache *scoring.CriteriaCache
	Scoring       *scoring.Engine
	Invalidator   Invalidator
	broadcaster   *scoring.RedisInvalidator

	// 后台任务
	Worker    *worker.Server
	Scheduler *worker.Scheduler
	Collector *metrics.SystemCollector
}

// InitContainer 初始化容器
// rdb 为 nil 时不启用队列、定时扫描与失效广播；client 为 nil 时按配置创建模型路由
func InitContainer(db *gorm.DB, rdb redis.UniversalClient, cfg *config.Config, client ai.ModelClient, logger *zap.Logger) (*AppContainer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &AppContainer{
		DB:          db,
		Config:      cfg,
		RedisClient: rdb,
		Logger:      logger,
		ModelClient: client,
	}

	if !cfg.Auth.Disabled {
		if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
			return nil, fmt.Errorf("未配置 auth.jwt_secret，如需关闭鉴权请设置 auth.disabled")
		}
		c.JWTService = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, auth.WithAccessExpiry(cfg.Auth.AccessExpiry))
	}

	if err := c.initInvocation(); err != nil {
		return nil, err
	}
	c.initScoring()
	if err := c.initPipeline(); err != nil {
		return nil, err
	}
	if err := c.initWorker(); err != nil {
		return nil, err
	}

	if sqlDB, err := db.DB(); err == nil {
		c.Collector = metrics.NewSystemCollector(sqlDB, c.Jobs, logger.Named("metrics"))
	}
	return c, nil
}

func (c *AppContainer) initInvocation() error {
	if c.ModelClient == nil {
		router, err := ai.NewRouterFromConfig(&c.Config.AI)
		if err != nil {
			return err
		}
		c.ModelClient = router
	}

	c.Templates = prompt.NewRepository(c.DB)
	c.Resolver = prompt.NewResolver(c.Templates, promptCacheTTL, c.Logger.Named("prompt"))
	c.ExecLogs = invocation.NewLogStore(c.DB)
	c.Engine = invocation.NewEngine(c.Resolver, c.ModelClient, c.ExecLogs, ai.DefaultPriceTable(), c.Logger.Named("invocation"))
	c.Orchestrator = chain.NewOrchestrator(c.Engine, c.Logger.Named("chain"))
	return nil
}

func (c *AppContainer) initScoring() {
	c.Criteria = scoring.NewStore(c.DB)
	c.CriteriaCache = scoring.NewCriteriaCache(c.Config.Scoring.CacheTTL)
	c.Scoring = scoring.NewEngine(c.Criteria, c.CriteriaCache, c.Logger.Named("scoring"))

	if c.RedisClient != nil && c.Config.Scoring.EnableRedisBroadcast {
		c.broadcaster = scoring.NewRedisInvalidator(c.RedisClient, c.Config.Scoring.InvalidateChannel, c.CriteriaCache, c.Logger.Named("scoring"))
		c.Invalidator = c.broadcaster
		return
	}
	c.Invalidator = scoring.NewLocalInvalidator(c.CriteriaCache)
}

func (c *AppContainer) initPipeline() error {
	pc := c.Config.Pipeline

	c.Jobs = job.NewRepository(c.DB)
	c.Contents = content.NewStore(c.DB)
	c.Generator = job.NewInvocationGenerator(c.Engine, c.Orchestrator)
	for jobType, route := range job.DefaultRoutes() {
		c.Generator.Register(jobType, route)
	}
	if pc.RoutesFile != "" {
		routes, err := job.LoadRoutesFile(pc.RoutesFile)
		if err != nil {
			return err
		}
		for jobType, route := range routes {
			c.Generator.Register(jobType, route)
		}
		c.Logger.Info("已加载作业路由文件", zap.String("path", pc.RoutesFile), zap.Int("routes", len(routes)))
	}

	switch strings.ToLower(pc.QualityGate) {
	case "", "llm":
		c.Gate = quality.NewLLMGate(c.Engine, pc.QualityThreshold)
	case "scoring":
		c.Gate = quality.NewScoringGate(c.Scoring, pc.ScoringGroup, pc.QualityThreshold)
	default:
		return fmt.Errorf("不支持的质检方式: %s (可选: llm, scoring)", pc.QualityGate)
	}

	c.Pipeline = job.NewPipeline(
		c.Jobs,
		c.Generator,
		c.Contents,
		c.Gate,
		quality.NewLLMRewriter(c.Engine),
		job.Options{
			BatchSize:   pc.BatchSize,
			MaxRewrites: pc.MaxRewrites,
			JobTimeout:  pc.JobTimeout,
		},
		c.Logger.Named("pipeline"),
	)
	return nil
}

func (c *AppContainer) initWorker() error {
	if c.RedisClient == nil {
		c.Logger.Warn("Redis 不可用，后台队列与定时扫描已关闭")
		return nil
	}

	opt := infra.AsynqRedisOpt(&c.Config.Redis)
	c.QueueClient = queue.NewClient(opt, c.Config.Pipeline.JobTimeout)
	c.Worker = worker.NewServer(opt, c.Pipeline, c.Jobs, c.Logger.Named("worker"))

	scheduler, err := worker.NewScheduler(opt, c.Config.Pipeline, c.Logger.Named("scheduler"))
	if err != nil {
		return err
	}
	c.Scheduler = scheduler
	return nil
}

// Start 启动后台组件：作业 Worker、定时扫描、失效订阅与指标采集
func (c *AppContainer) Start(ctx context.Context) error {
	if c.Worker != nil {
		if err := c.Worker.Start(); err != nil {
			return fmt.Errorf("启动 Worker 失败: %w", err)
		}
	}
	if c.Scheduler != nil {
		if err := c.Scheduler.Start(); err != nil {
			return fmt.Errorf("启动定时扫描失败: %w", err)
		}
	}
	if c.broadcaster != nil {
		go func() {
			if err := c.broadcaster.Run(ctx); err != nil {
				c.Logger.Error("评分缓存失效订阅退出", zap.Error(err))
			}
		}()
	}
	if c.Collector != nil {
		go c.Collector.Run(ctx)
	}
	return nil
}

// Shutdown 停止后台组件，并等待执行日志写完
func (c *AppContainer) Shutdown() {
	if c.Scheduler != nil {
		c.Scheduler.Shutdown()
	}
	if c.Worker != nil {
		c.Worker.Shutdown()
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			c.Logger.Warn("关闭队列客户端失败", zap.Error(err))
		}
	}
	c.Engine.Wait()
	if err := c.ModelClient.Close(); err != nil {
		c.Logger.Warn("关闭模型客户端失败", zap.Error(err))
	}
}
