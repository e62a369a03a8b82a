package worker

import (
	"fmt"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/config"
	"github.com/fiftycompanies/waide-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Scheduler 定时批量扫描
type Scheduler struct {
	scheduler *asynq.Scheduler
	entries   []string
	logger    *zap.Logger
}

// NewScheduler 按配置为每个作业类型注册定时扫描任务
func NewScheduler(opt asynq.RedisConnOpt, cfg config.PipelineConfig, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{
			Location: time.UTC,
			Logger:   newAsynqLogger(logger),
		}),
		logger: logger,
	}

	cronspec := cfg.SweepInterval
	if cronspec == "" {
		cronspec = "@every 5m"
	}
	for _, jobType := range cfg.SweepJobTypes {
		task, err := tasks.NewSweepJobsTask(jobType, "", cfg.JobTimeout*time.Duration(max(cfg.BatchSize, 1)))
		if err != nil {
			return nil, err
		}
		id, err := s.scheduler.Register(cronspec, task)
		if err != nil {
			return nil, fmt.Errorf("注册定时扫描失败 (%s): %w", jobType, err)
		}
		s.entries = append(s.entries, id)
		logger.Info("注册定时扫描",
			zap.String("job_type", jobType),
			zap.String("cronspec", cronspec),
			zap.String("entry_id", id),
		)
	}
	return s, nil
}

// Entries 已注册的条目数
func (s *Scheduler) Entries() int {
	return len(s.entries)
}

// Start 非阻塞启动
func (s *Scheduler) Start() error {
	if len(s.entries) == 0 {
		s.logger.Info("未配置定时扫描的作业类型，调度器不启动")
		return nil
	}
	return s.scheduler.Start()
}

// Shutdown 停止调度器
func (s *Scheduler) Shutdown() {
	if len(s.entries) == 0 {
		return
	}
	s.scheduler.Shutdown()
}
