package worker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/metrics"
	"github.com/fiftycompanies/waide-sub001/internal/worker/handlers"
	"github.com/fiftycompanies/waide-sub001/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// 停机时等待进行中任务的上限，超时的任务由 asynq 重新入队
const shutdownTimeout = 30 * time.Second

// Server 消费 pipeline 队列的 asynq Worker
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewServer 创建 Worker 服务器
// 流水线队列只开一个并发，同一时间只有一个批量扫描在运行
func NewServer(opt asynq.RedisConnOpt, pipeline handlers.JobProcessor, jobs handlers.JobLoader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency:     1,
		Queues:          map[string]int{tasks.QueuePipeline: 1},
		ShutdownTimeout: shutdownTimeout,
		ErrorHandler:    errorHandler(logger),
		HealthCheckFunc: func(err error) {
			if err != nil {
				logger.Warn("Worker 无法连接 Redis", zap.Error(err))
			}
		},
		Logger: newAsynqLogger(logger),
	})

	mux := asynq.NewServeMux()
	jobHandler := handlers.NewJobHandler(pipeline, jobs, logger)
	mux.HandleFunc(tasks.TypeProcessJob, jobHandler.HandleProcessJob)
	mux.HandleFunc(tasks.TypeSweepJobs, jobHandler.HandleSweepJobs)

	return &Server{server: srv, mux: mux, logger: logger}
}

// errorHandler 记录失败任务；重试耗尽或 SkipRetry 时记为最终失败
func errorHandler(logger *zap.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		final := retried >= maxRetry || errors.Is(err, asynq.SkipRetry)

		metrics.WorkerTaskFailures.WithLabelValues(task.Type(), strconv.FormatBool(final)).Inc()
		fields := []zap.Field{
			zap.String("type", task.Type()),
			zap.Int("retried", retried),
			zap.Int("max_retry", maxRetry),
			zap.Error(err),
		}
		if final {
			logger.Error("任务最终失败", fields...)
			return
		}
		logger.Warn("任务执行失败，稍后重试", fields...)
	})
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 启动", zap.String("queue", tasks.QueuePipeline))
	return s.server.Start(s.mux)
}

// Shutdown 停止拉取新任务并等待进行中的任务
func (s *Server) Shutdown() {
	s.logger.Info("Worker 停止中")
	s.server.Shutdown()
}

// asynqLogger 将 asynq 日志输出到 zap
type asynqLogger struct {
	sugar *zap.SugaredLogger
}

func newAsynqLogger(logger *zap.Logger) *asynqLogger {
	return &asynqLogger{sugar: logger.Named("asynq").Sugar()}
}

func (l *asynqLogger) Debug(args ...any) { l.sugar.Debug(args...) }
func (l *asynqLogger) Info(args ...any)  { l.sugar.Info(args...) }
func (l *asynqLogger) Warn(args ...any)  { l.sugar.Warn(args...) }
func (l *asynqLogger) Error(args ...any) { l.sugar.Error(args...) }
func (l *asynqLogger) Fatal(args ...any) { l.sugar.Fatal(args...) }
