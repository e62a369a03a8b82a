package infra

import (
	"context"
	"errors"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/logger"
	"github.com/fiftycompanies/waide-sub001/internal/metrics"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// GormZapLogger GORM 日志适配器（输出到 Zap）
// 附加请求上下文中的 request_id 与 trace_id，错误与慢查询同时计入指标
type GormZapLogger struct {
	ZapLogger                 *zap.Logger
	LogLevel                  gormLogger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// NewGormZapLogger 创建适配器，debug 模式输出全部 SQL
func NewGormZapLogger(base *zap.Logger, serverMode string) *GormZapLogger {
	level := gormLogger.Warn
	if serverMode == "debug" {
		level = gormLogger.Info
	}
	if base == nil {
		base = zap.NewNop()
	}
	return &GormZapLogger{
		ZapLogger:                 base,
		LogLevel:                  level,
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

// LogMode 设置日志级别
func (l *GormZapLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info 日志
func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		l.withContext(ctx).Sugar().Infof(msg, data...)
	}
}

// Warn 日志
func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		l.withContext(ctx).Sugar().Warnf(msg, data...)
	}
}

// Error 日志
func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		l.withContext(ctx).Sugar().Errorf(msg, data...)
	}
}

// Trace SQL 执行日志
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && (!errors.Is(err, gormLogger.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError)
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold

	if !failed && !slow && l.LogLevel < gormLogger.Info {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}
	log := l.withContext(ctx)

	switch {
	case failed:
		metrics.DBQueriesTotal.WithLabelValues("error").Inc()
		log.Error("SQL 执行错误", append(fields, zap.Error(err))...)
	case slow:
		metrics.DBQueriesTotal.WithLabelValues("slow").Inc()
		log.Warn("SQL 慢查询", fields...)
	default:
		log.Debug("SQL 执行", fields...)
	}
}

func (l *GormZapLogger) withContext(ctx context.Context) *zap.Logger {
	if fields := logger.ContextFields(ctx); len(fields) > 0 {
		return l.ZapLogger.With(fields...)
	}
	return l.ZapLogger
}
