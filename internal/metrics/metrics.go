package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waide_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "waide_api_request_duration_seconds",
			Help: "API 请求延迟分布",
			// 同步调用与作业处理可达数分钟
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"method", "path"},
	)

	// APIRequestsInFlight 正在处理的 API 请求数，同步处理作业时会明显升高
	APIRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "waide_api_requests_in_flight",
			Help: "正在处理的 API 请求数",
		},
	)
)

// 补全调用指标
var (
	// InvocationsTotal 调用总数
	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waide_invocations_total",
			Help: "补全调用总数",
		},
		[]string{"agent_role", "task", "status"}, // status: success, error, template_not_found
	)

	// InvocationDuration 调用耗时（秒）
	InvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waide_invocation_duration_seconds",
			Help:    "补全调用耗时分布",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"agent_role", "model"},
	)

	// InvocationTokens 调用 Token 数量
	InvocationTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waide_invocation_tokens_total",
			Help: "补全调用 Token 总数",
		},
		[]string{"model", "type"}, // type: input, output
	)

	// InvocationCost 调用成本（美元）
	InvocationCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waide_invocation_cost_usd_total",
			Help: "补全调用累计成本",
		},
		[]string{"model", "tenant_id"},
	)

	// ExecutionLogWriteFailures 执行日志写入失败次数
	ExecutionLogWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waide_execution_log_write_failures_total",
			Help: "执行日志写入失败次数",
		},
	)

	// ChainFailedSteps 链路中失败的步骤数
	ChainFailedSteps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "waide_chain_failed_steps_total",
			Help: "链式执行失败步骤总数",
		},
	)
)

// 作业流水线指标
var (
	// JobsFinishedTotal 作业终态计数
	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waide_jobs_finished_total",
			Help: "作业进入终态的次数",
		},
		[]string{"job_type", "status", "quality"}, // quality: pass, fail, error, none
	)

	// JobDuration 作业处理耗时（秒）
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waide_job_duration_seconds",
			Help:    "作业处理耗时分布",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"job_type"},
	)

	// JobRewrites 每个作业的重写次数
	JobRewrites = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "waide_job_rewrites",
			Help:    "作业质检后重写次数分布",
			Buckets: []float64{0, 1, 2, 3},
		},
		[]string{"job_type"},
	)

	// WorkerTaskFailures 队列任务执行失败次数，final 表示不再重试
	WorkerTaskFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waide_worker_task_failures_total",
			Help: "后台任务执行失败次数",
		},
		[]string{"task_type", "final"},
	)

	// JobsByStatus 各状态作业数量（定期采集）
	JobsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waide_jobs",
			Help: "各状态作业数量",
		},
		[]string{"status"},
	)
)

// 缓存指标
var (
	// CacheHitsTotal 缓存命中数
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waide_cache_hits_total",
			Help: "缓存命中总数",
		},
		[]string{"cache_type"},
	)

	// CacheMissesTotal 缓存未命中数
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waide_cache_misses_total",
			Help: "缓存未命中总数",
		},
		[]string{"cache_type"},
	)

	// CacheInvalidationsTotal 缓存失效次数
	CacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waide_cache_invalidations_total",
			Help: "缓存失效次数",
		},
		[]string{"cache_type", "scope"}, // scope: all, group, remote
	)
)

// 数据库指标
var (
	// DBConnections 数据库连接数
	DBConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waide_db_connections",
			Help: "数据库连接数",
		},
		[]string{"state"}, // state: open, in_use, idle
	)

	// DBQueriesTotal SQL 异常统计
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waide_db_queries_flagged_total",
			Help: "出错或超过慢查询阈值的 SQL 数",
		},
		[]string{"kind"}, // kind: error, slow
	)
)

// 系统指标
var (
	// BuildInfo 构建信息
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "waide_build_info",
			Help: "构建信息",
		},
		[]string{"version", "go_version"},
	)
)

// RecordBuildInfo 记录构建信息
func RecordBuildInfo(version, goVersion string) {
	BuildInfo.WithLabelValues(version, goVersion).Set(1)
}
