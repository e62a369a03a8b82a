package invocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fiftycompanies/waide-sub001/internal/ai"
	"github.com/fiftycompanies/waide-sub001/internal/metrics"
	"github.com/fiftycompanies/waide-sub001/internal/prompt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// inputSummaryLimit 日志中输入摘要的最大字符数
const inputSummaryLimit = 2000

// Options 调用参数，非零值覆盖模板默认值
type Options struct {
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"maxTokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`
}

// Request 单次调用请求
type Request struct {
	AgentRole string         `json:"agentRole" validate:"required"`
	Task      string         `json:"task" validate:"required"`
	Context   map[string]any `json:"context,omitempty"`
	TenantID  string         `json:"tenantId,omitempty"`
	Options   Options        `json:"options"`

	// 链式执行关联信息，写入执行日志
	ChainID   string `json:"chainId,omitempty"`
	StepIndex *int   `json:"stepIndex,omitempty"`
}

// Result 调用结果（创建后不再修改）
type Result struct {
	Success       bool              `json:"success"`
	Data          map[string]any    `json:"data,omitempty"`
	OutputKind    prompt.OutputKind `json:"outputKind,omitempty"`
	RawText       string            `json:"rawText,omitempty"`
	InputTokens   int               `json:"inputTokens"`
	OutputTokens  int               `json:"outputTokens"`
	Cost          float64           `json:"cost"`
	Duration      time.Duration     `json:"duration"`
	Model         string            `json:"model,omitempty"`
	PromptVersion int               `json:"promptVersion,omitempty"`
	LogID         string            `json:"logId,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// FailedResult 构造零用量的失败结果
func FailedResult(message string) *Result {
	return &Result{Success: false, Error: message}
}

// Runner 调用执行接口，链式编排与流水线依赖此接口
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// TemplateResolver 模板解析接口
type TemplateResolver interface {
	Resolve(ctx context.Context, role, task string) (*prompt.PromptTemplate, error)
}

// Engine 调用引擎：解析模板 → 填充 → 调用补全服务 → 计费 → 解析输出 → 异步写日志
type Engine struct {
	resolver TemplateResolver
	filler   prompt.Filler
	client   ai.ModelClient
	prices   ai.PriceTable
	logs     LogWriter
	logger   *zap.Logger
	tracer   trace.Tracer

	logTimeout time.Duration
	pending    sync.WaitGroup
}

// NewEngine 创建调用引擎，prices 为空时使用默认价格表
func NewEngine(resolver TemplateResolver, client ai.ModelClient, logs LogWriter, prices ai.PriceTable, logger *zap.Logger) *Engine {
	if prices == nil {
		prices = ai.DefaultPriceTable()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		resolver:   resolver,
		filler:     prompt.NewFiller(),
		client:     client,
		prices:     prices,
		logs:       logs,
		logger:     logger,
		tracer:     otel.Tracer("github.com/fiftycompanies/waide-sub001/internal/invocation"),
		logTimeout: 10 * time.Second,
	}
}

// Run 执行一次调用
// 补全服务错误以 Success=false 返回；仅模板解析失败返回 error
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "invocation.Run", trace.WithAttributes(
		attribute.String("agent_role", req.AgentRole),
		attribute.String("task", req.Task),
		attribute.String("tenant_id", req.TenantID),
	))
	defer span.End()

	result := &Result{LogID: uuid.New().String()}

	tmpl, err := e.resolver.Resolve(ctx, req.AgentRole, req.Task)
	if err != nil {
		result.Error = err.Error()
		result.Duration = time.Since(start)
		e.writeLog(req, nil, result, "")

		status := "error"
		if errors.Is(err, prompt.ErrTemplateNotFound) {
			status = "template_not_found"
		}
		metrics.InvocationsTotal.WithLabelValues(req.AgentRole, req.Task, status).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "template resolve failed")
		e.logger.Error("解析提示词模板失败",
			zap.String("agent_role", req.AgentRole),
			zap.String("task", req.Task),
			zap.Error(err),
		)
		return nil, fmt.Errorf("解析模板 %s/%s 失败: %w", req.AgentRole, req.Task, err)
	}

	userPrompt := e.filler.Fill(tmpl.Body, req.Context)
	messages := make([]ai.Message, 0, 2)
	if tmpl.SystemBody != "" {
		messages = append(messages, ai.Message{Role: "system", Content: e.filler.Fill(tmpl.SystemBody, req.Context)})
	}
	messages = append(messages, ai.Message{Role: "user", Content: userPrompt})

	model, temperature, maxTokens := resolveOptions(req.Options, tmpl)
	result.Model = model
	result.PromptVersion = tmpl.Version
	span.SetAttributes(attribute.String("model", model), attribute.Int("prompt_version", tmpl.Version))

	resp, err := e.client.ChatCompletion(ctx, &ai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	result.Duration = time.Since(start)
	metrics.InvocationDuration.WithLabelValues(req.AgentRole, model).Observe(result.Duration.Seconds())

	if err != nil {
		result.Success = false
		result.Error = err.Error()
		e.writeLog(req, tmpl, result, LogStatusError)

		metrics.InvocationsTotal.WithLabelValues(req.AgentRole, req.Task, LogStatusError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		span.SetAttributes(attribute.String("error_kind", ai.ErrorKind(err)))
		e.logger.Warn("补全调用失败",
			zap.String("agent_role", req.AgentRole),
			zap.String("task", req.Task),
			zap.String("model", model),
			zap.String("error_kind", ai.ErrorKind(err)),
			zap.Error(err),
		)
		return result, nil
	}

	inputTokens, outputTokens := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
	if inputTokens == 0 && outputTokens == 0 {
		// 服务端未返回用量时本地估算
		inputTokens = ai.EstimateMessagesTokens(messages, model)
		outputTokens = ai.EstimateTokens(resp.Content, model)
	}

	if resp.Truncated() {
		e.logger.Warn("补全输出被截断",
			zap.String("agent_role", req.AgentRole),
			zap.String("task", req.Task),
			zap.String("model", model),
			zap.Int("max_tokens", maxTokens),
		)
	}

	parsed := prompt.ParseOutput(resp.Content)

	result.Success = true
	result.Data = parsed.Data
	result.OutputKind = parsed.Kind
	result.RawText = resp.Content
	result.InputTokens = inputTokens
	result.OutputTokens = outputTokens
	result.Cost = e.prices.Cost(model, inputTokens, outputTokens)
	e.writeLog(req, tmpl, result, LogStatusSuccess)

	metrics.InvocationsTotal.WithLabelValues(req.AgentRole, req.Task, LogStatusSuccess).Inc()
	metrics.InvocationTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	metrics.InvocationTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	metrics.InvocationCost.WithLabelValues(model, req.TenantID).Add(result.Cost)
	span.SetAttributes(
		attribute.Int("input_tokens", inputTokens),
		attribute.Int("output_tokens", outputTokens),
		attribute.Float64("cost", result.Cost),
		attribute.String("output_kind", string(parsed.Kind)),
		attribute.String("finish_reason", resp.FinishReason),
	)
	return result, nil
}

// Wait 等待所有异步日志写入完成（优雅退出与测试使用）
func (e *Engine) Wait() {
	e.pending.Wait()
}

// resolveOptions 参数优先级：调用方 > 模板 > 全局默认值
func resolveOptions(opts Options, tmpl *prompt.PromptTemplate) (string, float64, int) {
	model := opts.Model
	if model == "" {
		model = tmpl.Model
	}
	if model == "" {
		model = ai.DefaultModel
	}

	temperature := ai.DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	} else if tmpl.Temperature != nil {
		temperature = *tmpl.Temperature
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = tmpl.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = ai.DefaultMaxTokens
	}
	return model, temperature, maxTokens
}

// writeLog 异步写入执行日志，写入失败只记录告警
func (e *Engine) writeLog(req Request, tmpl *prompt.PromptTemplate, result *Result, status string) {
	if e.logs == nil {
		return
	}

	entry := &ExecutionLog{
		ID:           result.LogID,
		AgentRole:    req.AgentRole,
		Task:         req.Task,
		TenantID:     req.TenantID,
		InputSummary: summarize(req.Context),
		Model:        result.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		Cost:         result.Cost,
		DurationMs:   result.Duration.Milliseconds(),
		Status:       status,
		ErrorMessage: result.Error,
		StepIndex:    req.StepIndex,
	}
	if status == "" {
		entry.Status = LogStatusError
	}
	if tmpl != nil {
		entry.PromptVersion = tmpl.Version
	}
	if req.ChainID != "" {
		chainID := req.ChainID
		entry.ChainID = &chainID
	}
	if result.Data != nil {
		if data, err := json.Marshal(result.Data); err == nil {
			entry.Output = data
		}
	}

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("写入执行日志 panic", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), e.logTimeout)
		defer cancel()
		if err := e.logs.Write(ctx, entry); err != nil {
			metrics.ExecutionLogWriteFailures.Inc()
			e.logger.Warn("写入执行日志失败",
				zap.String("log_id", entry.ID),
				zap.String("agent_role", entry.AgentRole),
				zap.Error(err),
			)
		}
	}()
}

// summarize 将输入上下文序列化并截断
func summarize(vars map[string]any) string {
	if len(vars) == 0 {
		return ""
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return fmt.Sprintf("%v", vars)
	}
	s := string(data)
	if utf8.RuneCountInString(s) <= inputSummaryLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:inputSummaryLimit]) + "..."
}
