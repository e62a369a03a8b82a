package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/invocation"
	"github.com/fiftycompanies/waide-sub001/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Step 链路中的一个调用步骤
type Step struct {
	AgentRole string             `json:"agentRole" yaml:"agent_role" validate:"required"`
	Task      string             `json:"task" yaml:"task" validate:"required"`
	ResultKey string             `json:"resultKey" yaml:"result_key" validate:"required"`
	Context   map[string]any     `json:"context,omitempty" yaml:"context,omitempty"`
	Options   invocation.Options `json:"options" yaml:"options,omitempty"`

	// DependsOn 上下文键 → 前序步骤结果键；前序成功时将其数据注入上下文
	DependsOn map[string]string `json:"dependsOn,omitempty" yaml:"depends_on,omitempty"`
}

// Result 链路执行结果
type Result struct {
	ChainID       string                        `json:"chainId"`
	Results       map[string]*invocation.Result `json:"results"`
	Order         []string                      `json:"order"`
	TotalCost     float64                       `json:"totalCost"`
	TotalDuration time.Duration                 `json:"totalDuration"`
	FailedSteps   []int                         `json:"failedSteps"`
}

// Succeeded 所有步骤是否均成功
func (r *Result) Succeeded() bool {
	return len(r.FailedSteps) == 0
}

// Last 返回最后一个步骤的结果
func (r *Result) Last() *invocation.Result {
	if len(r.Order) == 0 {
		return nil
	}
	return r.Results[r.Order[len(r.Order)-1]]
}

// Orchestrator 链式编排器：严格顺序执行，单步失败不中断后续步骤
type Orchestrator struct {
	runner   invocation.Runner
	validate *validator.Validate
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewOrchestrator 创建编排器
func NewOrchestrator(runner invocation.Runner, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		runner:   runner,
		validate: validator.New(),
		logger:   logger,
		tracer:   otel.Tracer("github.com/fiftycompanies/waide-sub001/internal/chain"),
	}
}

// ValidateSteps 校验步骤定义，结果键必须唯一
func (o *Orchestrator) ValidateSteps(steps []Step) error {
	seen := make(map[string]int, len(steps))
	for i := range steps {
		if err := o.validate.Struct(&steps[i]); err != nil {
			return fmt.Errorf("步骤 %d 定义无效: %w", i, err)
		}
		if prev, ok := seen[steps[i].ResultKey]; ok {
			return fmt.Errorf("步骤 %d 的结果键 %q 与步骤 %d 重复", i, steps[i].ResultKey, prev)
		}
		seen[steps[i].ResultKey] = i
	}
	return nil
}

// Run 执行链路；只有步骤定义无效时返回 error
func (o *Orchestrator) Run(ctx context.Context, tenantID string, steps []Step) (*Result, error) {
	if err := o.ValidateSteps(steps); err != nil {
		return nil, err
	}

	chainID := uuid.New().String()
	ctx, span := o.tracer.Start(ctx, "chain.Run", trace.WithAttributes(
		attribute.String("chain_id", chainID),
		attribute.Int("steps", len(steps)),
	))
	defer span.End()

	result := &Result{
		ChainID:     chainID,
		Results:     make(map[string]*invocation.Result, len(steps)),
		Order:       make([]string, 0, len(steps)),
		FailedSteps: []int{},
	}

	for i, step := range steps {
		stepCtx := make(map[string]any, len(step.Context)+len(step.DependsOn))
		for k, v := range step.Context {
			stepCtx[k] = v
		}
		for contextKey, priorKey := range step.DependsOn {
			// 前序步骤失败或不存在时直接省略该键
			if prior, ok := result.Results[priorKey]; ok && prior.Success {
				stepCtx[contextKey] = prior.Data
			}
		}

		index := i
		res, err := o.runStep(ctx, invocation.Request{
			AgentRole: step.AgentRole,
			Task:      step.Task,
			Context:   stepCtx,
			TenantID:  tenantID,
			Options:   step.Options,
			ChainID:   chainID,
			StepIndex: &index,
		})
		if err != nil {
			o.logger.Warn("链路步骤执行异常",
				zap.String("chain_id", chainID),
				zap.Int("step", i),
				zap.String("result_key", step.ResultKey),
				zap.Error(err),
			)
			res = invocation.FailedResult(err.Error())
		}

		result.Results[step.ResultKey] = res
		result.Order = append(result.Order, step.ResultKey)
		result.TotalCost += res.Cost
		result.TotalDuration += res.Duration
		if !res.Success {
			result.FailedSteps = append(result.FailedSteps, i)
			metrics.ChainFailedSteps.Inc()
		}
	}

	span.SetAttributes(
		attribute.Int("failed_steps", len(result.FailedSteps)),
		attribute.Float64("total_cost", result.TotalCost),
	)
	o.logger.Info("链路执行完成",
		zap.String("chain_id", chainID),
		zap.String("tenant_id", tenantID),
		zap.Int("steps", len(steps)),
		zap.Ints("failed_steps", result.FailedSteps),
		zap.Float64("total_cost", result.TotalCost),
	)
	return result, nil
}

// runStep 执行单步，panic 转为 error
func (o *Orchestrator) runStep(ctx context.Context, req invocation.Request) (res *invocation.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("步骤 panic: %v", r)
		}
	}()

	res, err = o.runner.Run(ctx, req)
	if err == nil && res == nil {
		err = fmt.Errorf("调用未返回结果")
	}
	return res, err
}
