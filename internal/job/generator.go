package job

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fiftycompanies/waide-sub001/internal/chain"
	"github.com/fiftycompanies/waide-sub001/internal/invocation"
	"github.com/fiftycompanies/waide-sub001/internal/quality"
)

// ErrUnknownJobType 作业类型未注册且没有指定角色
var ErrUnknownJobType = errors.New("unknown job type")

// Generation 生成结果
type Generation struct {
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data"`
	Cost    float64        `json:"cost"`
	ChainID string         `json:"chainId,omitempty"`
}

// Generator 内容生成接口
type Generator interface {
	Generate(ctx context.Context, j *Job) (*Generation, error)
}

// ChainRunner 链式执行接口
type ChainRunner interface {
	Run(ctx context.Context, tenantID string, steps []chain.Step) (*chain.Result, error)
}

// Route 作业类型对应的生成方式：单次调用或链路（Chain 非空时）
type Route struct {
	AgentRole string             `json:"agentRole" yaml:"agent_role"`
	Task      string             `json:"task" yaml:"task"`
	Options   invocation.Options `json:"options" yaml:"options,omitempty"`
	Chain     []chain.Step       `json:"chain,omitempty" yaml:"chain,omitempty"`
}

// InvocationGenerator 按作业类型路由到调用引擎或链式编排器
type InvocationGenerator struct {
	runner invocation.Runner
	chains ChainRunner

	mu     sync.RWMutex
	routes map[string]Route
}

// NewInvocationGenerator 创建生成器
func NewInvocationGenerator(runner invocation.Runner, chains ChainRunner) *InvocationGenerator {
	return &InvocationGenerator{
		runner: runner,
		chains: chains,
		routes: make(map[string]Route),
	}
}

// Register 注册作业类型路由
func (g *InvocationGenerator) Register(jobType string, route Route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes[jobType] = route
}

// RouteFor 查询作业类型路由；未注册时使用作业指定的角色，任务名取作业类型
func (g *InvocationGenerator) RouteFor(j *Job) (Route, error) {
	g.mu.RLock()
	route, ok := g.routes[j.JobType]
	g.mu.RUnlock()
	if ok {
		return route, nil
	}
	if j.AssignedRole != "" {
		return Route{AgentRole: j.AssignedRole, Task: j.JobType}, nil
	}
	return Route{}, fmt.Errorf("%w: %s", ErrUnknownJobType, j.JobType)
}

// Generate 生成内容，失败时返回 error
func (g *InvocationGenerator) Generate(ctx context.Context, j *Job) (*Generation, error) {
	route, err := g.RouteFor(j)
	if err != nil {
		return nil, err
	}
	if len(route.Chain) > 0 {
		return g.generateChain(ctx, j, route.Chain)
	}

	role := route.AgentRole
	if j.AssignedRole != "" {
		role = j.AssignedRole
	}
	res, err := g.runner.Run(ctx, invocation.Request{
		AgentRole: role,
		Task:      route.Task,
		Context:   j.InputPayload,
		TenantID:  j.TenantID,
		Options:   route.Options,
	})
	if err != nil {
		return nil, err
	}
	return fromResult(j, res, res.Cost)
}

// generateChain 链路中前序步骤可以失败，但最后一步必须产出内容
func (g *InvocationGenerator) generateChain(ctx context.Context, j *Job, steps []chain.Step) (*Generation, error) {
	if g.chains == nil {
		return nil, fmt.Errorf("作业类型 %s 需要链式编排器", j.JobType)
	}

	prepared := make([]chain.Step, len(steps))
	for i, step := range steps {
		merged := make(map[string]any, len(j.InputPayload)+len(step.Context))
		for k, v := range j.InputPayload {
			merged[k] = v
		}
		for k, v := range step.Context {
			merged[k] = v
		}
		step.Context = merged
		prepared[i] = step
	}

	result, err := g.chains.Run(ctx, j.TenantID, prepared)
	if err != nil {
		return nil, err
	}

	gen, err := fromResult(j, result.Last(), result.TotalCost)
	if err != nil {
		return nil, err
	}
	gen.ChainID = result.ChainID
	return gen, nil
}

func fromResult(j *Job, res *invocation.Result, cost float64) (*Generation, error) {
	if res == nil {
		return nil, errors.New("生成结果为空")
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "生成失败"
		}
		return nil, errors.New(msg)
	}

	body := quality.ExtractBody(res)
	if body == "" {
		return nil, errors.New("生成结果没有正文")
	}

	title, _ := res.Data["title"].(string)
	if title == "" {
		title, _ = j.InputPayload["title"].(string)
	}
	if title == "" {
		title, _ = j.InputPayload["topic"].(string)
	}

	return &Generation{
		Title: title,
		Body:  body,
		Data:  res.Data,
		Cost:  cost,
	}, nil
}
