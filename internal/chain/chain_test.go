package chain

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/invocation"
	"github.com/fiftycompanies/waide-sub001/internal/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// scriptedRunner 按任务名返回预设结果，并记录每次收到的请求
type scriptedRunner struct {
	mu       sync.Mutex
	script   map[string]func(req invocation.Request) (*invocation.Result, error)
	requests []invocation.Request
}

func (s *scriptedRunner) Run(_ context.Context, req invocation.Request) (*invocation.Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	fn := s.script[req.Task]
	s.mu.Unlock()
	if fn == nil {
		return &invocation.Result{Success: true, Data: map[string]any{"task": req.Task}}, nil
	}
	return fn(req)
}

func succeed(data map[string]any, cost float64) func(invocation.Request) (*invocation.Result, error) {
	return func(invocation.Request) (*invocation.Result, error) {
		return &invocation.Result{Success: true, Data: data, Cost: cost, Duration: time.Second}, nil
	}
}

func TestOrchestratorInjectsPriorResults(t *testing.T) {
	runner := &scriptedRunner{script: map[string]func(invocation.Request) (*invocation.Result, error){
		"research": succeed(map[string]any{"facts": []any{"a"}}, 0.1),
		"outline":  succeed(map[string]any{"sections": 3}, 0.2),
	}}
	o := NewOrchestrator(runner, zaptest.NewLogger(t))

	res, err := o.Run(context.Background(), "tenant-1", []Step{
		{AgentRole: "RESEARCHER", Task: "research", ResultKey: "research", Context: map[string]any{"topic": "露营"}},
		{AgentRole: "PLANNER", Task: "outline", ResultKey: "outline", DependsOn: map[string]string{"research_data": "research"}},
		{AgentRole: "COPYWRITER", Task: "draft", ResultKey: "draft", DependsOn: map[string]string{"outline": "outline", "research": "research"}},
	})
	require.NoError(t, err)

	assert.Len(t, res.Results, 3)
	assert.Equal(t, []string{"research", "outline", "draft"}, res.Order)
	assert.Empty(t, res.FailedSteps)
	assert.True(t, res.Succeeded())
	assert.InDelta(t, 0.3, res.TotalCost, 1e-9)
	assert.Equal(t, 2*time.Second, res.TotalDuration)
	assert.NotEmpty(t, res.ChainID)

	require.Len(t, runner.requests, 3)
	assert.Equal(t, map[string]any{"facts": []any{"a"}}, runner.requests[1].Context["research_data"])
	assert.Equal(t, map[string]any{"sections": 3}, runner.requests[2].Context["outline"])
	for i, req := range runner.requests {
		assert.Equal(t, res.ChainID, req.ChainID)
		require.NotNil(t, req.StepIndex)
		assert.Equal(t, i, *req.StepIndex)
		assert.Equal(t, "tenant-1", req.TenantID)
	}
}

func TestOrchestratorOmitsFailedDependency(t *testing.T) {
	runner := &scriptedRunner{script: map[string]func(invocation.Request) (*invocation.Result, error){
		"research": func(invocation.Request) (*invocation.Result, error) {
			return invocation.FailedResult("rate limited"), nil
		},
	}}
	o := NewOrchestrator(runner, zaptest.NewLogger(t))

	res, err := o.Run(context.Background(), "", []Step{
		{AgentRole: "RESEARCHER", Task: "research", ResultKey: "research"},
		{AgentRole: "COPYWRITER", Task: "draft", ResultKey: "draft", Context: map[string]any{"topic": "x"},
			DependsOn: map[string]string{"research": "research", "missing": "nope"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []int{0}, res.FailedSteps)
	assert.True(t, res.Results["draft"].Success)
	draftCtx := runner.requests[1].Context
	assert.NotContains(t, draftCtx, "research")
	assert.NotContains(t, draftCtx, "missing")
	assert.Equal(t, "x", draftCtx["topic"])
}

func TestOrchestratorEveryStepFailsStillYieldsAllResults(t *testing.T) {
	boom := func(invocation.Request) (*invocation.Result, error) {
		return nil, prompt.ErrTemplateNotFound
	}
	runner := &scriptedRunner{script: map[string]func(invocation.Request) (*invocation.Result, error){
		"a": boom,
		"b": func(invocation.Request) (*invocation.Result, error) { panic("unexpected") },
		"c": func(invocation.Request) (*invocation.Result, error) { return nil, errors.New("db gone") },
		"d": func(invocation.Request) (*invocation.Result, error) { return invocation.FailedResult("soft"), nil },
	}}
	o := NewOrchestrator(runner, zaptest.NewLogger(t))

	steps := []Step{
		{AgentRole: "R", Task: "a", ResultKey: "a"},
		{AgentRole: "R", Task: "b", ResultKey: "b"},
		{AgentRole: "R", Task: "c", ResultKey: "c"},
		{AgentRole: "R", Task: "d", ResultKey: "d"},
	}
	res, err := o.Run(context.Background(), "t", steps)
	require.NoError(t, err)

	assert.Len(t, res.Results, len(steps))
	assert.Equal(t, []int{0, 1, 2, 3}, res.FailedSteps)
	assert.Zero(t, res.TotalCost)
	for _, key := range []string{"a", "b", "c"} {
		r := res.Results[key]
		require.NotNil(t, r)
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.Error)
		assert.Zero(t, r.InputTokens)
	}
	assert.Contains(t, res.Results["b"].Error, "panic")
}

func TestValidateSteps(t *testing.T) {
	o := NewOrchestrator(&scriptedRunner{}, nil)

	assert.NoError(t, o.ValidateSteps(nil))
	assert.Error(t, o.ValidateSteps([]Step{{AgentRole: "R", Task: "t"}}), "缺少结果键")
	assert.Error(t, o.ValidateSteps([]Step{
		{AgentRole: "R", Task: "t", ResultKey: "k"},
		{AgentRole: "R", Task: "u", ResultKey: "k"},
	}), "结果键重复")

	_, err := o.Run(context.Background(), "", []Step{{Task: "t", ResultKey: "k"}})
	assert.Error(t, err)
}

func TestResultLast(t *testing.T) {
	o := NewOrchestrator(&scriptedRunner{}, nil)
	res, err := o.Run(context.Background(), "", []Step{
		{AgentRole: "R", Task: "first", ResultKey: "first"},
		{AgentRole: "R", Task: "second", ResultKey: "second"},
	})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Last().Data["task"])

	empty, err := o.Run(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Last())
	assert.Empty(t, empty.Results)
}
