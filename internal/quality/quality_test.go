package quality

import (
	"context"
	"errors"
	"testing"

	"github.com/fiftycompanies/waide-sub001/internal/content"
	"github.com/fiftycompanies/waide-sub001/internal/invocation"
	"github.com/fiftycompanies/waide-sub001/internal/prompt"
	"github.com/fiftycompanies/waide-sub001/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fixedRunner struct {
	result *invocation.Result
	err    error
	last   invocation.Request
}

func (f *fixedRunner) Run(_ context.Context, req invocation.Request) (*invocation.Result, error) {
	f.last = req
	return f.result, f.err
}

func parsed(text string) *invocation.Result {
	p := prompt.ParseOutput(text)
	return &invocation.Result{Success: true, Data: p.Data, OutputKind: p.Kind, RawText: text}
}

func TestLLMGateEvaluate(t *testing.T) {
	c := &content.GeneratedContent{TenantID: "t1", Title: "标题", Body: "正文"}

	t.Run("结构化分数", func(t *testing.T) {
		runner := &fixedRunner{result: parsed(`{"score": 82, "notes": "结构清晰"}`)}
		v, err := NewLLMGate(runner, 70).Evaluate(context.Background(), c)
		require.NoError(t, err)
		assert.True(t, v.Passed)
		assert.Equal(t, 82.0, v.Score)
		assert.Equal(t, "结构清晰", v.Notes)
		assert.Equal(t, GateRole, runner.last.AgentRole)
		assert.Equal(t, GateTask, runner.last.Task)
		assert.Equal(t, "正文", runner.last.Context["content"])
	})

	t.Run("quality_score 字段与列表意见", func(t *testing.T) {
		runner := &fixedRunner{result: parsed(`{"quality_score": "55", "feedback": ["补充案例", "缩短标题"]}`)}
		v, err := NewLLMGate(runner, 0).Evaluate(context.Background(), c)
		require.NoError(t, err)
		assert.False(t, v.Passed)
		assert.Equal(t, 55.0, v.Score)
		assert.Equal(t, "补充案例\n缩短标题", v.Notes)
	})

	t.Run("文本中的分数", func(t *testing.T) {
		runner := &fixedRunner{result: parsed("整体不错。\n评分：74.5\n建议加强结尾")}
		v, err := NewLLMGate(runner, 70).Evaluate(context.Background(), c)
		require.NoError(t, err)
		assert.True(t, v.Passed)
		assert.Equal(t, 74.5, v.Score)
	})

	t.Run("无分数返回错误", func(t *testing.T) {
		runner := &fixedRunner{result: parsed("看起来还行")}
		_, err := NewLLMGate(runner, 70).Evaluate(context.Background(), c)
		assert.ErrorIs(t, err, ErrNoScore)
	})

	t.Run("调用失败返回错误", func(t *testing.T) {
		runner := &fixedRunner{result: invocation.FailedResult("timeout")}
		_, err := NewLLMGate(runner, 70).Evaluate(context.Background(), c)
		assert.Error(t, err)

		runner = &fixedRunner{err: prompt.ErrTemplateNotFound}
		_, err = NewLLMGate(runner, 70).Evaluate(context.Background(), c)
		assert.ErrorIs(t, err, prompt.ErrTemplateNotFound)
	})
}

func TestLLMRewriter(t *testing.T) {
	c := &content.GeneratedContent{Body: "旧正文"}
	verdict := Verdict{Score: 50, Notes: "太短"}

	runner := &fixedRunner{result: parsed(`{"content": "新正文"}`)}
	body, err := NewLLMRewriter(runner).Rewrite(context.Background(), c, verdict)
	require.NoError(t, err)
	assert.Equal(t, "新正文", body)
	assert.Equal(t, RewriteRole, runner.last.AgentRole)
	assert.Equal(t, "太短", runner.last.Context["feedback"])

	runner = &fixedRunner{result: parsed("直接输出的新正文")}
	body, err = NewLLMRewriter(runner).Rewrite(context.Background(), c, verdict)
	require.NoError(t, err)
	assert.Equal(t, "直接输出的新正文", body)

	runner = &fixedRunner{result: parsed(`{"content": ""}`)}
	_, err = NewLLMRewriter(runner).Rewrite(context.Background(), c, verdict)
	assert.Error(t, err)

	runner = &fixedRunner{err: errors.New("boom")}
	_, err = NewLLMRewriter(runner).Rewrite(context.Background(), c, verdict)
	assert.Error(t, err)
}

type fixedScorer struct {
	summary *scoring.Summary
	inputs  map[string]any
}

func (f *fixedScorer) ScoreSubject(_ context.Context, _ string, inputs map[string]any) (*scoring.Summary, error) {
	f.inputs = inputs
	return f.summary, nil
}

func TestScoringGate(t *testing.T) {
	c := &content.GeneratedContent{
		Title:    "露营装备指南",
		Body:     "# 帐篷\n选择轻量帐篷。\n\n# 睡袋\n注意温标。",
		Metadata: datatypes.JSON(`{"keywords": ["帐篷", "睡袋", "炉具"]}`),
	}
	scorer := &fixedScorer{summary: &scoring.Summary{
		Total: 60, MeasurableMax: 100, Normalized: 60,
		Breakdown: []scoring.ItemResult{
			{Item: "word_count", Label: "字数", Awarded: 10, MaxScore: 40, MatchedLabel: "不足"},
			{Item: "keyword_hits", Awarded: 50, MaxScore: 60},
		},
	}}

	v, err := NewScoringGate(scorer, "blog_post", 70).Evaluate(context.Background(), c)
	require.NoError(t, err)
	assert.False(t, v.Passed)
	assert.Equal(t, 60.0, v.Score)
	assert.Contains(t, v.Notes, "字数：10/40")
	assert.Equal(t, "scoring:blog_post", v.Evaluator)

	assert.Equal(t, 2, scorer.inputs["heading_count"])
	assert.Equal(t, 2, scorer.inputs["paragraph_count"])
	assert.Equal(t, 2, scorer.inputs["keyword_hits"])
	assert.Equal(t, 6, scorer.inputs["title_length"])

	empty := &fixedScorer{summary: &scoring.Summary{}}
	_, err = NewScoringGate(empty, "none", 70).Evaluate(context.Background(), c)
	assert.Error(t, err)
}
