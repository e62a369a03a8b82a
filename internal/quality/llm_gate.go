package quality

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fiftycompanies/waide-sub001/internal/content"
	"github.com/fiftycompanies/waide-sub001/internal/invocation"
	"github.com/fiftycompanies/waide-sub001/internal/prompt"
)

// 质检调用使用的角色与任务
const (
	GateRole = "QUALITY_GATE"
	GateTask = "evaluate"
)

// ErrNoScore 质检输出中找不到分数
var ErrNoScore = errors.New("quality gate output has no score")

// scorePattern 匹配 "分数：85"、"score: 85"、"评分:85.5" 等文本
var scorePattern = regexp.MustCompile(`(?i)(?:分数|评分|得分|score)\s*[:：]\s*(-?\d+(?:\.\d+)?)`)

// LLMGate 通过补全服务打分的质检
type LLMGate struct {
	runner    invocation.Runner
	threshold float64
}

// NewLLMGate 创建质检，threshold <= 0 时使用 DefaultThreshold
func NewLLMGate(runner invocation.Runner, threshold float64) *LLMGate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &LLMGate{runner: runner, threshold: threshold}
}

// Evaluate 评估内容质量
func (g *LLMGate) Evaluate(ctx context.Context, c *content.GeneratedContent) (Verdict, error) {
	res, err := g.runner.Run(ctx, invocation.Request{
		AgentRole: GateRole,
		Task:      GateTask,
		TenantID:  c.TenantID,
		Context: map[string]any{
			"content":   c.Body,
			"title":     c.Title,
			"threshold": g.threshold,
		},
	})
	if err != nil {
		return Verdict{}, err
	}
	if !res.Success {
		return Verdict{}, fmt.Errorf("质检调用失败: %s", res.Error)
	}

	score, err := parseScore(res)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{
		Passed:    score >= g.threshold,
		Score:     score,
		Notes:     parseNotes(res.Data),
		Evaluator: "llm",
	}, nil
}

// parseScore 优先读取结构化字段 score / quality_score，其次匹配文本中的分数
func parseScore(res *invocation.Result) (float64, error) {
	for _, key := range []string{"score", "quality_score"} {
		switch v := res.Data[key].(type) {
		case float64:
			return v, nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, nil
			}
		}
	}

	text := res.RawText
	if raw, ok := res.Data[prompt.RawKey].(string); ok && text == "" {
		text = raw
	}
	if m := scorePattern.FindStringSubmatch(text); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			return f, nil
		}
	}
	return 0, ErrNoScore
}

// parseNotes 读取 notes / feedback / suggestions，列表按行拼接
func parseNotes(data map[string]any) string {
	for _, key := range []string{"notes", "feedback", "suggestions"} {
		switch v := data[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			lines := make([]string, 0, len(v))
			for _, item := range v {
				lines = append(lines, fmt.Sprint(item))
			}
			if len(lines) > 0 {
				return strings.Join(lines, "\n")
			}
		}
	}
	return ""
}
