package quality

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fiftycompanies/waide-sub001/internal/content"
	"github.com/fiftycompanies/waide-sub001/internal/invocation"
	"github.com/fiftycompanies/waide-sub001/internal/prompt"
)

// 重写调用使用的角色与任务
const (
	RewriteRole = "COPYWRITER"
	RewriteTask = "rewrite"
)

// ErrEmptyRewrite 重写结果为空
var ErrEmptyRewrite = errors.New("rewrite produced empty content")

// LLMRewriter 通过补全服务按质检意见重写
type LLMRewriter struct {
	runner invocation.Runner
}

// NewLLMRewriter 创建重写器
func NewLLMRewriter(runner invocation.Runner) *LLMRewriter {
	return &LLMRewriter{runner: runner}
}

// Rewrite 返回重写后的正文
func (r *LLMRewriter) Rewrite(ctx context.Context, c *content.GeneratedContent, verdict Verdict) (string, error) {
	res, err := r.runner.Run(ctx, invocation.Request{
		AgentRole: RewriteRole,
		Task:      RewriteTask,
		TenantID:  c.TenantID,
		Context: map[string]any{
			"content":  c.Body,
			"title":    c.Title,
			"feedback": verdict.Notes,
			"score":    verdict.Score,
		},
	})
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", fmt.Errorf("重写调用失败: %s", res.Error)
	}

	body := ExtractBody(res)
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyRewrite
	}
	return body, nil
}

// ExtractBody 从调用结果中取正文：content / body 字段，未解析出结构时使用原文
func ExtractBody(res *invocation.Result) string {
	for _, key := range []string{"content", "body"} {
		if s, ok := res.Data[key].(string); ok && s != "" {
			return s
		}
	}
	if res.OutputKind == prompt.KindParsed {
		return ""
	}
	if raw, ok := res.Data[prompt.RawKey].(string); ok {
		return raw
	}
	return res.RawText
}
