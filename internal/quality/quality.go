package quality

import (
	"context"

	"github.com/fiftycompanies/waide-sub001/internal/content"
)

// DefaultThreshold 默认质检通过分数线
const DefaultThreshold = 70.0

// Verdict 质检结论
type Verdict struct {
	Passed    bool    `json:"passed"`
	Score     float64 `json:"score"`
	Notes     string  `json:"notes,omitempty"`
	Evaluator string  `json:"evaluator"`
}

// Gate 质检接口
type Gate interface {
	Evaluate(ctx context.Context, c *content.GeneratedContent) (Verdict, error)
}

// Rewriter 根据质检意见重写内容，返回新正文
type Rewriter interface {
	Rewrite(ctx context.Context, c *content.GeneratedContent, verdict Verdict) (string, error)
}
