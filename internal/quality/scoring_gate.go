package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fiftycompanies/waide-sub001/internal/content"
	"github.com/fiftycompanies/waide-sub001/internal/scoring"
)

// SubjectScorer 规则评分接口
type SubjectScorer interface {
	ScoreSubject(ctx context.Context, group string, inputs map[string]any) (*scoring.Summary, error)
}

// ScoringGate 基于规则评分引擎的质检，按文本指标打分
type ScoringGate struct {
	scorer    SubjectScorer
	group     string
	threshold float64
}

// NewScoringGate 创建规则质检
func NewScoringGate(scorer SubjectScorer, group string, threshold float64) *ScoringGate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &ScoringGate{scorer: scorer, group: group, threshold: threshold}
}

// Evaluate 评估内容质量
func (g *ScoringGate) Evaluate(ctx context.Context, c *content.GeneratedContent) (Verdict, error) {
	summary, err := g.scorer.ScoreSubject(ctx, g.group, TextMetrics(c))
	if err != nil {
		return Verdict{}, err
	}
	if summary.MeasurableMax == 0 {
		return Verdict{}, fmt.Errorf("评分组 %s 没有可评估的评分项", g.group)
	}

	score := float64(summary.Normalized)
	return Verdict{
		Passed:    score >= g.threshold,
		Score:     score,
		Notes:     weakItems(summary),
		Evaluator: "scoring:" + g.group,
	}, nil
}

// TextMetrics 从内容中提取评分指标
func TextMetrics(c *content.GeneratedContent) map[string]any {
	lines := strings.Split(c.Body, "\n")
	headings, paragraphs := 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			headings++
			continue
		}
		paragraphs++
	}

	metrics := map[string]any{
		"word_count":      content.CountWords(c.Body),
		"char_count":      utf8.RuneCountInString(c.Body),
		"heading_count":   headings,
		"paragraph_count": paragraphs,
		"title_length":    utf8.RuneCountInString(c.Title),
	}
	if c.Title != "" {
		metrics["title"] = c.Title
	}

	keywords := metadataKeywords(c)
	if len(keywords) > 0 {
		hits := 0
		lower := strings.ToLower(c.Body)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				hits++
			}
		}
		metrics["keyword_hits"] = hits
		metrics["keyword_coverage"] = float64(hits) / float64(len(keywords)) * 100
	}
	return metrics
}

// metadataKeywords 读取内容元数据中的 keywords 列表
func metadataKeywords(c *content.GeneratedContent) []string {
	if len(c.Metadata) == 0 {
		return nil
	}
	var meta struct {
		Keywords []string `json:"keywords"`
	}
	if err := json.Unmarshal(c.Metadata, &meta); err != nil {
		return nil
	}
	return meta.Keywords
}

// weakItems 列出未拿满分的评分项，作为重写意见
func weakItems(summary *scoring.Summary) string {
	var notes []string
	for _, item := range summary.Breakdown {
		if item.Awarded >= item.MaxScore {
			continue
		}
		label := item.Label
		if label == "" {
			label = item.Item
		}
		notes = append(notes, fmt.Sprintf("%s：%d/%d（%s）", label, item.Awarded, item.MaxScore, item.MatchedLabel))
	}
	return strings.Join(notes, "\n")
}
