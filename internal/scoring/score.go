package scoring

import (
	"math"
	"strings"
)

// ScoreItem 对单个评分项打分
// 按声明顺序评估规则，首个成立者生效；均不成立时取最后一条规则作为默认结果
func ScoreItem(c Criterion, value any, present bool) ItemResult {
	result := ItemResult{
		Category:    c.Category,
		Item:        c.Item,
		Label:       c.Label,
		MaxScore:    c.MaxScore,
		Value:       value,
		MatchedRule: -1,
	}
	if len(c.Rules) == 0 {
		return result
	}

	matched := -1
	for i, rule := range c.Rules {
		if ParseCondition(rule.Condition).Matches(value, present) {
			matched = i
			break
		}
	}
	if matched < 0 {
		matched = len(c.Rules) - 1
		result.Defaulted = true
	}

	rule := c.Rules[matched]
	result.MatchedRule = matched
	result.MatchedLabel = rule.Label
	result.ScorePct = rule.ScorePct
	result.Awarded = awardedScore(c.MaxScore, rule.ScorePct)
	return result
}

// awardedScore round(max × pct / 100)，限制在 [0, max]
func awardedScore(maxScore int, pct float64) int {
	awarded := int(math.Round(float64(maxScore) * pct / 100))
	if awarded < 0 {
		return 0
	}
	if awarded > maxScore {
		return maxScore
	}
	return awarded
}

// Normalize round(total / measurable × 100)，限制在 [0, 100]；measurable 为 0 时返回 0
func Normalize(total, measurable int) int {
	if measurable <= 0 {
		return 0
	}
	n := int(math.Round(float64(total) / float64(measurable) * 100))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// Aggregate 对一组评分项进行综合评分
func Aggregate(group string, criteria []Criterion, inputs map[string]any) *Summary {
	summary := &Summary{
		Group:     group,
		Breakdown: make([]ItemResult, 0, len(criteria)),
		Skipped:   []string{},
	}

	for _, c := range criteria {
		if !applicable(c, inputs) {
			summary.Skipped = append(summary.Skipped, c.Category+"/"+c.Item)
			continue
		}
		value, present := lookupInput(inputs, c.MetricKey())
		item := ScoreItem(c, value, present)
		summary.Breakdown = append(summary.Breakdown, item)
		summary.Total += item.Awarded
		summary.MeasurableMax += item.MaxScore
	}

	summary.Normalized = Normalize(summary.Total, summary.MeasurableMax)
	return summary
}

// applicable 条件分支：RequiresKey 缺失或 SkipIfKey 存在时跳过
func applicable(c Criterion, inputs map[string]any) bool {
	if c.RequiresKey != "" {
		if v, ok := lookupInput(inputs, c.RequiresKey); !exists(v, ok) {
			return false
		}
	}
	if c.SkipIfKey != "" {
		if v, ok := lookupInput(inputs, c.SkipIfKey); exists(v, ok) {
			return false
		}
	}
	return true
}

// lookupInput 从输入中取值（支持嵌套字段）
func lookupInput(inputs map[string]any, key string) (any, bool) {
	if v, ok := inputs[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}

	current := any(inputs)
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}
