package ai

import "strings"

// ModelPricing 模型单价（美元 / Token）
type ModelPricing struct {
	InputPerToken  float64 `json:"input_per_token" yaml:"input_per_token"`
	OutputPerToken float64 `json:"output_per_token" yaml:"output_per_token"`
}

// DefaultPricingKey 未识别模型使用的价格档位
const DefaultPricingKey = "default"

// PriceTable 静态价格表，必须包含 default 档位
type PriceTable map[string]ModelPricing

// DefaultPriceTable 默认价格表（按每百万 Token 报价换算）
func DefaultPriceTable() PriceTable {
	perM := func(in, out float64) ModelPricing {
		return ModelPricing{InputPerToken: in / 1_000_000, OutputPerToken: out / 1_000_000}
	}
	return PriceTable{
		"gpt-4o":                     perM(2.50, 10.00),
		"gpt-4o-mini":                perM(0.15, 0.60),
		"gpt-4.1":                    perM(2.00, 8.00),
		"gpt-4.1-mini":               perM(0.40, 1.60),
		"claude-3-5-haiku-20241022":  perM(0.80, 4.00),
		"claude-3-5-sonnet-20241022": perM(3.00, 15.00),
		"claude-sonnet-4-20250514":   perM(3.00, 15.00),
		"claude-opus-4-20250514":     perM(15.00, 75.00),
		DefaultPricingKey:            perM(3.00, 15.00),
	}
}

// Lookup 查找模型价格，未知模型回退到 default 档位
func (t PriceTable) Lookup(model string) ModelPricing {
	if p, ok := t[model]; ok {
		return p
	}
	if p, ok := t[strings.ToLower(model)]; ok {
		return p
	}
	return t[DefaultPricingKey]
}

// Cost 计算调用成本：输入 Token × 输入单价 + 输出 Token × 输出单价
func (t PriceTable) Cost(model string, inputTokens, outputTokens int) float64 {
	p := t.Lookup(model)
	return float64(inputTokens)*p.InputPerToken + float64(outputTokens)*p.OutputPerToken
}
