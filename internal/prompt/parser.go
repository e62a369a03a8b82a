package prompt

import (
	"encoding/json"
	"regexp"
	"strings"
)

// OutputKind 解析结果类型
type OutputKind string

const (
	KindParsed         OutputKind = "parsed"
	KindRawPassthrough OutputKind = "raw_passthrough"
)

// 解析策略名称
const (
	StrategyFencedBlock = "fenced_block"
	StrategyOuterBraces = "outer_braces"
	StrategyWholeText   = "whole_text"
)

// RawKey 无法解析时原文存放的键
const RawKey = "raw"

// ParseResult 补全输出的解析结果
type ParseResult struct {
	Kind     OutputKind     `json:"kind"`
	Data     map[string]any `json:"data"`
	Strategy string         `json:"strategy,omitempty"`
}

// Parsed 是否解析出结构化数据
func (r ParseResult) Parsed() bool {
	return r.Kind == KindParsed
}

var fencedBlockPattern = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \t]*\r?\n?(.*?)```")

type parseStrategy struct {
	name    string
	extract func(text string) []string
}

var strategies = []parseStrategy{
	{name: StrategyFencedBlock, extract: fencedBlocks},
	{name: StrategyOuterBraces, extract: outerBraces},
	{name: StrategyWholeText, extract: func(text string) []string { return []string{text} }},
}

// ParseOutput 按顺序尝试：代码块 → 最外层花括号 → 全文
// 均失败时原文放入 {"raw": text}，解析失败从不返回错误
func ParseOutput(text string) ParseResult {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		for _, s := range strategies {
			for _, candidate := range s.extract(trimmed) {
				if data, ok := decodeObject(candidate); ok {
					return ParseResult{Kind: KindParsed, Data: data, Strategy: s.name}
				}
			}
		}
	}
	return ParseResult{
		Kind: KindRawPassthrough,
		Data: map[string]any{RawKey: text},
	}
}

func fencedBlocks(text string) []string {
	matches := fencedBlockPattern.FindAllStringSubmatch(text, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}

func outerBraces(text string) []string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}
	return []string{text[start : end+1]}
}

// decodeObject 解析 JSON 对象；顶层数组包装为 {"items": [...]}，标量视为失败
func decodeObject(candidate string) (map[string]any, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, false
	}
	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return nil, false
	}
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case []any:
		return map[string]any{"items": v}, true
	default:
		return nil, false
	}
}
