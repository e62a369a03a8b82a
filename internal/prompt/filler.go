package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Filler 模板填充接口
type Filler interface {
	Fill(template string, vars map[string]any) string
}

// PlaceholderFiller 单遍扫描替换 {{identifier}} 占位符
// 未知占位符原样保留，不返回错误
type PlaceholderFiller struct{}

// NewFiller 创建占位符填充器
func NewFiller() *PlaceholderFiller {
	return &PlaceholderFiller{}
}

// Fill 填充模板
func (f *PlaceholderFiller) Fill(template string, vars map[string]any) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		start, end, name, found := nextPlaceholder(rest)
		if !found {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:start])
		if name == "" {
			// 不是合法占位符：只输出 {{，从其后继续扫描
			b.WriteString("{{")
			rest = rest[start+2:]
			continue
		}
		if value, ok := lookup(vars, name); ok {
			b.WriteString(stringify(value))
		} else {
			b.WriteString(rest[start:end])
		}
		rest = rest[end:]
	}
}

// Placeholders 列出模板中出现的占位符名称（去重，按出现顺序）
func Placeholders(template string) []string {
	seen := make(map[string]bool)
	var names []string
	rest := template
	for {
		start, end, name, found := nextPlaceholder(rest)
		if !found {
			return names
		}
		if name == "" {
			rest = rest[start+2:]
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		rest = rest[end:]
	}
}

// nextPlaceholder 定位下一个 {{ 及其后最近的 }}
// end 指向 }} 之后；花括号之间不是合法名称时 name 为空
func nextPlaceholder(s string) (start, end int, name string, found bool) {
	start = strings.Index(s, "{{")
	if start < 0 {
		return 0, 0, "", false
	}
	closing := strings.Index(s[start+2:], "}}")
	if closing < 0 {
		return 0, 0, "", false
	}
	end = start + 2 + closing + 2
	name = strings.TrimSpace(s[start+2 : start+2+closing])
	if !isIdentifier(name) {
		name = ""
	}
	return start, end, name, true
}

// isIdentifier 校验占位符名：[A-Za-z_][A-Za-z0-9_.-]*
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, c := range name {
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case i > 0 && ((c >= '0' && c <= '9') || c == '.' || c == '-'):
		default:
			return false
		}
	}
	return true
}

// lookup 先按完整键查找，再按点号路径逐层查找嵌套 map
func lookup(vars map[string]any, name string) (any, bool) {
	if v, ok := vars[name]; ok {
		return v, true
	}
	if !strings.Contains(name, ".") {
		return nil, false
	}

	var current any = vars
	for _, part := range strings.Split(name, ".") {
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

// stringify 字符串原样输出，标量取文本形式，对象与数组输出缩进 JSON
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(value); err != nil {
			return fmt.Sprint(value)
		}
		return strings.TrimRight(buf.String(), "\n")
	default:
		return fmt.Sprint(value)
	}
}
