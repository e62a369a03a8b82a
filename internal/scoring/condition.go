package scoring

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Condition 规则条件（Comparator | Existence | AlwaysTrue | Invalid）
type Condition interface {
	// Matches value 为输入值，present 表示输入中是否存在该键
	Matches(value any, present bool) bool
	String() string
}

// Comparator 数值比较条件，Op 为 >=、<=、>、<、== 或 rank<=
type Comparator struct {
	Op        string
	Threshold float64
}

// Matches 非数值输入一律不成立
func (c Comparator) Matches(value any, present bool) bool {
	if !present {
		return false
	}
	v, ok := toFloat64(value)
	if !ok {
		return false
	}
	switch c.Op {
	case ">=":
		return v >= c.Threshold
	case "<=":
		return v <= c.Threshold
	case ">":
		return v > c.Threshold
	case "<":
		return v < c.Threshold
	case "==":
		return v == c.Threshold
	case "rank<=":
		// 排名从 1 开始，0 或负数表示未上榜
		return v >= 1 && v <= c.Threshold
	default:
		return false
	}
}

func (c Comparator) String() string {
	return c.Op + strconv.FormatFloat(c.Threshold, 'f', -1, 64)
}

// Existence 存在性条件
type Existence struct {
	Positive bool
}

// Matches nil、false、空串与空集合视为不存在
func (e Existence) Matches(value any, present bool) bool {
	return exists(value, present) == e.Positive
}

func (e Existence) String() string {
	if e.Positive {
		return "exists"
	}
	return "not_exists"
}

// AlwaysTrue 恒成立条件，用于兜底规则
type AlwaysTrue struct{}

// Matches 恒为 true
func (AlwaysTrue) Matches(any, bool) bool { return true }

func (AlwaysTrue) String() string { return "always" }

// Invalid 无法解析的条件，永不成立
type Invalid struct {
	Raw string
}

// Matches 恒为 false
func (Invalid) Matches(any, bool) bool { return false }

func (i Invalid) String() string { return fmt.Sprintf("invalid(%s)", i.Raw) }

// comparatorOps 按长度降序，保证 >= 优先于 >
var comparatorOps = []string{"rank<=", ">=", "<=", "==", ">", "<"}

// ParseCondition 解析条件字符串
func ParseCondition(raw string) Condition {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "", "*", "default", "not_implemented", "always":
		return AlwaysTrue{}
	case "exists", "found":
		return Existence{Positive: true}
	case "not_exists", "not_found":
		return Existence{Positive: false}
	}

	compact := strings.ReplaceAll(s, " ", "")
	for _, op := range comparatorOps {
		if !strings.HasPrefix(compact, op) {
			continue
		}
		threshold, err := strconv.ParseFloat(strings.TrimPrefix(compact, op), 64)
		if err != nil {
			return Invalid{Raw: raw}
		}
		return Comparator{Op: op, Threshold: threshold}
	}
	return Invalid{Raw: raw}
}

// toFloat64 转换为 float64
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func exists(value any, present bool) bool {
	if !present || value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer:
		return !rv.IsNil()
	}
	return true
}
