package scoring

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Rule 评分规则：条件成立时按百分比给分
type Rule struct {
	Condition string  `json:"condition" yaml:"condition"`
	ScorePct  float64 `json:"scorePct" yaml:"score_pct"`
	Label     string  `json:"label" yaml:"label"`
}

// Criterion 评分项（声明式规则，按顺序匹配，首个成立的规则生效，全部不成立时取最后一条）
type Criterion struct {
	ID            string `json:"id" gorm:"primaryKey;type:uuid"`
	CategoryGroup string `json:"categoryGroup" gorm:"size:100;not null;uniqueIndex:idx_criteria_group_item"`
	Category      string `json:"category" gorm:"size:100;not null"`
	Item          string `json:"item" gorm:"size:100;not null;uniqueIndex:idx_criteria_group_item"`
	Label         string `json:"label" gorm:"size:255"`
	MaxScore      int    `json:"maxScore" gorm:"not null"`
	Rules         []Rule `json:"rules" gorm:"type:jsonb;serializer:json"`

	// InputKey 输入指标名，为空时使用 Item（支持 a.b 嵌套路径）
	InputKey string `json:"inputKey,omitempty" gorm:"size:100"`
	// RequiresKey 仅当输入中存在该指标时才评估（更精细的数据源）
	RequiresKey string `json:"requiresKey,omitempty" gorm:"size:100"`
	// SkipIfKey 输入中存在该指标时跳过（已由更精细的评分项替代）
	SkipIfKey string `json:"skipIfKey,omitempty" gorm:"size:100"`

	IsActive  bool      `json:"isActive" gorm:"not null;default:true;index"`
	SortOrder int       `json:"sortOrder" gorm:"default:0"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Criterion) TableName() string {
	return "scoring_criteria"
}

// BeforeCreate 自动生成 ID
func (c *Criterion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// MetricKey 评估时读取的输入键
func (c *Criterion) MetricKey() string {
	if c.InputKey != "" {
		return c.InputKey
	}
	return c.Item
}

// ItemResult 单个评分项结果
type ItemResult struct {
	Category     string  `json:"category"`
	Item         string  `json:"item"`
	Label        string  `json:"label"`
	Awarded      int     `json:"awarded"`
	MaxScore     int     `json:"maxScore"`
	MatchedLabel string  `json:"matchedLabel"`
	MatchedRule  int     `json:"matchedRule"` // -1 表示没有规则
	ScorePct     float64 `json:"scorePct"`
	Value        any     `json:"value"`
	Defaulted    bool    `json:"defaulted"` // 无规则成立，使用最后一条
}

// Summary 综合评分结果
type Summary struct {
	Group         string       `json:"group"`
	Total         int          `json:"total"`
	MeasurableMax int          `json:"measurableMax"`
	Normalized    int          `json:"normalized"`
	Breakdown     []ItemResult `json:"breakdown"`
	Skipped       []string     `json:"skipped"`
}
