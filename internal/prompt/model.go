package prompt

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PromptTemplate 提示词模板（按 角色 + 任务 版本化）
// 每次编辑都会插入新版本，旧版本保留用于审计
type PromptTemplate struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	AgentRole string `json:"agentRole" gorm:"size:100;not null;index:idx_prompt_role_task"`
	Task      string `json:"task" gorm:"size:100;not null;index:idx_prompt_role_task"`

	// Section 旧版按"段落"组织的查找键，按任务查不到时回退使用
	Section *string `json:"section,omitempty" gorm:"size:100;index"`

	Body       string `json:"body" gorm:"type:text;not null"`
	SystemBody string `json:"systemBody,omitempty" gorm:"type:text"`

	// 模型参数（为空时使用调用方或全局默认值）
	Model       string   `json:"model,omitempty" gorm:"size:100"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"maxTokens,omitempty"`

	Version  int  `json:"version" gorm:"not null;default:1"`
	IsActive bool `json:"isActive" gorm:"not null;default:true;index"`

	CreatedBy string    `json:"createdBy,omitempty" gorm:"size:100"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (PromptTemplate) TableName() string {
	return "prompt_templates"
}

// BeforeCreate 自动生成 ID
func (t *PromptTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// SectionName 返回旧版段落键
func (t *PromptTemplate) SectionName() string {
	if t.Section == nil {
		return ""
	}
	return *t.Section
}
