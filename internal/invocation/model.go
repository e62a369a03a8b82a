package invocation

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 执行日志状态
const (
	LogStatusSuccess = "success"
	LogStatusError   = "error"
)

// ExecutionLog 补全调用审计日志（只追加）
type ExecutionLog struct {
	ID            string         `json:"id" gorm:"primaryKey;type:uuid"`
	AgentRole     string         `json:"agentRole" gorm:"size:100;not null;index"`
	Task          string         `json:"task" gorm:"size:100;not null"`
	PromptVersion int            `json:"promptVersion"`
	TenantID      string         `json:"tenantId" gorm:"size:100;index"`
	InputSummary  string         `json:"inputSummary" gorm:"type:text"`
	Output        datatypes.JSON `json:"output,omitempty" gorm:"type:jsonb"`
	Model         string         `json:"model" gorm:"size:100"`
	InputTokens   int            `json:"inputTokens"`
	OutputTokens  int            `json:"outputTokens"`
	Cost          float64        `json:"cost"`
	DurationMs    int64          `json:"durationMs"`
	Status        string         `json:"status" gorm:"size:20;not null;index"`
	ErrorMessage  string         `json:"errorMessage,omitempty" gorm:"type:text"`
	ChainID       *string        `json:"chainId,omitempty" gorm:"size:64;index"`
	StepIndex     *int           `json:"stepIndex,omitempty"`
	CreatedAt     time.Time      `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

// TableName 指定表名
func (ExecutionLog) TableName() string {
	return "agent_execution_logs"
}

// BeforeCreate 自动生成 ID
func (l *ExecutionLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}
