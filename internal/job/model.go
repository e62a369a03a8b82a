package job

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status 作业状态
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// AllStatuses 全部状态，用于统计
var AllStatuses = []Status{StatusPending, StatusInProgress, StatusDone, StatusFailed, StatusCancelled}

// Terminal 是否为终态
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

// TriggerType 触发方式
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
	TriggerChain     TriggerType = "chain"
)

// QualityResult 质检结论
type QualityResult string

const (
	QualityPass  QualityResult = "pass"
	QualityFail  QualityResult = "fail"
	QualityError QualityResult = "error"
)

var (
	// ErrNotFound 作业不存在
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition 状态流转不合法
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// transitions 合法的状态流转
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusDone, StatusFailed, StatusCancelled},
}

// CanTransition 判断状态能否从 from 流转到 to
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job 异步内容生产作业
type Job struct {
	ID           string      `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID     string      `json:"tenantId" gorm:"size:100;index"`
	ParentJobID  *string     `json:"parentJobId,omitempty" gorm:"type:uuid;index"`
	JobType      string      `json:"jobType" gorm:"size:100;not null;index:idx_agent_jobs_type_status"`
	AssignedRole string      `json:"assignedRole" gorm:"size:100"`
	TriggerType  TriggerType `json:"triggerType" gorm:"size:20;not null;default:manual"`
	Status       Status      `json:"status" gorm:"size:20;not null;default:PENDING;index:idx_agent_jobs_type_status"`

	// 输入输出
	InputPayload  datatypes.JSONMap `json:"inputPayload" gorm:"type:jsonb"`
	OutputPayload datatypes.JSONMap `json:"outputPayload,omitempty" gorm:"type:jsonb"`

	// 质检
	QualityGateResult QualityResult `json:"qualityGateResult,omitempty" gorm:"size:20"`
	QualityGateScore  *float64      `json:"qualityGateScore,omitempty"`
	QualityGateNotes  string        `json:"qualityGateNotes,omitempty" gorm:"type:text"`

	RetryCount   int    `json:"retryCount" gorm:"default:0"`
	ErrorMessage string `json:"errorMessage,omitempty" gorm:"type:text"`

	// 时间
	CreatedAt   time.Time  `json:"createdAt" gorm:"not null;autoCreateTime;index"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// TableName 指定表名
func (Job) TableName() string {
	return "agent_jobs"
}

// BeforeCreate 自动生成 ID
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	return nil
}

// Outcome 作业终态写入内容
type Outcome struct {
	Status        Status
	Output        map[string]any
	QualityResult QualityResult
	QualityScore  *float64
	QualityNotes  string
	RetryCount    int
	ErrorMessage  string
}
