package content

import (
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status 生成内容状态
type Status string

const (
	StatusDraft    Status = "draft"    // 草稿，待质检或人工复核
	StatusApproved Status = "approved" // 质检通过
	StatusRejected Status = "rejected" // 人工驳回
)

// GeneratedContent 流水线生成的内容
type GeneratedContent struct {
	ID           string         `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID     string         `json:"tenantId" gorm:"size:100;index"`
	JobID        string         `json:"jobId" gorm:"type:uuid;not null;index"`
	Title        string         `json:"title" gorm:"size:255"`
	Body         string         `json:"body" gorm:"type:text;not null"`
	WordCount    int            `json:"wordCount" gorm:"default:0"`
	Status       Status         `json:"status" gorm:"size:20;not null;default:draft;index"`
	QualityScore *float64       `json:"qualityScore,omitempty"`
	Metadata     datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	ApprovedAt   *time.Time     `json:"approvedAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt    time.Time      `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (GeneratedContent) TableName() string {
	return "generated_contents"
}

// BeforeCreate 自动生成 ID
func (c *GeneratedContent) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// CountWords 统计字数：中日韩字符逐字计数，其余按空白分词
func CountWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			count++
			inWord = false
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}
