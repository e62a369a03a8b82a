package jobs

// CreateJobRequest 创建作业请求
type CreateJobRequest struct {
	JobType      string         `json:"jobType" binding:"required"`
	AssignedRole string         `json:"assignedRole"`
	ParentJobID  string         `json:"parentJobId"`
	TriggerType  string         `json:"triggerType" binding:"omitempty,oneof=manual scheduled chain"`
	Input        map[string]any `json:"input"`
	Enqueue      bool           `json:"enqueue"` // 创建后投递到后台队列
}

// SweepRequest 批量处理请求
type SweepRequest struct {
	JobType string `json:"jobType" binding:"required"`
	Async   bool   `json:"async"` // 投递到后台队列，立即返回
}
