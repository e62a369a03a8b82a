package jobs

import (
	"context"
	"errors"
	"net/http"

	"github.com/fiftycompanies/waide-sub001/api/handlers/common"
	"github.com/fiftycompanies/waide-sub001/internal/content"
	"github.com/fiftycompanies/waide-sub001/internal/infra/queue"
	"github.com/fiftycompanies/waide-sub001/internal/job"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JobStore 作业存储
type JobStore interface {
	Create(ctx context.Context, j *job.Job) error
	Get(ctx context.Context, id string) (*job.Job, error)
	Cancel(ctx context.Context, id string) error
}

// Processor 作业流水线
type Processor interface {
	ProcessJob(ctx context.Context, j *job.Job) (*job.Job, error)
	SweepPending(ctx context.Context, jobType, tenantID string) ([]job.JobResult, error)
}

// ContentLister 作业产出查询
type ContentLister interface {
	ListByJob(ctx context.Context, jobID string) ([]content.GeneratedContent, error)
}

// Handler 作业 Handler
type Handler struct {
	jobs     JobStore
	pipeline Processor
	contents ContentLister
	queue    queue.Client // 为 nil 时不支持后台投递
	logger   *zap.Logger
}

// NewHandler 创建 Handler
func NewHandler(jobs JobStore, pipeline Processor, contents ContentLister, queueClient queue.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		jobs:     jobs,
		pipeline: pipeline,
		contents: contents,
		queue:    queueClient,
		logger:   logger,
	}
}

// CreateJob 创建作业
// @Summary 创建作业
// @Tags Jobs
// @Accept json
// @Produce json
// @Param request body CreateJobRequest true "作业参数"
// @Success 201 {object} common.APIResponse
// @Router /api/jobs [post]
func (h *Handler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}
	if req.Enqueue && h.queue == nil {
		common.Fail(c, http.StatusServiceUnavailable, common.CodeUnavailable, "后台队列未启用")
		return
	}

	j := &job.Job{
		TenantID:     common.TenantID(c),
		JobType:      req.JobType,
		AssignedRole: req.AssignedRole,
		TriggerType:  job.TriggerType(req.TriggerType),
		InputPayload: req.Input,
	}
	if req.ParentJobID != "" {
		j.ParentJobID = &req.ParentJobID
	}
	if err := h.jobs.Create(c.Request.Context(), j); err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}

	if req.Enqueue {
		if err := h.queue.EnqueueProcessJob(c.Request.Context(), j.ID); err != nil {
			// 作业已创建，由定时扫描兜底
			h.logger.Warn("作业投递失败", zap.String("job_id", j.ID), zap.Error(err))
		}
	}
	common.OK(c, http.StatusCreated, j)
}

// GetJob 查询作业
// GET /api/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	j, ok := h.loadJob(c)
	if !ok {
		return
	}
	common.OK(c, http.StatusOK, j)
}

// ListContents 查询作业产出的内容
// GET /api/jobs/:id/contents
func (h *Handler) ListContents(c *gin.Context) {
	j, ok := h.loadJob(c)
	if !ok {
		return
	}
	list, err := h.contents.ListByJob(c.Request.Context(), j.ID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	common.List(c, http.StatusOK, list, len(list))
}

// CancelJob 取消作业
// POST /api/jobs/:id/cancel
func (h *Handler) CancelJob(c *gin.Context) {
	j, ok := h.loadJob(c)
	if !ok {
		return
	}
	if err := h.jobs.Cancel(c.Request.Context(), j.ID); err != nil {
		if errors.Is(err, job.ErrInvalidTransition) {
			common.Fail(c, http.StatusConflict, common.CodeConflict, err.Error())
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}

	j.Status = job.StatusCancelled
	common.OK(c, http.StatusOK, j)
}

// ProcessJob 同步执行作业
// POST /api/jobs/:id/process
func (h *Handler) ProcessJob(c *gin.Context) {
	j, ok := h.loadJob(c)
	if !ok {
		return
	}
	if j.Status.Terminal() {
		common.Fail(c, http.StatusConflict, common.CodeConflict, "作业已结束: "+string(j.Status))
		return
	}

	done, err := h.pipeline.ProcessJob(c.Request.Context(), j)
	if err != nil {
		if errors.Is(err, job.ErrInvalidTransition) {
			common.Fail(c, http.StatusConflict, common.CodeConflict, err.Error())
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	common.OK(c, http.StatusOK, done)
}

// SweepJobs 批量处理当前租户的待执行作业
// POST /api/jobs/sweep
func (h *Handler) SweepJobs(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}
	tenantID := common.TenantID(c)

	if req.Async {
		if h.queue == nil {
			common.Fail(c, http.StatusServiceUnavailable, common.CodeUnavailable, "后台队列未启用")
			return
		}
		if err := h.queue.EnqueueSweep(c.Request.Context(), req.JobType, tenantID); err != nil {
			common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
			return
		}
		common.OK(c, http.StatusAccepted, gin.H{"jobType": req.JobType, "queued": true})
		return
	}

	results, err := h.pipeline.SweepPending(c.Request.Context(), req.JobType, tenantID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	common.List(c, http.StatusOK, results, len(results))
}

// QueueStats 后台队列统计
// GET /api/jobs/queue
func (h *Handler) QueueStats(c *gin.Context) {
	if h.queue == nil {
		common.Fail(c, http.StatusServiceUnavailable, common.CodeUnavailable, "后台队列未启用")
		return
	}
	stats, err := h.queue.Stats(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	common.OK(c, http.StatusOK, stats)
}

// loadJob 读取作业并校验租户，失败时已写入响应
func (h *Handler) loadJob(c *gin.Context) (*job.Job, bool) {
	j, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, "作业不存在")
			return nil, false
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return nil, false
	}
	if j.TenantID != common.TenantID(c) {
		common.Fail(c, http.StatusNotFound, common.CodeNotFound, "作业不存在")
		return nil, false
	}
	return j, true
}
