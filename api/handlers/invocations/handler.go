package invocations

import (
	"context"
	"errors"
	"net/http"

	"github.com/fiftycompanies/waide-sub001/api/handlers/common"
	"github.com/fiftycompanies/waide-sub001/internal/chain"
	"github.com/fiftycompanies/waide-sub001/internal/invocation"
	"github.com/fiftycompanies/waide-sub001/internal/prompt"

	"github.com/gin-gonic/gin"
)

// ChainRunner 链式执行接口
type ChainRunner interface {
	Run(ctx context.Context, tenantID string, steps []chain.Step) (*chain.Result, error)
}

// LogReader 执行日志查询
type LogReader interface {
	ListByChain(ctx context.Context, chainID string) ([]invocation.ExecutionLog, error)
	Get(ctx context.Context, id string) (*invocation.ExecutionLog, error)
}

// Handler 调用与链式执行 Handler
type Handler struct {
	runner invocation.Runner
	chains ChainRunner
	logs   LogReader
}

// NewHandler 创建 Handler
func NewHandler(runner invocation.Runner, chains ChainRunner, logs LogReader) *Handler {
	return &Handler{runner: runner, chains: chains, logs: logs}
}

// RunInvocation 执行单次调用
// @Summary 执行单次调用
// @Tags Invocations
// @Accept json
// @Produce json
// @Param request body RunInvocationRequest true "调用参数"
// @Success 200 {object} common.APIResponse
// @Router /api/invocations [post]
func (h *Handler) RunInvocation(c *gin.Context) {
	var req RunInvocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	res, err := h.runner.Run(c.Request.Context(), invocation.Request{
		AgentRole: req.AgentRole,
		Task:      req.Task,
		Context:   req.Context,
		TenantID:  common.TenantID(c),
		Options:   req.Options,
	})
	if err != nil {
		if errors.Is(err, prompt.ErrTemplateNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, err.Error())
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}

	// 补全服务失败属于软失败，仍返回 200
	common.OK(c, http.StatusOK, res)
}

// RunChain 执行链路
// @Summary 执行链路
// @Tags Invocations
// @Accept json
// @Produce json
// @Param request body RunChainRequest true "链路步骤"
// @Success 200 {object} common.APIResponse
// @Router /api/chains [post]
func (h *Handler) RunChain(c *gin.Context) {
	var req RunChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.chains.Run(c.Request.Context(), common.TenantID(c), req.Steps)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidRequest, err.Error())
		return
	}
	common.OK(c, http.StatusOK, result)
}

// ListChainLogs 查询链路的执行日志
// GET /api/chains/:id/logs
func (h *Handler) ListChainLogs(c *gin.Context) {
	logs, err := h.logs.ListByChain(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	common.List(c, http.StatusOK, logs, len(logs))
}

// GetLog 查询单条执行日志
// GET /api/invocations/logs/:id
func (h *Handler) GetLog(c *gin.Context) {
	log, err := h.logs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, invocation.ErrLogNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, err.Error())
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	common.OK(c, http.StatusOK, log)
}
