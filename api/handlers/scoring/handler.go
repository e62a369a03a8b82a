package scoring

import (
	"context"
	"net/http"

	"github.com/fiftycompanies/waide-sub001/api/handlers/common"
	"github.com/fiftycompanies/waide-sub001/internal/scoring"

	"github.com/gin-gonic/gin"
)

// Engine 评分引擎
type Engine interface {
	LoadCriteria(ctx context.Context, group string) ([]scoring.Criterion, error)
	ScoreSubject(ctx context.Context, group string, inputs map[string]any) (*scoring.Summary, error)
}

// Invalidator 评分项缓存失效（本地或跨实例广播）
type Invalidator interface {
	Invalidate(ctx context.Context, group string) error
}

// Handler 评分 Handler
type Handler struct {
	engine      Engine
	invalidator Invalidator
}

// NewHandler 创建 Handler
func NewHandler(engine Engine, invalidator Invalidator) *Handler {
	return &Handler{engine: engine, invalidator: invalidator}
}

// ScoreRequest 评分请求
type ScoreRequest struct {
	Inputs map[string]any `json:"inputs" binding:"required"`
}

// InvalidateRequest 缓存失效请求，group 为空时清空全部
type InvalidateRequest struct {
	Group string `json:"group"`
}

// ListCriteria 查询评分组的有效评分项
// GET /api/scoring/:group/criteria
func (h *Handler) ListCriteria(c *gin.Context) {
	criteria, err := h.engine.LoadCriteria(c.Request.Context(), c.Param("group"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	common.List(c, http.StatusOK, criteria, len(criteria))
}

// Score 按评分组打分
// @Summary 规则评分
// @Tags Scoring
// @Accept json
// @Produce json
// @Param group path string true "评分组"
// @Param request body ScoreRequest true "指标输入"
// @Success 200 {object} common.APIResponse
// @Router /api/scoring/{group}/score [post]
func (h *Handler) Score(c *gin.Context) {
	var req ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	summary, err := h.engine.ScoreSubject(c.Request.Context(), c.Param("group"), req.Inputs)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	common.OK(c, http.StatusOK, summary)
}

// InvalidateCache 使评分项缓存失效
// POST /api/scoring/cache/invalidate
func (h *Handler) InvalidateCache(c *gin.Context) {
	var req InvalidateRequest
	// 请求体可选
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Fail(c, http.StatusBadRequest, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
			return
		}
	}

	if err := h.invalidator.Invalidate(c.Request.Context(), req.Group); err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	common.OK(c, http.StatusOK, gin.H{"group": req.Group, "invalidated": true})
}
