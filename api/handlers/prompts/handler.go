package prompts

import (
	"context"
	"errors"
	"net/http"

	"github.com/fiftycompanies/waide-sub001/api/handlers/common"
	"github.com/fiftycompanies/waide-sub001/internal/auth"
	"github.com/fiftycompanies/waide-sub001/internal/prompt"

	"github.com/gin-gonic/gin"
)

// TemplateStore 模板版本存储
type TemplateStore interface {
	Publish(ctx context.Context, tmpl *prompt.PromptTemplate) error
	ListVersions(ctx context.Context, role, task string) ([]prompt.PromptTemplate, error)
	Deactivate(ctx context.Context, id string) error
}

// CacheClearer 解析缓存清理
type CacheClearer interface {
	ClearCache(role string)
}

// Handler Prompt 模板版本管理 Handler
type Handler struct {
	store TemplateStore
	cache CacheClearer
}

// NewHandler 创建 Handler
func NewHandler(store TemplateStore, cache CacheClearer) *Handler {
	return &Handler{store: store, cache: cache}
}

// PublishRequest 发布新版本请求
type PublishRequest struct {
	Body        string   `json:"body" binding:"required"`
	SystemBody  string   `json:"systemBody"`
	Section     string   `json:"section"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"maxTokens" binding:"gte=0"`
}

// ListVersions 列出模板历史版本
// GET /api/prompts/:role/:task/versions
func (h *Handler) ListVersions(c *gin.Context) {
	versions, err := h.store.ListVersions(c.Request.Context(), c.Param("role"), c.Param("task"))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}
	common.List(c, http.StatusOK, versions, len(versions))
}

// Publish 发布新版本并清理该角色的解析缓存
// POST /api/prompts/:role/:task/versions
func (h *Handler) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidRequest, "请求参数错误: "+err.Error())
		return
	}

	role := c.Param("role")
	tmpl := &prompt.PromptTemplate{
		AgentRole:   role,
		Task:        c.Param("task"),
		Body:        req.Body,
		SystemBody:  req.SystemBody,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		CreatedBy:   c.GetString(auth.UserIDKey),
	}
	if req.Section != "" {
		tmpl.Section = &req.Section
	}
	if err := h.store.Publish(c.Request.Context(), tmpl); err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}

	h.cache.ClearCache(role)
	common.OK(c, http.StatusCreated, tmpl)
}

// Deactivate 停用指定版本
// POST /api/prompts/:role/:task/versions/:id/deactivate
func (h *Handler) Deactivate(c *gin.Context) {
	if err := h.store.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, prompt.ErrTemplateNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, err.Error())
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, err.Error())
		return
	}

	h.cache.ClearCache(c.Param("role"))
	common.OK(c, http.StatusOK, gin.H{"id": c.Param("id"), "active": false})
}
