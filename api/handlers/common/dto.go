package common

import (
	"github.com/fiftycompanies/waide-sub001/internal/auth"

	"github.com/gin-gonic/gin"
)

// APIResponse 通用响应结构，用于封装成功或失败结果。
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ListResponse 列表响应结构。
type ListResponse struct {
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}

// ErrorResponse 统一错误返回结构。
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// 错误码
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeInternal       = "INTERNAL_ERROR"
	CodeUnavailable    = "UNAVAILABLE"

	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// OK 返回成功响应
func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, APIResponse{Success: true, Data: data})
}

// List 返回列表响应
func List(c *gin.Context, status int, items interface{}, total int) {
	c.JSON(status, APIResponse{Success: true, Data: ListResponse{Items: items, Total: total}})
}

// Fail 返回错误响应
func Fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Success: false, Code: code, Message: message})
}

// TenantID 读取认证中间件写入的租户 ID
func TenantID(c *gin.Context) string {
	return c.GetString(auth.TenantIDKey)
}
