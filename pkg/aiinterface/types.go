package aiinterface

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Message 消息结构
type Message struct {
	Role    string `json:"role"`    // system, user, assistant
	Content string `json:"content"` // 消息内容
}

// ChatCompletionRequest 对话补全请求
type ChatCompletionRequest struct {
	Model       string    `json:"model"`       // 模型标识，空则使用客户端默认模型
	Messages    []Message `json:"messages"`    // 消息列表
	Temperature float64   `json:"temperature"` // 温度参数（0-2）
	MaxTokens   int       `json:"max_tokens"`  // 最大输出 Token 数
}

// ChatCompletionResponse 对话补全响应
type ChatCompletionResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"` // 服务端回报的模型，计价仍以请求模型为准
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"` // stop、length、max_tokens 等，取决于提供方
	Usage        Usage  `json:"usage"`
}

// Truncated 输出是否因 Token 上限被截断
func (r *ChatCompletionResponse) Truncated() bool {
	return r.FinishReason == "length" || r.FinishReason == "max_tokens"
}

// Usage Token 使用情况
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`     // 输入 Token 数
	CompletionTokens int `json:"completion_tokens"` // 输出 Token 数
	TotalTokens      int `json:"total_tokens"`      // 总 Token 数
}

// ModelClient 补全服务客户端统一接口
type ModelClient interface {
	// ChatCompletion 对话补全（非流式）
	ChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

	// Name 返回客户端名称（如 "openai", "anthropic"）
	Name() string

	// Close 关闭客户端连接
	Close() error
}

// ClientConfig 客户端配置
type ClientConfig struct {
	Provider     string        // openai 或 anthropic
	APIKey       string
	BaseURL      string
	Model        string        // 默认模型标识
	OrgID        string        // 仅 OpenAI
	MaxRetries   int           // 0 使用默认值 3，负数表示不重试
	Timeout      int           // 单次请求超时（秒）
	RetryBackoff time.Duration // 首次重试等待，之后翻倍；0 为 1 秒
}

// ErrorType 错误类型
type ErrorType string

const (
	ErrorTypeAuth          ErrorType = "auth"           // 认证错误
	ErrorTypeRateLimit     ErrorType = "rate_limit"     // 速率限制
	ErrorTypeInvalidParams ErrorType = "invalid_params" // 参数错误
	ErrorTypeServerError   ErrorType = "server_error"   // 服务器错误
	ErrorTypeNetwork       ErrorType = "network"        // 网络错误
	ErrorTypeUnknown       ErrorType = "unknown"        // 未知错误
)

// ClientError 客户端错误
type ClientError struct {
	Type       ErrorType
	StatusCode int // HTTP 状态码，非 HTTP 错误为 0
	Message    string
	Err        error
}

// ErrorFromStatus 按 HTTP 状态码归类补全服务错误
func ErrorFromStatus(provider string, status int, detail string, err error) *ClientError {
	errType := ErrorTypeUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		errType = ErrorTypeAuth
	case status == http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
	case status == http.StatusRequestTimeout:
		errType = ErrorTypeNetwork
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		errType = ErrorTypeInvalidParams
	case status >= 500:
		// 含 Anthropic 的 529 overloaded
		errType = ErrorTypeServerError
	}

	msg := fmt.Sprintf("%s API 错误 (HTTP %d)", provider, status)
	if detail != "" {
		msg += ": " + detail
	}
	return &ClientError{Type: errType, StatusCode: status, Message: msg, Err: err}
}

// Error 实现error接口
func (e *ClientError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回原始错误
func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsRetryable 判断错误是否可重试
func (e *ClientError) IsRetryable() bool {
	return e.Type == ErrorTypeRateLimit || e.Type == ErrorTypeNetwork || e.Type == ErrorTypeServerError
}
