package ai

import (
	"errors"

	"github.com/fiftycompanies/waide-sub001/pkg/aiinterface"
)

// 适配器子包依赖 aiinterface，上层只引用本包
type (
	Message                = aiinterface.Message
	ChatCompletionRequest  = aiinterface.ChatCompletionRequest
	ChatCompletionResponse = aiinterface.ChatCompletionResponse
	Usage                  = aiinterface.Usage
	ModelClient            = aiinterface.ModelClient
	ClientConfig           = aiinterface.ClientConfig
	ClientError            = aiinterface.ClientError
)

const ErrorTypeInvalidParams = aiinterface.ErrorTypeInvalidParams

// 模板与请求都未指定时的兜底参数
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// ErrorKind 返回补全错误的类别，用于日志与追踪；非 ClientError 归为 unknown
func ErrorKind(err error) string {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return string(clientErr.Type)
	}
	return string(aiinterface.ErrorTypeUnknown)
}
