package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fiftycompanies/waide-sub001/pkg/aiinterface"

	openai "github.com/sashabaranov/go-openai"
)

// Client OpenAI 兼容协议的补全客户端
type Client struct {
	client  *openai.Client
	modelID string
	retry   aiinterface.RetryPolicy
}

// NewClient 创建 OpenAI 客户端
func NewClient(config *aiinterface.ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeAuth,
			Message: "OpenAI API Key 不能为空",
		}
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: time.Duration(config.Timeout) * time.Second}
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		modelID: config.Model,
		retry:   aiinterface.NewRetryPolicy(config),
	}, nil
}

// reasoningModel o 系列推理模型不接受 max_tokens 与自定义温度
func reasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4")
}

func buildRequest(model string, req *aiinterface.ChatCompletionRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	out := openai.ChatCompletionRequest{Model: model, Messages: messages}
	if reasoningModel(model) {
		out.MaxCompletionTokens = req.MaxTokens
		return out
	}
	out.MaxTokens = req.MaxTokens
	out.Temperature = float32(req.Temperature)
	return out
}

// ChatCompletion 对话补全（非流式）
func (c *Client) ChatCompletion(ctx context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.modelID
	}
	openaiReq := buildRequest(model, req)

	var resp openai.ChatCompletionResponse
	err := c.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, openaiReq)
		if callErr != nil {
			return wrapError(ctx, callErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeServerError,
			Message: "OpenAI 返回空的 choices",
		}
	}

	choice := resp.Choices[0]
	return &aiinterface.ChatCompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: aiinterface.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Name 返回客户端名称
func (c *Client) Name() string {
	return "openai"
}

// Close OpenAI 客户端无需显式关闭
func (c *Client) Close() error {
	return nil
}

// wrapError 把 go-openai 的错误归类为 ClientError
func wrapError(ctx context.Context, err error) *aiinterface.ClientError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return aiinterface.ErrorFromStatus("OpenAI", apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return aiinterface.ErrorFromStatus("OpenAI", reqErr.HTTPStatusCode, "", err)
	}

	// 调用方取消不重试；单次请求超时按网络错误重试
	if ctx.Err() != nil {
		return &aiinterface.ClientError{Type: aiinterface.ErrorTypeUnknown, Message: "OpenAI 请求已取消", Err: err}
	}
	return &aiinterface.ClientError{Type: aiinterface.ErrorTypeNetwork, Message: "OpenAI 请求失败", Err: err}
}
