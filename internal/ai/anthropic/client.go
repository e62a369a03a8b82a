package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fiftycompanies/waide-sub001/pkg/aiinterface"
)

const apiVersion = "2023-06-01"

// Client Anthropic Messages API 客户端适配器
type Client struct {
	apiKey     string
	baseURL    string
	modelID    string
	httpClient *http.Client
	retry      aiinterface.RetryPolicy
}

// NewClient 创建 Anthropic 客户端
func NewClient(config *aiinterface.ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeAuth,
			Message: "Anthropic API Key 不能为空",
		}
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 120
	}

	return &Client{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		modelID: config.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		retry: aiinterface.NewRetryPolicy(config),
	}, nil
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ChatCompletion 对话补全
func (c *Client) ChatCompletion(ctx context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	// system 消息放在请求体顶层，多条按段落合并
	messages := make([]message, 0, len(req.Messages))
	var system []string
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		messages = append(messages, message{Role: msg.Role, Content: msg.Content})
	}

	model := req.Model
	if model == "" {
		model = c.modelID
	}

	body := messagesRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      strings.Join(system, "\n\n"),
	}

	var resp *messagesResponse
	err := c.retry.Do(ctx, func() error {
		var callErr error
		resp, callErr = c.doRequest(ctx, body)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &aiinterface.ChatCompletionResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      text.String(),
		FinishReason: resp.StopReason,
		Usage: aiinterface.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// Name 返回客户端名称
func (c *Client) Name() string {
	return "anthropic"
}

// Close 关闭客户端
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// doRequest 执行 HTTP 请求
func (c *Client) doRequest(ctx context.Context, req messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeInvalidParams,
			Message: "序列化请求失败",
			Err:     err,
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeNetwork,
			Message: "创建请求失败",
			Err:     err,
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeNetwork,
			Message: "请求失败",
			Err:     err,
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeNetwork,
			Message: "读取响应失败",
			Err:     err,
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseError(httpResp.StatusCode, respBody)
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &aiinterface.ClientError{
			Type:    aiinterface.ErrorTypeServerError,
			Message: "解析响应失败",
			Err:     err,
		}
	}
	return &resp, nil
}

// parseError 提取 Anthropic 错误体中的 message，按状态码归类
func parseError(statusCode int, body []byte) *aiinterface.ClientError {
	detail := strings.TrimSpace(string(body))
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		detail = errResp.Error.Type + ": " + errResp.Error.Message
	}
	if len(detail) > 500 {
		detail = detail[:500]
	}
	return aiinterface.ErrorFromStatus("Anthropic", statusCode, detail, nil)
}
