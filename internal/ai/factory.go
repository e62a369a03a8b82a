package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fiftycompanies/waide-sub001/internal/ai/anthropic"
	"github.com/fiftycompanies/waide-sub001/internal/ai/openai"
	"github.com/fiftycompanies/waide-sub001/internal/config"
)

// Router 按模型标识把请求路由到对应提供方的客户端
// claude-* 走 Anthropic，其余默认走 OpenAI 兼容协议
type Router struct {
	clients      map[string]ModelClient // provider -> client
	defaultModel string
	mu           sync.RWMutex
}

// NewRouter 创建路由客户端
func NewRouter(defaultModel string) *Router {
	if defaultModel == "" {
		defaultModel = DefaultModel
	}
	return &Router{
		clients:      make(map[string]ModelClient),
		defaultModel: defaultModel,
	}
}

// NewRouterFromConfig 根据配置创建路由客户端，未配置 Key 的提供方会被跳过
func NewRouterFromConfig(cfg *config.AIConfig) (*Router, error) {
	r := NewRouter(cfg.DefaultModel)

	if cfg.OpenAI.APIKey != "" {
		client, err := openai.NewClient(&ClientConfig{
			Provider:     "openai",
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			OrgID:        cfg.OpenAI.OrgID,
			MaxRetries:   cfg.OpenAI.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Timeout:      cfg.Timeout,
			Model:        r.defaultModel,
		})
		if err != nil {
			return nil, fmt.Errorf("创建 OpenAI 客户端失败: %w", err)
		}
		r.Register("openai", client)
	}

	if cfg.Anthropic.APIKey != "" {
		client, err := anthropic.NewClient(&ClientConfig{
			Provider:     "anthropic",
			APIKey:       cfg.Anthropic.APIKey,
			BaseURL:      cfg.Anthropic.BaseURL,
			MaxRetries:   cfg.Anthropic.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			Timeout:      cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("创建 Anthropic 客户端失败: %w", err)
		}
		r.Register("anthropic", client)
	}

	if len(r.clients) == 0 {
		return nil, fmt.Errorf("未配置任何补全服务 API Key")
	}
	return r, nil
}

// Register 注册提供方客户端
func (r *Router) Register(provider string, client ModelClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[provider] = client
}

// ProviderFor 根据模型标识推断提供方
func ProviderFor(model string) string {
	m := strings.ToLower(model)
	if strings.HasPrefix(m, "claude") {
		return "anthropic"
	}
	return "openai"
}

// ChatCompletion 实现 ModelClient
func (r *Router) ChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = r.defaultModel
		withModel := *req
		withModel.Model = model
		req = &withModel
	}

	provider := ProviderFor(model)
	r.mu.RLock()
	client, ok := r.clients[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, &ClientError{
			Type:    ErrorTypeInvalidParams,
			Message: fmt.Sprintf("模型 %s 对应的提供方 %s 未配置", model, provider),
		}
	}
	return client.ChatCompletion(ctx, req)
}

// Name 返回客户端名称
func (r *Router) Name() string {
	return "router"
}

// Close 关闭所有客户端
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, client := range r.clients {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
