package aiinterface

import (
	"context"
	"errors"
	"time"
)

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = time.Second
	maxRetryBackoff     = 16 * time.Second
)

// RetryPolicy 补全请求的重试策略
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// NewRetryPolicy 从客户端配置生成重试策略
func NewRetryPolicy(cfg *ClientConfig) RetryPolicy {
	p := RetryPolicy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff}
	switch {
	case p.MaxRetries == 0:
		p.MaxRetries = defaultMaxRetries
	case p.MaxRetries < 0:
		p.MaxRetries = 0
	}
	if p.Backoff <= 0 {
		p.Backoff = defaultRetryBackoff
	}
	return p
}

// Do 执行 fn，仅当返回可重试的 ClientError 时按指数退避重试
// ctx 取消时立即返回网络错误
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	wait := p.Backoff
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var clientErr *ClientError
		if !errors.As(err, &clientErr) || !clientErr.IsRetryable() || attempt >= p.MaxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return &ClientError{Type: ErrorTypeNetwork, Message: "请求已取消", Err: ctx.Err()}
		case <-time.After(wait):
		}
		wait = min(wait*2, maxRetryBackoff)
	}
}
