package invocations

import (
	"github.com/fiftycompanies/waide-sub001/internal/chain"
	"github.com/fiftycompanies/waide-sub001/internal/invocation"
)

// RunInvocationRequest 单次调用请求
type RunInvocationRequest struct {
	AgentRole string             `json:"agentRole" binding:"required"`
	Task      string             `json:"task" binding:"required"`
	Context   map[string]any     `json:"context"`
	Options   invocation.Options `json:"options"`
}

// RunChainRequest 链路执行请求
type RunChainRequest struct {
	Steps []chain.Step `json:"steps" binding:"required,min=1"`
}
