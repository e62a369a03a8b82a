package ai

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// EstimateTokens 估算文本 Token 数
// 服务端未返回 usage 时用于成本核算；编码器不可用时按 4 字符/Token 粗略估算
func EstimateTokens(text, model string) int {
	if text == "" {
		return 0
	}
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		n := utf8.RuneCountInString(text) / 4
		if n == 0 {
			n = 1
		}
		return n
	}
	return len(tkm.Encode(text, nil, nil))
}

// EstimateMessagesTokens 估算消息列表的 Token 总数（每条消息额外计 4 个角色开销）
func EstimateMessagesTokens(messages []Message, model string) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.Content, model) + 4
	}
	return total
}
