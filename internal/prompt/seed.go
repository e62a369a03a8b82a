package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedTemplate 种子文件中的模板定义
type SeedTemplate struct {
	AgentRole   string   `yaml:"agent_role"`
	Task        string   `yaml:"task"`
	Section     string   `yaml:"section,omitempty"`
	Body        string   `yaml:"body"`
	SystemBody  string   `yaml:"system_body,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
}

type seedFile struct {
	Templates []SeedTemplate `yaml:"templates"`
}

// LoadSeedFile 读取 YAML 种子文件
func LoadSeedFile(path string) ([]SeedTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析种子文件失败: %w", err)
	}
	return f.Templates, nil
}

// Seed 导入模板：内容与当前版本一致时跳过，否则发布新版本
// 返回新发布的版本数
func Seed(ctx context.Context, repo *Repository, templates []SeedTemplate, createdBy string) (int, error) {
	published := 0
	for _, s := range templates {
		current, err := repo.FindActive(ctx, s.AgentRole, s.Task)
		if err != nil && !errors.Is(err, ErrTemplateNotFound) {
			return published, err
		}
		if current != nil && current.Body == s.Body && current.SystemBody == s.SystemBody &&
			current.Model == s.Model && current.MaxTokens == s.MaxTokens {
			continue
		}

		tmpl := &PromptTemplate{
			AgentRole:   s.AgentRole,
			Task:        s.Task,
			Body:        s.Body,
			SystemBody:  s.SystemBody,
			Model:       s.Model,
			Temperature: s.Temperature,
			MaxTokens:   s.MaxTokens,
			CreatedBy:   createdBy,
		}
		if s.Section != "" {
			section := s.Section
			tmpl.Section = &section
		}
		if err := repo.Publish(ctx, tmpl); err != nil {
			return published, fmt.Errorf("导入模板 %s/%s 失败: %w", s.AgentRole, s.Task, err)
		}
		published++
	}
	return published, nil
}
