package scoring

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedCriterion 种子文件中的评分项定义
type SeedCriterion struct {
	Category    string `yaml:"category"`
	Item        string `yaml:"item"`
	Label       string `yaml:"label"`
	MaxScore    int    `yaml:"max_score"`
	InputKey    string `yaml:"input_key,omitempty"`
	RequiresKey string `yaml:"requires_key,omitempty"`
	SkipIfKey   string `yaml:"skip_if_key,omitempty"`
	Inactive    bool   `yaml:"inactive,omitempty"`
	Rules       []Rule `yaml:"rules"`
}

// SeedGroup 一个评分组
type SeedGroup struct {
	Group    string          `yaml:"group"`
	Criteria []SeedCriterion `yaml:"criteria"`
}

type seedFile struct {
	Groups []SeedGroup `yaml:"groups"`
}

// LoadSeedFile 读取 YAML 评分项种子文件
func LoadSeedFile(path string) ([]SeedGroup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析种子文件失败: %w", err)
	}
	for _, g := range f.Groups {
		if g.Group == "" {
			return nil, fmt.Errorf("种子文件中存在未命名的评分组")
		}
		for _, c := range g.Criteria {
			if c.Item == "" || c.MaxScore <= 0 {
				return nil, fmt.Errorf("评分组 %s 中的评分项定义无效: item=%q max_score=%d", g.Group, c.Item, c.MaxScore)
			}
		}
	}
	return f.Groups, nil
}

// Seed 写入评分项并失效对应缓存，返回写入条数
func Seed(ctx context.Context, store *Store, cache Cache, groups []SeedGroup) (int, error) {
	n := 0
	for _, g := range groups {
		for i, sc := range g.Criteria {
			c := &Criterion{
				CategoryGroup: g.Group,
				Category:      sc.Category,
				Item:          sc.Item,
				Label:         sc.Label,
				MaxScore:      sc.MaxScore,
				Rules:         sc.Rules,
				InputKey:      sc.InputKey,
				RequiresKey:   sc.RequiresKey,
				SkipIfKey:     sc.SkipIfKey,
				IsActive:      true,
				SortOrder:     i,
			}
			if err := store.Upsert(ctx, c); err != nil {
				return n, err
			}
			if sc.Inactive {
				if err := store.SetActive(ctx, g.Group, sc.Item, false); err != nil {
					return n, err
				}
			}
			n++
		}
		if cache != nil {
			cache.InvalidateGroup(g.Group)
		}
	}
	return n, nil
}
