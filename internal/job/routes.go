package job

import (
	"fmt"
	"os"

	"github.com/fiftycompanies/waide-sub001/internal/chain"

	"gopkg.in/yaml.v3"
)

// DefaultRoutes 内置的作业类型路由
func DefaultRoutes() map[string]Route {
	return map[string]Route{
		"blog_post": {AgentRole: "COPYWRITER", Task: "draft"},
		"sns_post":  {AgentRole: "COPYWRITER", Task: "sns"},
		"seo_article": {Chain: []chain.Step{
			{AgentRole: "KEYWORD_STRATEGIST", Task: "research", ResultKey: "keywords"},
			{AgentRole: "CONTENT_PLANNER", Task: "outline", ResultKey: "outline",
				DependsOn: map[string]string{"keyword_research": "keywords"}},
			{AgentRole: "COPYWRITER", Task: "draft", ResultKey: "draft",
				DependsOn: map[string]string{"keyword_research": "keywords", "outline": "outline"}},
		}},
	}
}

// LoadRoutesFile 从 YAML 加载作业类型路由，格式为 job_type → Route
func LoadRoutesFile(path string) (map[string]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取路由文件失败: %w", err)
	}

	var routes map[string]Route
	if err := yaml.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("解析路由文件失败: %w", err)
	}
	for jobType, route := range routes {
		if len(route.Chain) == 0 && (route.AgentRole == "" || route.Task == "") {
			return nil, fmt.Errorf("作业类型 %s 缺少 agent_role/task 或 chain", jobType)
		}
	}
	return routes, nil
}
