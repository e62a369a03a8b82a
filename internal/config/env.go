package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadEnvFile 依次尝试加载当前目录及上级目录的 .env 文件，返回加载的路径
func LoadEnvFile() (string, error) {
	path := resolveEnvPath(collectEnvCandidates())
	if path == "" {
		return "", nil
	}
	if err := godotenv.Load(path); err != nil {
		return path, fmt.Errorf("加载环境变量文件 %s 失败: %w", path, err)
	}
	return path, nil
}

// Env 当前环境名称，默认 dev
func Env() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return "dev"
}

// resolveEnvPath 返回第一个存在的候选文件
func resolveEnvPath(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// collectEnvCandidates 从当前工作目录、可执行文件目录向上收集 .env 路径
func collectEnvCandidates() []string {
	seen := make(map[string]struct{})
	var candidates []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		candidates = append(candidates, path)
	}

	traverse := func(start string) {
		dir := filepath.Clean(start)
		for i := 0; i < 8; i++ {
			if dir == "" || dir == string(filepath.Separator) || dir == "." {
				break
			}
			add(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if wd, err := os.Getwd(); err == nil {
		traverse(wd)
	}
	if exe, err := os.Executable(); err == nil {
		traverse(filepath.Dir(exe))
	}
	return candidates
}
