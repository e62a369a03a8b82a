package main

import (
	"fmt"

	"github.com/fiftycompanies/waide-sub001/internal/prompt"
	"github.com/fiftycompanies/waide-sub001/internal/scoring"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "从 YAML 文件导入数据",
}

var seedCriteriaCmd = &cobra.Command{
	Use:   "criteria <file>",
	Short: "导入评分项，已存在的评分项按 (评分组, 评分项) 更新",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeedCriteria,
}

var seedPromptsCmd = &cobra.Command{
	Use:   "prompts <file>",
	Short: "导入提示词模板，内容变化时发布新版本",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeedPrompts,
}

var seedCreatedBy string

func init() {
	seedPromptsCmd.Flags().StringVar(&seedCreatedBy, "by", "pipelinectl", "记录在模板上的发布人")

	seedCmd.AddCommand(seedCriteriaCmd, seedPromptsCmd)
	rootCmd.AddCommand(seedCmd)
}

func runSeedCriteria(cmd *cobra.Command, args []string) error {
	groups, err := scoring.LoadSeedFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	n, err := scoring.Seed(cmd.Context(), scoring.NewStore(db), nil, groups)
	if err != nil {
		return fmt.Errorf("导入评分项失败（已写入 %d 条）: %w", n, err)
	}

	okf("已导入 %d 个评分组，共 %d 个评分项\n", len(groups), n)
	warnf("运行中的服务缓存最长 %s 后刷新，如需立即生效请执行 pipelinectl cache invalidate\n", cfg.Scoring.CacheTTL)
	return nil
}

func runSeedPrompts(cmd *cobra.Command, args []string) error {
	templates, err := prompt.LoadSeedFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	published, err := prompt.Seed(cmd.Context(), prompt.NewRepository(db), templates, seedCreatedBy)
	if err != nil {
		return fmt.Errorf("导入模板失败（已发布 %d 个）: %w", published, err)
	}

	okf("发布 %d 个新版本", published)
	plainf("，%d 个未变化\n", len(templates)-published)
	return nil
}
