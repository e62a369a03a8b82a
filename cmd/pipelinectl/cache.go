package main

import (
	"github.com/fiftycompanies/waide-sub001/internal/logger"
	"github.com/fiftycompanies/waide-sub001/internal/scoring"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "评分缓存管理",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate [group]",
	Short: "广播评分缓存失效，不指定评分组时清空全部",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCacheInvalidate,
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	group := ""
	if len(args) == 1 {
		group = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rdb, err := openRedis(cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// 本进程没有缓存，仅负责广播
	inv := scoring.NewRedisInvalidator(rdb, cfg.Scoring.InvalidateChannel, scoring.NewCriteriaCache(0), logger.Named("scoring"))
	if err := inv.Invalidate(cmd.Context(), group); err != nil {
		return err
	}

	if group == "" {
		okf("已广播：清空全部评分缓存\n")
	} else {
		okf("已广播：评分组 %s 缓存失效\n", group)
	}
	return nil
}
