package main

import (
	"fmt"

	"github.com/fiftycompanies/waide-sub001/api"
	"github.com/fiftycompanies/waide-sub001/internal/infra"
	"github.com/fiftycompanies/waide-sub001/internal/infra/queue"
	"github.com/fiftycompanies/waide-sub001/internal/job"
	"github.com/fiftycompanies/waide-sub001/internal/logger"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <job-type>",
	Short: "处理一批指定类型的待执行作业",
	Long:  "认领最早创建的一批 PENDING 作业并依次执行；--async 时仅投递扫描任务到后台队列。",
	Args:  cobra.ExactArgs(1),
	RunE:  runSweep,
}

var (
	sweepTenant string
	sweepAsync  bool
)

func init() {
	sweepCmd.Flags().StringVar(&sweepTenant, "tenant", "", "只处理该租户的作业")
	sweepCmd.Flags().BoolVar(&sweepAsync, "async", false, "投递到后台队列，由 Worker 执行")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	jobType := args[0]
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if sweepAsync {
		cfg.Redis = api.NormalizeRedisConfig(cfg.Redis)
		client := queue.NewClient(infra.AsynqRedisOpt(&cfg.Redis), cfg.Pipeline.JobTimeout)
		defer client.Close()
		if err := client.EnqueueSweep(cmd.Context(), jobType, sweepTenant); err != nil {
			return err
		}
		okf("已投递扫描任务: %s\n", jobType)
		return nil
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	// 命令行不对外提供接口，无需鉴权配置
	cfg.Auth.Disabled = true
	container, err := api.InitContainer(db, nil, cfg, nil, logger.Get())
	if err != nil {
		return err
	}
	defer container.Shutdown()

	results, err := container.Pipeline.SweepPending(cmd.Context(), jobType, sweepTenant)
	if err != nil {
		return fmt.Errorf("扫描失败: %w", err)
	}
	printSweepResults(jobType, results)
	return nil
}

func printSweepResults(jobType string, results []job.JobResult) {
	if len(results) == 0 {
		warnf("没有待执行的 %s 作业\n", jobType)
		return
	}

	header("%-36s  %-7s  %-6s  %6s  %s\n", "JOB", "STATUS", "PASSED", "SCORE", "REWRITES")
	for _, r := range results {
		line := fmt.Sprintf("%-36s  %-7s  %-6t  %6.1f  %d\n", r.JobID, r.Status, r.QualityPassed, r.Score, r.Rewrites)
		switch {
		case r.Status == job.StatusFailed:
			errorf("%s", line)
			if r.Error != "" {
				errorf("  %s\n", r.Error)
			}
		case r.QualityPassed:
			okf("%s", line)
		default:
			warnf("%s", line)
		}
	}
}
