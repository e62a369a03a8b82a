package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fiftycompanies/waide-sub001/internal/logger"
	"github.com/fiftycompanies/waide-sub001/internal/scoring"

	"github.com/spf13/cobra"
)

var scoreCmd = &cobra.Command{
	Use:     "score <group>",
	Short:   "按评分组对一组指标试算评分",
	Example: "  pipelinectl score content_quality --input word_count=820 --input heading_count=4",
	Args:    cobra.ExactArgs(1),
	RunE:    runScore,
}

var scoreInputs []string

func init() {
	scoreCmd.Flags().StringArrayVarP(&scoreInputs, "input", "i", nil, "指标 key=value，可重复")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	inputs, err := parseInputs(scoreInputs)
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

	engine := scoring.NewEngine(scoring.NewStore(db), nil, logger.Named("scoring"))
	summary, err := engine.ScoreSubject(cmd.Context(), args[0], inputs)
	if err != nil {
		return err
	}
	printSummary(summary)
	return nil
}

// parseInputs 解析 key=value，值依次尝试数字与布尔，否则保留字符串
func parseInputs(pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("指标格式应为 key=value: %q", pair)
		}
		raw = strings.TrimSpace(raw)
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			inputs[key] = f
		} else if b, err := strconv.ParseBool(raw); err == nil {
			inputs[key] = b
		} else {
			inputs[key] = raw
		}
	}
	return inputs, nil
}

func printSummary(s *scoring.Summary) {
	header("%-24s  %-10s  %8s  %s\n", "ITEM", "CATEGORY", "SCORE", "MATCHED")
	for _, item := range s.Breakdown {
		line := fmt.Sprintf("%-24s  %-10s  %3d/%-4d  %s\n", item.Item, item.Category, item.Awarded, item.MaxScore, item.MatchedLabel)
		switch {
		case item.Awarded == item.MaxScore:
			okf("%s", line)
		case item.Awarded == 0:
			errorf("%s", line)
		default:
			warnf("%s", line)
		}
	}
	if len(s.Skipped) > 0 {
		plainf("跳过: %s\n", strings.Join(s.Skipped, ", "))
	}
	header("合计 %d/%d，归一化 %d\n", s.Total, s.MeasurableMax, s.Normalized)
}
