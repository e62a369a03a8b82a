package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/content"
	"github.com/fiftycompanies/waide-sub001/internal/metrics"
	"github.com/fiftycompanies/waide-sub001/internal/quality"

	"github.com/pmezard/go-difflib/difflib"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// 流水线默认参数
const (
	DefaultBatchSize   = 5
	DefaultMaxRewrites = 2
)

// 输出载荷中的键
const (
	OutputContentID     = "content_id"
	OutputRewrites      = "rewrites"
	OutputQualityPassed = "quality_passed"
	OutputQualityScore  = "quality_score"
	OutputGeneration    = "generation"
	OutputCost          = "cost"
	OutputRewriteDiff   = "rewrite_diff"
	OutputChainID       = "chain_id"
)

// Store 流水线使用的作业存储
type Store interface {
	Get(ctx context.Context, id string) (*Job, error)
	MarkInProgress(ctx context.Context, id string) (time.Time, error)
	Finish(ctx context.Context, id string, out Outcome) (time.Time, error)
	ClaimPending(ctx context.Context, jobType, tenantID string, limit int) ([]Job, error)
}

// ContentStore 草稿持久化
type ContentStore interface {
	CreateDraft(ctx context.Context, c *content.GeneratedContent) error
	UpdateBody(ctx context.Context, id, body string) error
	Promote(ctx context.Context, id string, status content.Status, score float64) error
}

// Options 流水线参数
type Options struct {
	BatchSize   int
	MaxRewrites int
	JobTimeout  time.Duration
}

// JobResult 批量扫描中单个作业的结果
type JobResult struct {
	JobID         string  `json:"jobId"`
	Status        Status  `json:"status"`
	QualityPassed bool    `json:"qualityPassed"`
	Score         float64 `json:"score"`
	Rewrites      int     `json:"rewrites"`
	Error         string  `json:"error,omitempty"`
}

// Pipeline 作业流水线：生成 → 保存草稿 → 质检 → 有限次重写 → 结束
type Pipeline struct {
	jobs      Store
	generator Generator
	contents  ContentStore
	gate      quality.Gate
	rewriter  quality.Rewriter
	opts      Options
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewPipeline 创建流水线
func NewPipeline(jobs Store, generator Generator, contents ContentStore, gate quality.Gate, rewriter quality.Rewriter, opts Options, logger *zap.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxRewrites <= 0 || opts.MaxRewrites > DefaultMaxRewrites {
		opts.MaxRewrites = DefaultMaxRewrites
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		jobs:      jobs,
		generator: generator,
		contents:  contents,
		gate:      gate,
		rewriter:  rewriter,
		opts:      opts,
		logger:    logger,
		tracer:    otel.Tracer("github.com/fiftycompanies/waide-sub001/internal/job"),
	}
}

// ProcessJob 执行单个作业，返回时作业一定处于终态
// 执行期间被取消时返回库中的 CANCELLED 作业；只有终态写入失败时返回 error
func (p *Pipeline) ProcessJob(ctx context.Context, j *Job) (*Job, error) {
	if j.Status.Terminal() {
		return j, fmt.Errorf("%w: 作业 %s 已是 %s", ErrInvalidTransition, j.ID, j.Status)
	}
	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}

	ctx, span := p.tracer.Start(ctx, "job.Process", trace.WithAttributes(
		attribute.String("job_id", j.ID),
		attribute.String("job_type", j.JobType),
	))
	defer span.End()

	start := time.Now()
	log := p.logger.With(zap.String("job_id", j.ID), zap.String("job_type", j.JobType))

	// 标记失败不阻塞执行
	if startedAt, err := p.jobs.MarkInProgress(ctx, j.ID); err != nil {
		log.Warn("标记作业执行中失败", zap.Error(err))
	} else {
		j.Status = StatusInProgress
		j.StartedAt = &startedAt
	}

	out := p.run(ctx, j, log)

	// 超时后仍需写入终态
	completedAt, err := p.jobs.Finish(context.WithoutCancel(ctx), j.ID, out)
	if errors.Is(err, ErrInvalidTransition) {
		// 执行期间被外部取消，以库中的终态为准
		if stored, gerr := p.jobs.Get(context.WithoutCancel(ctx), j.ID); gerr == nil && stored.Status.Terminal() {
			log.Info("作业执行期间已被终止，丢弃本次结果",
				zap.String("status", string(stored.Status)),
				zap.String("discarded", string(out.Status)),
			)
			span.SetAttributes(attribute.String("status", string(stored.Status)))
			*j = *stored
			return j, nil
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("写入作业终态失败", zap.Error(err))
		return j, fmt.Errorf("写入作业终态失败: %w", err)
	}
	apply(j, out, completedAt)

	gateLabel := string(out.QualityResult)
	if gateLabel == "" {
		gateLabel = "none"
	}
	metrics.JobsFinishedTotal.WithLabelValues(j.JobType, string(out.Status), gateLabel).Inc()
	metrics.JobDuration.WithLabelValues(j.JobType).Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("status", string(out.Status)),
		attribute.Int("rewrites", out.RetryCount),
	)
	if out.Status == StatusFailed {
		span.SetStatus(codes.Error, out.ErrorMessage)
	}

	log.Info("作业处理完成",
		zap.String("status", string(out.Status)),
		zap.String("quality", gateLabel),
		zap.Int("rewrites", out.RetryCount),
		zap.Duration("duration", time.Since(start)),
	)
	return j, nil
}

// run 计算作业终态，不写库
func (p *Pipeline) run(ctx context.Context, j *Job, log *zap.Logger) Outcome {
	gen, err := p.generator.Generate(ctx, j)
	if err != nil {
		log.Warn("内容生成失败", zap.Error(err))
		return Outcome{Status: StatusFailed, ErrorMessage: "生成失败: " + err.Error()}
	}

	draft := &content.GeneratedContent{
		TenantID: j.TenantID,
		JobID:    j.ID,
		Title:    gen.Title,
		Body:     gen.Body,
		Metadata: draftMetadata(j),
	}
	if err := p.contents.CreateDraft(ctx, draft); err != nil {
		log.Error("保存内容草稿失败", zap.Error(err))
		return Outcome{Status: StatusFailed, ErrorMessage: err.Error()}
	}

	output := map[string]any{
		OutputContentID:  draft.ID,
		OutputGeneration: gen.Data,
		OutputCost:       gen.Cost,
		OutputRewrites:   0,
	}
	if gen.ChainID != "" {
		output[OutputChainID] = gen.ChainID
	}

	verdict, err := p.evaluate(ctx, draft)
	if err != nil {
		// 质检异常：保留草稿，作业照常完成
		log.Warn("质检异常，保留草稿", zap.String("content_id", draft.ID), zap.Error(err))
		output[OutputQualityPassed] = false
		output[OutputQualityScore] = 0.0
		return Outcome{
			Status:        StatusDone,
			Output:        output,
			QualityResult: QualityError,
			QualityScore:  scorePtr(0),
			QualityNotes:  err.Error(),
		}
	}

	rewrites := 0
	if !verdict.Passed {
		original := draft.Body
		final, body, attempts, err := p.rewriteLoop(ctx, draft, verdict)
		rewrites = attempts
		if err != nil {
			// 重写异常：恢复原稿，沿用重写前的质检结论
			log.Warn("重写失败，恢复原稿", zap.Int("attempts", attempts), zap.Error(err))
			if body != original {
				if rerr := p.contents.UpdateBody(context.WithoutCancel(ctx), draft.ID, original); rerr != nil {
					log.Error("恢复原稿失败", zap.String("content_id", draft.ID), zap.Error(rerr))
				}
			}
		} else {
			verdict = final
			if diff := rewriteDiff(original, body); diff != "" {
				output[OutputRewriteDiff] = diff
			}
		}
	}
	metrics.JobRewrites.WithLabelValues(j.JobType).Observe(float64(rewrites))

	if verdict.Passed {
		if err := p.contents.Promote(ctx, draft.ID, content.StatusApproved, verdict.Score); err != nil {
			log.Error("内容状态更新失败", zap.String("content_id", draft.ID), zap.Error(err))
		}
	}

	result := QualityFail
	if verdict.Passed {
		result = QualityPass
	}
	output[OutputRewrites] = rewrites
	output[OutputQualityPassed] = verdict.Passed
	output[OutputQualityScore] = verdict.Score
	return Outcome{
		Status:        StatusDone,
		Output:        output,
		QualityResult: result,
		QualityScore:  scorePtr(verdict.Score),
		QualityNotes:  verdict.Notes,
		RetryCount:    rewrites,
	}
}

// evaluate 质检，panic 转为 error
func (p *Pipeline) evaluate(ctx context.Context, c *content.GeneratedContent) (verdict quality.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("质检 panic: %v", r)
		}
	}()
	return p.gate.Evaluate(ctx, c)
}

// rewriteLoop 按质检意见重写，直到通过或次数用尽
// 返回最终结论、最终正文与已尝试的次数
func (p *Pipeline) rewriteLoop(ctx context.Context, draft *content.GeneratedContent, verdict quality.Verdict) (final quality.Verdict, body string, attempts int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("重写 panic: %v", r)
		}
	}()

	current := *draft
	for attempts < p.opts.MaxRewrites {
		attempts++

		rewritten, rerr := p.rewriter.Rewrite(ctx, &current, verdict)
		if rerr != nil {
			return verdict, current.Body, attempts, fmt.Errorf("第 %d 次重写失败: %w", attempts, rerr)
		}
		if uerr := p.contents.UpdateBody(ctx, draft.ID, rewritten); uerr != nil {
			return verdict, current.Body, attempts, uerr
		}
		current.Body = rewritten

		next, gerr := p.gate.Evaluate(ctx, &current)
		if gerr != nil {
			return verdict, current.Body, attempts, fmt.Errorf("第 %d 次重写后质检失败: %w", attempts, gerr)
		}
		verdict = next
		if verdict.Passed {
			break
		}
	}
	return verdict, current.Body, attempts, nil
}

// SweepPending 认领一批 PENDING 作业并逐个顺序处理，单个作业失败不影响其余
func (p *Pipeline) SweepPending(ctx context.Context, jobType, tenantID string) ([]JobResult, error) {
	jobs, err := p.jobs.ClaimPending(ctx, jobType, tenantID, p.opts.BatchSize)
	if err != nil {
		return nil, err
	}

	results := make([]JobResult, 0, len(jobs))
	for i := range jobs {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("批量处理被中止", zap.Int("processed", len(results)), zap.Error(err))
			break
		}

		j := &jobs[i]
		processed, err := p.ProcessJob(ctx, j)
		res := JobResult{JobID: j.ID, Status: processed.Status, Rewrites: processed.RetryCount}
		if processed.QualityGateScore != nil {
			res.Score = *processed.QualityGateScore
		}
		res.QualityPassed = processed.QualityGateResult == QualityPass
		switch {
		case err != nil:
			res.Error = err.Error()
		case processed.ErrorMessage != "":
			res.Error = processed.ErrorMessage
		}
		results = append(results, res)
	}

	p.logger.Info("批量处理完成",
		zap.String("job_type", jobType),
		zap.String("tenant_id", tenantID),
		zap.Int("claimed", len(jobs)),
		zap.Int("processed", len(results)),
	)
	return results, nil
}

// apply 将终态同步到内存中的作业
func apply(j *Job, out Outcome, completedAt time.Time) {
	j.Status = out.Status
	j.OutputPayload = out.Output
	j.QualityGateResult = out.QualityResult
	j.QualityGateScore = out.QualityScore
	j.QualityGateNotes = out.QualityNotes
	j.RetryCount = out.RetryCount
	j.ErrorMessage = out.ErrorMessage
	j.CompletedAt = &completedAt
}

// draftMetadata 草稿元数据：作业类型与关键词
func draftMetadata(j *Job) datatypes.JSON {
	meta := map[string]any{"job_type": j.JobType}
	if kw, ok := j.InputPayload["keywords"]; ok {
		meta["keywords"] = kw
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// rewriteDiff 原稿与最终稿的 unified diff
func rewriteDiff(original, final string) string {
	if original == final {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(final),
		FromFile: "draft",
		ToFile:   "rewrite",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return diff
}

func scorePtr(v float64) *float64 {
	return &v
}
