package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fiftycompanies/waide-sub001/internal/ai"
	"github.com/fiftycompanies/waide-sub001/internal/config"
	"github.com/fiftycompanies/waide-sub001/internal/scoring"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// stubModel 按模型名返回固定输出
type stubModel struct{}

func (stubModel) ChatCompletion(_ context.Context, req *ai.ChatCompletionRequest) (*ai.ChatCompletionResponse, error) {
	out := `{"title": "春季露营指南", "content": "带上帐篷和睡袋，选择背风的营地。"}`
	if req.Model == "gate-model" {
		out = `{"score": 88, "feedback": "结构清晰"}`
	}
	return &ai.ChatCompletionResponse{
		Model:   req.Model,
		Content: out,
		Usage:   ai.Usage{PromptTokens: 20, CompletionTokens: 40, TotalTokens: 60},
	}, nil
}

func (stubModel) Name() string { return "stub" }
func (stubModel) Close() error { return nil }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func newTestRouter(t *testing.T) (*gin.Engine, *AppContainer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:api_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(Models()...))

	cfg := &config.Config{
		Auth: config.AuthConfig{Disabled: true},
		Pipeline: config.PipelineConfig{
			QualityGate:      "llm",
			QualityThreshold: 70,
			MaxRewrites:      2,
			BatchSize:        5,
		},
		Scoring: config.ScoringConfig{CacheTTL: 5 * time.Minute},
	}

	c, err := InitContainer(db, nil, cfg, stubModel{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(c.Engine.Wait)

	return SetupRouter(c), c
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-a")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func publishPrompt(t *testing.T, r http.Handler, role, task, model, body string) {
	t.Helper()
	w, _ := doJSON(t, r, http.MethodPost, "/api/prompts/"+role+"/"+task+"/versions", map[string]any{
		"body":  body,
		"model": model,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealthAndReady(t *testing.T) {
	r, _ := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), ServiceName)

	w, _ = doJSON(t, r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "connected")
	assert.Empty(t, w.Header().Get(RequestIDHeader), "探针请求不分配请求 ID")
}

func TestRequestIDPropagation(t *testing.T) {
	r, _ := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodGet, "/api/scoring/none/criteria", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/scoring/none/criteria", nil)
	req.Header.Set("X-Tenant-ID", "tenant-a")
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Code)

	w, env = doJSON(t, r, http.MethodDelete, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", env.Code)
}

func TestInvocationEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/invocations", map[string]any{
		"agentRole": "COPYWRITER",
		"task":      "draft",
	})
	assert.Equal(t, http.StatusNotFound, w.Code, "没有模板时返回 404")

	publishPrompt(t, r, "COPYWRITER", "draft", "writer-model", "写一篇关于 {{topic}} 的文章")

	w, env := doJSON(t, r, http.MethodPost, "/api/invocations", map[string]any{
		"agentRole": "COPYWRITER",
		"task":      "draft",
		"context":   map[string]any{"topic": "露营"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), "春季露营指南")
}

func TestChainEndpoint(t *testing.T) {
	r, c := newTestRouter(t)
	publishPrompt(t, r, "COPYWRITER", "draft", "writer-model", "写一篇关于 {{topic}} 的文章")

	w, env := doJSON(t, r, http.MethodPost, "/api/chains", map[string]any{
		"steps": []map[string]any{
			{"agentRole": "COPYWRITER", "task": "draft", "resultKey": "draft", "context": map[string]any{"topic": "露营"}},
			{"agentRole": "EDITOR", "task": "polish", "resultKey": "polished"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		ChainID     string         `json:"chainId"`
		Results     map[string]any `json:"results"`
		FailedSteps []int          `json:"failedSteps"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Len(t, result.Results, 2, "失败的步骤也有结果")
	assert.Equal(t, []int{1}, result.FailedSteps)

	c.Engine.Wait()
	w, env = doJSON(t, r, http.MethodGet, "/api/chains/"+result.ChainID+"/logs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	assert.Equal(t, 2, logs.Total)

	w, env = doJSON(t, r, http.MethodPost, "/api/chains", map[string]any{"steps": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", env.Code)
}

func TestJobLifecycleEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)
	publishPrompt(t, r, "COPYWRITER", "draft", "writer-model", "写一篇关于 {{topic}} 的文章")
	publishPrompt(t, r, "QUALITY_GATE", "evaluate", "gate-model", "请评估：{{content}}")

	w, env := doJSON(t, r, http.MethodPost, "/api/jobs", map[string]any{
		"jobType": "blog_post",
		"input":   map[string]any{"topic": "露营"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "PENDING", created.Status)

	w, env = doJSON(t, r, http.MethodPost, "/api/jobs/"+created.ID+"/process", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var done struct {
		Status            string         `json:"status"`
		QualityGateResult string         `json:"qualityGateResult"`
		QualityGateScore  float64        `json:"qualityGateScore"`
		OutputPayload     map[string]any `json:"outputPayload"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &done))
	assert.Equal(t, "DONE", done.Status)
	assert.Equal(t, "pass", done.QualityGateResult)
	assert.InDelta(t, 88.0, done.QualityGateScore, 0.001)
	assert.Equal(t, true, done.OutputPayload["quality_passed"])

	w, env = doJSON(t, r, http.MethodGet, "/api/jobs/"+created.ID+"/contents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "approved")

	// 已结束的作业不能再取消或重复执行
	w, _ = doJSON(t, r, http.MethodPost, "/api/jobs/"+created.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w, _ = doJSON(t, r, http.MethodPost, "/api/jobs/"+created.ID+"/process", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestJobTenantIsolation(t *testing.T) {
	r, _ := newTestRouter(t)

	w, env := doJSON(t, r, http.MethodPost, "/api/jobs", map[string]any{"jobType": "blog_post"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+created.ID, nil)
	req.Header.Set("X-Tenant-ID", "tenant-b")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnqueueWithoutQueue(t *testing.T) {
	r, _ := newTestRouter(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/jobs", map[string]any{
		"jobType": "blog_post",
		"enqueue": true,
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestScoringEndpoints(t *testing.T) {
	r, c := newTestRouter(t)
	ctx := context.Background()

	require.NoError(t, c.Criteria.Upsert(ctx, &scoring.Criterion{
		CategoryGroup: "content_quality",
		Category:      "length",
		Item:          "word_count",
		Label:         "篇幅",
		MaxScore:      10,
		Rules: []scoring.Rule{
			{Condition: ">=500", ScorePct: 100, Label: "充足"},
			{Condition: ">=200", ScorePct: 60, Label: "一般"},
			{Condition: "default", ScorePct: 0, Label: "过短"},
		},
	}))

	w, env := doJSON(t, r, http.MethodGet, "/api/scoring/content_quality/criteria", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "word_count")

	w, env = doJSON(t, r, http.MethodPost, "/api/scoring/content_quality/score", map[string]any{
		"inputs": map[string]any{"word_count": 320},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary scoring.Summary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 6, summary.Total)
	assert.Equal(t, 60, summary.Normalized)

	// 新增评分项在缓存失效前不可见
	require.NoError(t, c.Criteria.Upsert(ctx, &scoring.Criterion{
		CategoryGroup: "content_quality",
		Category:      "structure",
		Item:          "heading_count",
		Label:         "小标题",
		MaxScore:      10,
		Rules:         []scoring.Rule{{Condition: ">=2", ScorePct: 100}, {Condition: "default", ScorePct: 0}},
	}))
	_, env = doJSON(t, r, http.MethodGet, "/api/scoring/content_quality/criteria", nil)
	assert.NotContains(t, string(env.Data), "heading_count")

	w, _ = doJSON(t, r, http.MethodPost, "/api/scoring/cache/invalidate", map[string]any{"group": "content_quality"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, env = doJSON(t, r, http.MethodGet, "/api/scoring/content_quality/criteria", nil)
	assert.Contains(t, string(env.Data), "heading_count")
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Tenant-ID")
}

func TestInitContainerRequiresSecret(t *testing.T) {
	dsn := fmt.Sprintf("file:api_secret_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	_, err = InitContainer(db, nil, &config.Config{}, stubModel{}, nil)
	assert.Error(t, err)

	_, err = InitContainer(db, nil, &config.Config{
		Auth:     config.AuthConfig{Disabled: true},
		Pipeline: config.PipelineConfig{QualityGate: "unknown"},
	}, stubModel{}, nil)
	assert.Error(t, err)
}

func TestNormalizeRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.internal:6380")

	got := NormalizeRedisConfig(config.RedisConfig{Mode: " Standalone "})
	assert.Equal(t, "standalone", got.Mode)
	assert.Equal(t, "redis.internal", got.Host)
	assert.Equal(t, 6380, got.Port)
	assert.Equal(t, 10, got.PoolSize)

	got = NormalizeRedisConfig(config.RedisConfig{Host: "cache", Port: 7000})
	assert.Equal(t, "cache", got.Host)
	assert.Equal(t, 7000, got.Port)
}

func TestCORSAllowList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("CORS_ALLOW_ORIGINS", "https://console.example.com, https://ops.example.com")

	r := gin.New()
	r.Use(CORS())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "pong", w.Body.String())
}
