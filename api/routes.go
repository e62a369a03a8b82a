package api

import (
	"github.com/fiftycompanies/waide-sub001/api/handlers/invocations"
	"github.com/fiftycompanies/waide-sub001/api/handlers/jobs"
	"github.com/fiftycompanies/waide-sub001/api/handlers/prompts"
	scoringHandlers "github.com/fiftycompanies/waide-sub001/api/handlers/scoring"
	"github.com/fiftycompanies/waide-sub001/internal/auth"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有业务路由
func RegisterRoutes(router *gin.Engine, c *AppContainer) {
	apiGroup := router.Group("/api")
	if c.JWTService != nil {
		apiGroup.Use(auth.AuthMiddleware(c.JWTService))
	} else {
		apiGroup.Use(auth.HeaderTenantMiddleware())
	}
	operatorGuard := auth.RequireRole(auth.RoleOperator)

	registerInvocationRoutes(apiGroup, invocations.NewHandler(c.Engine, c.Orchestrator, c.ExecLogs))
	registerJobRoutes(apiGroup, jobs.NewHandler(c.Jobs, c.Pipeline, c.Contents, c.QueueClient, c.Logger.Named("api")), operatorGuard)
	registerScoringRoutes(apiGroup, scoringHandlers.NewHandler(c.Scoring, c.Invalidator), operatorGuard)
	registerPromptRoutes(apiGroup, prompts.NewHandler(c.Templates, c.Resolver), operatorGuard)
}

func registerInvocationRoutes(apiGroup *gin.RouterGroup, h *invocations.Handler) {
	apiGroup.POST("/invocations", h.RunInvocation)
	apiGroup.GET("/invocations/logs/:id", h.GetLog)

	apiGroup.POST("/chains", h.RunChain)
	apiGroup.GET("/chains/:id/logs", h.ListChainLogs)
}

func registerJobRoutes(apiGroup *gin.RouterGroup, h *jobs.Handler, operatorGuard gin.HandlerFunc) {
	jobsGroup := apiGroup.Group("/jobs")
	{
		jobsGroup.POST("", h.CreateJob)
		jobsGroup.POST("/sweep", operatorGuard, h.SweepJobs)
		jobsGroup.GET("/queue", operatorGuard, h.QueueStats)
		jobsGroup.GET("/:id", h.GetJob)
		jobsGroup.GET("/:id/contents", h.ListContents)
		jobsGroup.POST("/:id/cancel", h.CancelJob)
		jobsGroup.POST("/:id/process", h.ProcessJob)
	}
}

func registerScoringRoutes(apiGroup *gin.RouterGroup, h *scoringHandlers.Handler, operatorGuard gin.HandlerFunc) {
	scoringGroup := apiGroup.Group("/scoring")
	{
		scoringGroup.POST("/cache/invalidate", operatorGuard, h.InvalidateCache)
		scoringGroup.GET("/:group/criteria", h.ListCriteria)
		scoringGroup.POST("/:group/score", h.Score)
	}
}

func registerPromptRoutes(apiGroup *gin.RouterGroup, h *prompts.Handler, operatorGuard gin.HandlerFunc) {
	versions := apiGroup.Group("/prompts/:role/:task/versions")
	{
		versions.GET("", h.ListVersions)
		versions.POST("", operatorGuard, h.Publish)
		versions.POST("/:id/deactivate", operatorGuard, h.Deactivate)
	}
}
