package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册信号写入与分数接口
func RegisterRoutes(r gin.IRouter, signals *SignalHandler, scores *ScoreHandler) {
	g := r.Group("/api")

	// 信号写入（写入后触发重算）
	g.POST("/factories/:factory_id/reviews", signals.SubmitReview)
	g.POST("/factories/:factory_id/webinar-votes", signals.CastWebinarVote)
	g.POST("/factories/:factory_id/expert-reviews", signals.CreateExpertReview)
	g.POST("/expert-reviews/:id/publish", signals.PublishExpertReview)
	g.PUT("/factories/:factory_id/ai-verification", signals.RefreshAIVerification)

	// 分数
	g.GET("/factories/:factory_id/score", scores.GetScore)
	g.POST("/factories/:factory_id/score/recompute", scores.Recompute)
	g.GET("/factories/:factory_id/score/preview", scores.Preview)
	g.GET("/scores", scores.ListScores)
	g.POST("/scores/recompute-all", scores.RecomputeAll)
}
