package api

import (
	"net/http"

	"FactoryTrust/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SignalHandler 信号写入接口；写入成功后由 trigger 触发重算
type SignalHandler struct {
	signalService *service.SignalService
	logger        *logrus.Logger
}

func NewSignalHandler(signalService *service.SignalService, logger *logrus.Logger) *SignalHandler {
	return &SignalHandler{signalService: signalService, logger: logger}
}

// SubmitReview POST /api/factories/:factory_id/reviews
func (h *SignalHandler) SubmitReview(c *gin.Context) {
	factoryID, ok := factoryIDParam(c)
	if !ok {
		return
	}
	var req service.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	review, err := h.signalService.SubmitReview(c.Request.Context(), factoryID, &req)
	if err != nil {
		writeServiceError(c, h.logger, "SubmitReview", err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// CastWebinarVote POST /api/factories/:factory_id/webinar-votes
func (h *SignalHandler) CastWebinarVote(c *gin.Context) {
	factoryID, ok := factoryIDParam(c)
	if !ok {
		return
	}
	var req service.CastWebinarVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	vote, err := h.signalService.CastWebinarVote(c.Request.Context(), factoryID, &req)
	if err != nil {
		writeServiceError(c, h.logger, "CastWebinarVote", err)
		return
	}
	c.JSON(http.StatusCreated, vote)
}

// CreateExpertReview POST /api/factories/:factory_id/expert-reviews
// is_published 缺省为 false，草稿不影响分数
func (h *SignalHandler) CreateExpertReview(c *gin.Context) {
	factoryID, ok := factoryIDParam(c)
	if !ok {
		return
	}
	var req service.CreateExpertReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	review, err := h.signalService.CreateExpertReview(c.Request.Context(), factoryID, &req)
	if err != nil {
		writeServiceError(c, h.logger, "CreateExpertReview", err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// PublishExpertReview POST /api/expert-reviews/:id/publish
func (h *SignalHandler) PublishExpertReview(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	review, err := h.signalService.PublishExpertReview(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, h.logger, "PublishExpertReview", err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// RefreshAIVerification PUT /api/factories/:factory_id/ai-verification
func (h *SignalHandler) RefreshAIVerification(c *gin.Context) {
	factoryID, ok := factoryIDParam(c)
	if !ok {
		return
	}
	var req service.RefreshAIVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	v, err := h.signalService.RefreshAIVerification(c.Request.Context(), factoryID, &req)
	if err != nil {
		writeServiceError(c, h.logger, "RefreshAIVerification", err)
		return
	}
	c.JSON(http.StatusOK, v)
}
