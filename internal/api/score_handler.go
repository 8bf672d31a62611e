package api

import (
	"errors"
	"net/http"
	"strconv"

	"FactoryTrust/internal/repository"
	"FactoryTrust/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ScoreHandler 工厂信任分查询、重算与系数预览接口
type ScoreHandler struct {
	scoreService *service.ScoreService
	logger       *logrus.Logger
}

// NewScoreHandler 创建 ScoreHandler
func NewScoreHandler(scoreService *service.ScoreService, logger *logrus.Logger) *ScoreHandler {
	return &ScoreHandler{scoreService: scoreService, logger: logger}
}

// GetScore 工厂当前分数 GET /api/factories/:factory_id/score
// 从未计算过时返回 status=not_scored；last_computed_at 之后写入的信号可能尚未计入
func (h *ScoreHandler) GetScore(c *gin.Context) {
	factoryID, ok := factoryIDParam(c)
	if !ok {
		return
	}
	rec, err := h.scoreService.GetFactoryScore(c.Request.Context(), factoryID)
	if err != nil {
		h.logger.WithError(err).Error("GetScore failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusOK, gin.H{"factory_id": factoryID, "status": "not_scored", "score": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"factory_id": factoryID, "status": "scored", "score": rec})
}

// Recompute 立即重算并返回新分数 POST /api/factories/:factory_id/score/recompute
func (h *ScoreHandler) Recompute(c *gin.Context) {
	factoryID, ok := factoryIDParam(c)
	if !ok {
		return
	}
	rec, err := h.scoreService.RecomputeFactoryScore(c.Request.Context(), factoryID)
	if err != nil {
		h.logger.WithError(err).WithField("factory_id", factoryID).Error("Recompute failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"factory_id": factoryID, "status": "scored", "score": rec})
}

// Preview 以候选系数预览总分（不落库）GET /api/factories/:factory_id/score/preview?coefficient=0.6
func (h *ScoreHandler) Preview(c *gin.Context) {
	factoryID, ok := factoryIDParam(c)
	if !ok {
		return
	}
	raw := c.Query("coefficient")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coefficient is required"})
		return
	}
	a, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coefficient: " + err.Error()})
		return
	}
	result, err := h.scoreService.PreviewCoefficient(c.Request.Context(), factoryID, a)
	if err != nil {
		writeServiceError(c, h.logger, "Preview", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListScores 分数排行 GET /api/scores?page=1&page_size=20&min_total=60&max_total=90
func (h *ScoreHandler) ListScores(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	var filter repository.ScoreFilter
	for key, dst := range map[string]**float64{"min_total": &filter.MinTotal, "max_total": &filter.MaxTotal} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
			return
		}
		*dst = &v
	}

	result, err := h.scoreService.ListScores(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("ListScores failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RecomputeAll 批量重算（系数调整后使用）POST /api/scores/recompute-all
func (h *ScoreHandler) RecomputeAll(c *gin.Context) {
	summary, err := h.scoreService.RecomputeAll(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("RecomputeAll failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func factoryIDParam(c *gin.Context) (uint64, bool) {
	return uintParam(c, "factory_id")
}

func uintParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

// writeServiceError 按哨兵错误映射状态码
func writeServiceError(c *gin.Context, logger *logrus.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSignal):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.WithError(err).Error(op + " failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
