package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"FactoryTrust/internal/interfaces"
	"FactoryTrust/internal/model"
	"FactoryTrust/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MinExpertSummaryLen 专家评审摘要最少字符数
const MinExpertSummaryLen = 20

// SubmitReviewRequest 买家评价 body
type SubmitReviewRequest struct {
	OrderID             *uint64 `json:"order_id"`
	RatingOverall       int     `json:"rating_overall" binding:"min=1,max=5"`
	RatingCommunication int     `json:"rating_communication" binding:"min=1,max=5"`
	RatingQuality       int     `json:"rating_quality" binding:"min=1,max=5"`
	RatingLeadTime      int     `json:"rating_lead_time" binding:"min=1,max=5"`
	RatingService       int     `json:"rating_service" binding:"min=1,max=5"`
	Comment             *string `json:"comment"`
	IsVerifiedPurchase  bool    `json:"is_verified_purchase"`
}

// CastWebinarVoteRequest 研讨会投票 body
type CastWebinarVoteRequest struct {
	WebinarID uint64  `json:"webinar_id" binding:"required"`
	VoterID   uint64  `json:"voter_id"`
	Value     float64 `json:"value" binding:"min=0,max=100"`
}

// CreateExpertReviewRequest 专家评审 body
type CreateExpertReviewRequest struct {
	ExpertID        uint64  `json:"expert_id"`
	InnovationScore float64 `json:"innovation_score" binding:"min=0,max=100"`
	ManagementScore float64 `json:"management_score" binding:"min=0,max=100"`
	PotentialScore  float64 `json:"potential_score" binding:"min=0,max=100"`
	Summary         string  `json:"summary" binding:"required"`
	IsPublished     bool    `json:"is_published"`
}

// RefreshAIVerificationRequest AI 核验结果 body；缺省字段按中性处理
type RefreshAIVerificationRequest struct {
	VerificationScore    *float64 `json:"verification_score"`
	CertificationCount   *int     `json:"certification_count"`
	DisputeRate          *float64 `json:"dispute_rate"`
	ResponseRate         *float64 `json:"response_rate"`
	SampleConversionRate *float64 `json:"sample_conversion_rate"`
	ContentAssetCount    *int     `json:"content_asset_count"`
}

// SignalService 信号写入；写入成功后触发所属工厂重算
type SignalService struct {
	repo    repository.SignalRepository
	trigger interfaces.RecomputeTrigger
	logger  *logrus.Logger
	now     func() time.Time
}

// NewSignalService 创建信号服务
func NewSignalService(repo repository.SignalRepository, trigger interfaces.RecomputeTrigger, logger *logrus.Logger) *SignalService {
	return &SignalService{
		repo:    repo,
		trigger: trigger,
		logger:  logger,
		now:     time.Now,
	}
}

// SubmitReview 写入买家评价
func (s *SignalService) SubmitReview(ctx context.Context, factoryID uint64, req *SubmitReviewRequest) (*model.Review, error) {
	if factoryID == 0 {
		return nil, fmt.Errorf("%w: factory_id is required", ErrInvalidSignal)
	}
	ratings := map[string]int{
		"rating_overall":       req.RatingOverall,
		"rating_communication": req.RatingCommunication,
		"rating_quality":       req.RatingQuality,
		"rating_lead_time":     req.RatingLeadTime,
		"rating_service":       req.RatingService,
	}
	for name, v := range ratings {
		if v < 1 || v > 5 {
			return nil, fmt.Errorf("%w: %s must be between 1 and 5, got %d", ErrInvalidSignal, name, v)
		}
	}
	review := &model.Review{
		FactoryID:           factoryID,
		OrderID:             req.OrderID,
		RatingOverall:       req.RatingOverall,
		RatingCommunication: req.RatingCommunication,
		RatingQuality:       req.RatingQuality,
		RatingLeadTime:      req.RatingLeadTime,
		RatingService:       req.RatingService,
		Comment:             req.Comment,
		IsVerifiedPurchase:  req.IsVerifiedPurchase,
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("写入评价失败: %w", err)
	}
	s.fire(ctx, factoryID, "review")
	return review, nil
}

// CastWebinarVote 写入研讨会投票
func (s *SignalService) CastWebinarVote(ctx context.Context, factoryID uint64, req *CastWebinarVoteRequest) (*model.WebinarVote, error) {
	if factoryID == 0 {
		return nil, fmt.Errorf("%w: factory_id is required", ErrInvalidSignal)
	}
	if !validPercent(req.Value) {
		return nil, fmt.Errorf("%w: value must be between 0 and 100, got %v", ErrInvalidSignal, req.Value)
	}
	vote := &model.WebinarVote{
		FactoryID: factoryID,
		WebinarID: req.WebinarID,
		VoterID:   req.VoterID,
		Value:     req.Value,
	}
	if err := s.repo.CreateWebinarVote(ctx, vote); err != nil {
		return nil, fmt.Errorf("写入投票失败: %w", err)
	}
	s.fire(ctx, factoryID, "webinar_vote")
	return vote, nil
}

// CreateExpertReview 写入专家评审；仅已发布的评审会触发重算
func (s *SignalService) CreateExpertReview(ctx context.Context, factoryID uint64, req *CreateExpertReviewRequest) (*model.ExpertReview, error) {
	if factoryID == 0 {
		return nil, fmt.Errorf("%w: factory_id is required", ErrInvalidSignal)
	}
	for name, v := range map[string]float64{
		"innovation_score": req.InnovationScore,
		"management_score": req.ManagementScore,
		"potential_score":  req.PotentialScore,
	} {
		if !validPercent(v) {
			return nil, fmt.Errorf("%w: %s must be between 0 and 100, got %v", ErrInvalidSignal, name, v)
		}
	}
	summary := strings.TrimSpace(req.Summary)
	if utf8.RuneCountInString(summary) < MinExpertSummaryLen {
		return nil, fmt.Errorf("%w: summary must be at least %d characters", ErrInvalidSignal, MinExpertSummaryLen)
	}
	review := &model.ExpertReview{
		FactoryID:       factoryID,
		ExpertID:        req.ExpertID,
		InnovationScore: req.InnovationScore,
		ManagementScore: req.ManagementScore,
		PotentialScore:  req.PotentialScore,
		Summary:         summary,
		IsPublished:     req.IsPublished,
	}
	if req.IsPublished {
		at := s.now().UTC()
		review.PublishedAt = &at
	}
	if err := s.repo.CreateExpertReview(ctx, review); err != nil {
		return nil, fmt.Errorf("写入专家评审失败: %w", err)
	}
	if review.IsPublished {
		s.fire(ctx, factoryID, "expert_review")
	}
	return review, nil
}

// PublishExpertReview 发布专家评审并触发重算
func (s *SignalService) PublishExpertReview(ctx context.Context, id uint64) (*model.ExpertReview, error) {
	review, err := s.repo.PublishExpertReview(ctx, id, s.now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("专家评审%d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("发布专家评审失败: %w", err)
	}
	s.fire(ctx, review.FactoryID, "expert_review_published")
	return review, nil
}

// RefreshAIVerification 覆盖工厂当前的 AI 核验记录
func (s *SignalService) RefreshAIVerification(ctx context.Context, factoryID uint64, req *RefreshAIVerificationRequest) (*model.AIVerification, error) {
	if factoryID == 0 {
		return nil, fmt.Errorf("%w: factory_id is required", ErrInvalidSignal)
	}
	for name, p := range map[string]*float64{
		"verification_score":     req.VerificationScore,
		"dispute_rate":           req.DisputeRate,
		"response_rate":          req.ResponseRate,
		"sample_conversion_rate": req.SampleConversionRate,
	} {
		if p != nil && !validPercent(*p) {
			return nil, fmt.Errorf("%w: %s must be between 0 and 100, got %v", ErrInvalidSignal, name, *p)
		}
	}
	for name, p := range map[string]*int{
		"certification_count": req.CertificationCount,
		"content_asset_count": req.ContentAssetCount,
	} {
		if p != nil && *p < 0 {
			return nil, fmt.Errorf("%w: %s must not be negative", ErrInvalidSignal, name)
		}
	}
	v := &model.AIVerification{
		FactoryID:            factoryID,
		VerificationScore:    req.VerificationScore,
		CertificationCount:   req.CertificationCount,
		DisputeRate:          req.DisputeRate,
		ResponseRate:         req.ResponseRate,
		SampleConversionRate: req.SampleConversionRate,
		ContentAssetCount:    req.ContentAssetCount,
		VerifiedAt:           s.now().UTC(),
	}
	if err := s.repo.UpsertAIVerification(ctx, v); err != nil {
		return nil, fmt.Errorf("写入AI核验失败: %w", err)
	}
	s.fire(ctx, factoryID, "ai_verification")
	return v, nil
}

// fire 信号已提交，重算失败只记日志，不回滚写入
func (s *SignalService) fire(ctx context.Context, factoryID uint64, source string) {
	if err := s.trigger.Trigger(ctx, factoryID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"factory_id": factoryID,
			"source":     source,
		}).Warn("信号已写入，触发重算失败")
	}
}

func validPercent(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0 && v <= 100
}
