package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"FactoryTrust/internal/interfaces"
	"FactoryTrust/internal/model"
	"FactoryTrust/internal/repository"
	"FactoryTrust/internal/score"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

var (
	// ErrNotFound 目标对象不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidSignal 信号或参数不合法
	ErrInvalidSignal = errors.New("invalid signal")
)

// ScoreService 工厂 FTGI 综合信任分的重算、查询与预览
type ScoreService struct {
	signalRepo  repository.SignalRepository
	scoreRepo   repository.ScoreRepository
	coefficient interfaces.CoefficientProvider
	notifier    interfaces.ScoreNotifier
	logger      *logrus.Logger
	now         func() time.Time
	locks       *factoryLocks
}

// lockStripes 分段锁条数，不随工厂数增长
const lockStripes = 64

// factoryLocks 按 factoryID 取模的固定分段锁；同一工厂总落在同一把锁上
type factoryLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *factoryLocks) forFactory(factoryID uint64) *sync.Mutex {
	return &l.stripes[factoryID%lockStripes]
}

// NewScoreService 创建分数服务；notifier 为 nil 时不推送
func NewScoreService(signalRepo repository.SignalRepository, scoreRepo repository.ScoreRepository, coefficient interfaces.CoefficientProvider, notifier interfaces.ScoreNotifier, logger *logrus.Logger) *ScoreService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &ScoreService{
		signalRepo:  signalRepo,
		scoreRepo:   scoreRepo,
		coefficient: coefficient,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
		locks:       &factoryLocks{},
	}
}

// WithClock 替换时钟（测试用）
func (s *ScoreService) WithClock(now func() time.Time) *ScoreService {
	s.now = now
	return s
}

// RecomputeFactoryScore 读取工厂全部信号完整重算一次并整行覆盖落库。
// 同一工厂的重算（写入触发、手动、批量）串行执行；推送在释放锁之后进行，失败只记日志。
// 落库失败时返回错误，旧记录保持不变。
func (s *ScoreService) RecomputeFactoryScore(ctx context.Context, factoryID uint64) (*model.FactoryScoreRecord, error) {
	rec, evt, err := s.recomputeLocked(ctx, factoryID)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.NotifyScoreChanged(ctx, evt); err != nil {
		s.logger.WithError(err).WithField("factory_id", factoryID).Warn("分数变动推送失败")
	}
	return rec, nil
}

func (s *ScoreService) recomputeLocked(ctx context.Context, factoryID uint64) (*model.FactoryScoreRecord, interfaces.ScoreChangedEvent, error) {
	mu := s.locks.forFactory(factoryID)
	mu.Lock()
	defer mu.Unlock()

	var evt interfaces.ScoreChangedEvent
	a := s.coefficient.AICoefficient()
	if err := score.ValidateCoefficient(a); err != nil {
		return nil, evt, err
	}

	snapshot, err := s.signalRepo.ReadSnapshot(ctx, factoryID)
	if err != nil {
		return nil, evt, fmt.Errorf("读取工厂%d信号失败: %w", factoryID, err)
	}

	result := score.Compute(snapshot, a)
	for _, an := range result.Anomalies {
		s.logger.WithFields(logrus.Fields{
			"factory_id": factoryID,
			"channel":    an.Channel,
			"signal_id":  an.SignalID,
			"reason":     an.Reason,
		}).Warn("信号异常，已排除")
	}

	rec, err := s.buildRecord(factoryID, result)
	if err != nil {
		return nil, evt, err
	}

	previous, err := s.scoreRepo.GetByFactoryID(ctx, factoryID)
	if err != nil {
		return nil, evt, fmt.Errorf("读取工厂%d旧分数失败: %w", factoryID, err)
	}

	if err := s.scoreRepo.Upsert(ctx, rec); err != nil {
		s.logger.WithError(err).WithField("factory_id", factoryID).Error("分数落库失败，保留旧记录")
		return nil, evt, fmt.Errorf("工厂%d分数落库失败: %w", factoryID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"factory_id":     factoryID,
		"total_score":    rec.TotalScore,
		"ai_raw_score":   rec.AIRawScore,
		"human_raw":      rec.HumanRawScore,
		"ai_coefficient": a,
	}).Info("工厂分数重算完成")

	evt = interfaces.ScoreChangedEvent{
		FactoryID:      factoryID,
		TotalScore:     rec.TotalScore,
		AIRawScore:     rec.AIRawScore,
		HumanRawScore:  rec.HumanRawScore,
		LastComputedAt: rec.LastComputedAt,
	}
	if previous != nil {
		prev := previous.TotalScore
		evt.PreviousTotal = &prev
	}
	return rec, evt, nil
}

func (s *ScoreService) buildRecord(factoryID uint64, result score.Result) (*model.FactoryScoreRecord, error) {
	breakdown, err := json.Marshal(result.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("序列化维度明细失败: %w", err)
	}
	return &model.FactoryScoreRecord{
		FactoryID:          factoryID,
		ScoreFromReviews:   result.Reviews.Score,
		ScoreFromWebinars:  result.Webinars.Score,
		ScoreFromExperts:   result.Experts.Score,
		HumanRawScore:      result.HumanRaw,
		AIRawScore:         result.AIRaw,
		AIContribution:     result.AIContribution,
		HumanContribution:  result.HumanContribution,
		TotalScore:         result.TotalScore,
		ReviewCount:        result.Reviews.Count,
		WebinarVoteCount:   result.Webinars.Count,
		ExpertReviewCount:  result.Experts.Count,
		DimensionBreakdown: datatypes.JSON(breakdown),
		LastComputedAt:     s.now().UTC(),
	}, nil
}

// GetFactoryScore 读取工厂当前分数；从未计算过时返回 nil, nil
func (s *ScoreService) GetFactoryScore(ctx context.Context, factoryID uint64) (*model.FactoryScoreRecord, error) {
	rec, err := s.scoreRepo.GetByFactoryID(ctx, factoryID)
	if err != nil {
		return nil, fmt.Errorf("读取工厂%d分数失败: %w", factoryID, err)
	}
	return rec, nil
}

// CoefficientPreview 以给定系数对已存原始分重新混合的结果（不落库）
type CoefficientPreview struct {
	FactoryID          uint64  `json:"factoryId"`
	AICoefficient      float64 `json:"aiCoefficient"`
	AIRawScore         float64 `json:"aiRawScore"`
	HumanRawScore      float64 `json:"humanRawScore"`
	AIContribution     float64 `json:"aiContribution"`
	HumanContribution  float64 `json:"humanContribution"`
	TotalScore         float64 `json:"totalScore"`
	CurrentTotalScore  float64 `json:"currentTotalScore"`
	CurrentCoefficient float64 `json:"currentCoefficient"`
}

// PreviewCoefficient 用候选系数 a 预览工厂总分；工厂未计算过时返回 ErrNotFound
func (s *ScoreService) PreviewCoefficient(ctx context.Context, factoryID uint64, a float64) (*CoefficientPreview, error) {
	if err := score.ValidateCoefficient(a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	rec, err := s.GetFactoryScore(ctx, factoryID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("工厂%d尚无分数: %w", factoryID, ErrNotFound)
	}
	mixed := score.Mix(rec.AIRawScore, rec.HumanRawScore, a)
	return &CoefficientPreview{
		FactoryID:          factoryID,
		AICoefficient:      a,
		AIRawScore:         rec.AIRawScore,
		HumanRawScore:      rec.HumanRawScore,
		AIContribution:     mixed.AIContribution,
		HumanContribution:  mixed.HumanContribution,
		TotalScore:         mixed.TotalScore,
		CurrentTotalScore:  rec.TotalScore,
		CurrentCoefficient: s.coefficient.AICoefficient(),
	}, nil
}

// ScoreListResult 分数排行分页结果
type ScoreListResult struct {
	List     []*model.FactoryScoreRecord `json:"list"`
	Total    int64                       `json:"total"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"pageSize"`
}

// ListScores 按总分降序分页
func (s *ScoreService) ListScores(ctx context.Context, filter repository.ScoreFilter, page, pageSize int) (*ScoreListResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	list, total, err := s.scoreRepo.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.FactoryScoreRecord{}
	}
	return &ScoreListResult{List: list, Total: total, Page: page, PageSize: pageSize}, nil
}

// RecomputeSummary 批量重算汇总
type RecomputeSummary struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	FailedIDs []uint64 `json:"failedIds,omitempty"`
}

// RecomputeAll 重算所有有信号或已有分数的工厂；单个工厂失败不中断整次运行
func (s *ScoreService) RecomputeAll(ctx context.Context) (*RecomputeSummary, error) {
	signalIDs, err := s.signalRepo.ListFactoryIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("拉取有信号的工厂失败: %w", err)
	}
	scoredIDs, err := s.scoreRepo.ListFactoryIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("拉取已计分工厂失败: %w", err)
	}
	ids := mergeIDs(signalIDs, scoredIDs)

	summary := &RecomputeSummary{Total: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if _, err := s.RecomputeFactoryScore(ctx, id); err != nil {
			s.logger.WithError(err).WithField("factory_id", id).Warn("批量重算：单个工厂失败，跳过")
			summary.Failed++
			summary.FailedIDs = append(summary.FailedIDs, id)
			continue
		}
		summary.Succeeded++
	}
	s.logger.Infof("批量重算完成：共%d个工厂，成功%d，失败%d", summary.Total, summary.Succeeded, summary.Failed)
	return summary, nil
}

// mergeIDs 合并两个升序 ID 列表并去重
func mergeIDs(a, b []uint64) []uint64 {
	out := make([]uint64, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var next uint64
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			next = a[i]
			i++
		case i >= len(a) || b[j] < a[i]:
			next = b[j]
			j++
		default:
			next = a[i]
			i++
			j++
		}
		if len(out) == 0 || out[len(out)-1] != next {
			out = append(out, next)
		}
	}
	return out
}
