package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"FactoryTrust/internal/model"
	"FactoryTrust/internal/score"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SignalRepository 信号存储（评价、研讨会投票、专家评审、AI 核验）
// 引擎每次都读取工厂的全量信号，不分页
type SignalRepository interface {
	// CreateReview 写入一条买家评价
	CreateReview(ctx context.Context, review *model.Review) error
	// CreateWebinarVote 写入一条研讨会投票
	CreateWebinarVote(ctx context.Context, vote *model.WebinarVote) error
	// CreateExpertReview 写入一条专家评审（可未发布）
	CreateExpertReview(ctx context.Context, review *model.ExpertReview) error
	// PublishExpertReview 将专家评审置为已发布；不存在时返回 gorm.ErrRecordNotFound
	PublishExpertReview(ctx context.Context, id uint64, at time.Time) (*model.ExpertReview, error)
	// UpsertAIVerification 覆盖工厂当前的 AI 核验记录
	UpsertAIVerification(ctx context.Context, v *model.AIVerification) error

	// ListReviews 工厂全部评价
	ListReviews(ctx context.Context, factoryID uint64) ([]model.Review, error)
	// ListWebinarVotes 工厂全部投票
	ListWebinarVotes(ctx context.Context, factoryID uint64) ([]model.WebinarVote, error)
	// ListPublishedExpertReviews 工厂已发布的专家评审
	ListPublishedExpertReviews(ctx context.Context, factoryID uint64) ([]model.ExpertReview, error)
	// GetAIVerification 工厂当前 AI 核验记录；无记录时返回 nil, nil
	GetAIVerification(ctx context.Context, factoryID uint64) (*model.AIVerification, error)

	// ReadSnapshot 在同一事务内读出一次重算需要的全部信号
	ReadSnapshot(ctx context.Context, factoryID uint64) (score.Snapshot, error)
	// ListFactoryIDs 有任意信号的工厂 ID（供批量重算）
	ListFactoryIDs(ctx context.Context) ([]uint64, error)
}

type signalRepository struct {
	db *gorm.DB
}

// NewSignalRepository 创建 SignalRepository 实例
func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

func (r *signalRepository) CreateReview(ctx context.Context, review *model.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *signalRepository) CreateWebinarVote(ctx context.Context, vote *model.WebinarVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *signalRepository) CreateExpertReview(ctx context.Context, review *model.ExpertReview) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *signalRepository) PublishExpertReview(ctx context.Context, id uint64, at time.Time) (*model.ExpertReview, error) {
	var review model.ExpertReview
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&review).Error; err != nil {
			return err
		}
		if review.IsPublished {
			return nil
		}
		if err := tx.Model(&review).Updates(map[string]interface{}{
			"is_published": true,
			"published_at": at,
		}).Error; err != nil {
			return fmt.Errorf("发布专家评审失败: %w", err)
		}
		return tx.Where("id = ?", id).First(&review).Error
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *signalRepository) UpsertAIVerification(ctx context.Context, v *model.AIVerification) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "factory_id"}},
		UpdateAll: true,
	}).Create(v).Error
}

func (r *signalRepository) ListReviews(ctx context.Context, factoryID uint64) ([]model.Review, error) {
	var reviews []model.Review
	if err := r.db.WithContext(ctx).
		Where("factory_id = ?", factoryID).
		Order("id ASC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *signalRepository) ListWebinarVotes(ctx context.Context, factoryID uint64) ([]model.WebinarVote, error) {
	var votes []model.WebinarVote
	if err := r.db.WithContext(ctx).
		Where("factory_id = ?", factoryID).
		Order("id ASC").
		Find(&votes).Error; err != nil {
		return nil, err
	}
	return votes, nil
}

func (r *signalRepository) ListPublishedExpertReviews(ctx context.Context, factoryID uint64) ([]model.ExpertReview, error) {
	var reviews []model.ExpertReview
	if err := r.db.WithContext(ctx).
		Where("factory_id = ? AND is_published = ?", factoryID, true).
		Order("id ASC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *signalRepository) GetAIVerification(ctx context.Context, factoryID uint64) (*model.AIVerification, error) {
	var v model.AIVerification
	if err := r.db.WithContext(ctx).Where("factory_id = ?", factoryID).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// snapshotTxOptions 读快照用只读可重复读事务，四类信号来自同一时间点
var snapshotTxOptions = sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

func (r *signalRepository) ReadSnapshot(ctx context.Context, factoryID uint64) (score.Snapshot, error) {
	snap := score.Snapshot{FactoryID: factoryID}
	opts := snapshotTxOptions
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &signalRepository{db: tx}
		var err error
		if snap.Reviews, err = txRepo.ListReviews(ctx, factoryID); err != nil {
			return fmt.Errorf("读取评价失败: %w", err)
		}
		if snap.WebinarVotes, err = txRepo.ListWebinarVotes(ctx, factoryID); err != nil {
			return fmt.Errorf("读取投票失败: %w", err)
		}
		if snap.ExpertReviews, err = txRepo.ListPublishedExpertReviews(ctx, factoryID); err != nil {
			return fmt.Errorf("读取专家评审失败: %w", err)
		}
		if snap.Verification, err = txRepo.GetAIVerification(ctx, factoryID); err != nil {
			return fmt.Errorf("读取AI核验失败: %w", err)
		}
		return nil
	}, &opts)
	if err != nil {
		return score.Snapshot{}, err
	}
	return snap, nil
}

func (r *signalRepository) ListFactoryIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Raw(`
		SELECT factory_id FROM reviews
		UNION SELECT factory_id FROM webinar_votes
		UNION SELECT factory_id FROM expert_reviews
		UNION SELECT factory_id FROM ai_verifications
		ORDER BY factory_id`).Scan(&ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
