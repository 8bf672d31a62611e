package repository

import (
	"context"
	"errors"

	"FactoryTrust/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScoreRepository 工厂信任分记录仓储
type ScoreRepository interface {
	// Upsert 单条语句整行覆盖分数记录（失败时旧记录保持不变）
	Upsert(ctx context.Context, rec *model.FactoryScoreRecord) error
	// GetByFactoryID 读取分数记录；从未计算过时返回 nil, nil
	GetByFactoryID(ctx context.Context, factoryID uint64) (*model.FactoryScoreRecord, error)
	// List 按总分降序分页
	List(ctx context.Context, filter ScoreFilter, page, pageSize int) ([]*model.FactoryScoreRecord, int64, error)
	// ListFactoryIDs 已有分数记录的工厂 ID
	ListFactoryIDs(ctx context.Context) ([]uint64, error)
}

// ScoreFilter 分数列表筛选
type ScoreFilter struct {
	MinTotal *float64 // 总分下限
	MaxTotal *float64 // 总分上限
}

type scoreRepository struct {
	db *gorm.DB
}

func NewScoreRepository(db *gorm.DB) ScoreRepository {
	return &scoreRepository{db: db}
}

func (r *scoreRepository) Upsert(ctx context.Context, rec *model.FactoryScoreRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "factory_id"}},
		UpdateAll: true,
	}).Create(rec).Error
}

func (r *scoreRepository) GetByFactoryID(ctx context.Context, factoryID uint64) (*model.FactoryScoreRecord, error) {
	var rec model.FactoryScoreRecord
	if err := r.db.WithContext(ctx).Where("factory_id = ?", factoryID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *scoreRepository) List(ctx context.Context, filter ScoreFilter, page, pageSize int) ([]*model.FactoryScoreRecord, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	db := r.db.WithContext(ctx).Model(&model.FactoryScoreRecord{})
	if filter.MinTotal != nil {
		db = db.Where("total_score >= ?", *filter.MinTotal)
	}
	if filter.MaxTotal != nil {
		db = db.Where("total_score <= ?", *filter.MaxTotal)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.FactoryScoreRecord
	if err := db.Order("total_score DESC").Order("factory_id ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *scoreRepository) ListFactoryIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	if err := r.db.WithContext(ctx).Model(&model.FactoryScoreRecord{}).
		Order("factory_id ASC").Pluck("factory_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
