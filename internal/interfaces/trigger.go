package interfaces

import (
	"context"

	"FactoryTrust/internal/model"
)

// RecomputeTrigger 信号写入后触发工厂分数重算（同步或异步实现）
type RecomputeTrigger interface {
	Trigger(ctx context.Context, factoryID uint64) error
}

// ScoreRecomputer 对单个工厂做一次完整重算并落库
type ScoreRecomputer interface {
	RecomputeFactoryScore(ctx context.Context, factoryID uint64) (*model.FactoryScoreRecord, error)
}

// CoefficientProvider 在计算时提供当前 AI 系数
type CoefficientProvider interface {
	AICoefficient() float64
}
