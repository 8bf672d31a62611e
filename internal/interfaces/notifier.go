package interfaces

import (
	"context"
	"time"
)

// ScoreChangedEvent 分数变动事件（推送给外部消息集成）
type ScoreChangedEvent struct {
	FactoryID      uint64    `json:"factory_id"`
	PreviousTotal  *float64  `json:"previous_total"` // 首次计算时为 nil
	TotalScore     float64   `json:"total_score"`
	AIRawScore     float64   `json:"ai_raw_score"`
	HumanRawScore  float64   `json:"human_raw_score"`
	LastComputedAt time.Time `json:"last_computed_at"`
}

// ScoreNotifier 分数变动通知；实现方自行决定是否推送
type ScoreNotifier interface {
	NotifyScoreChanged(ctx context.Context, evt ScoreChangedEvent) error
}
