package model

import (
	"time"

	"gorm.io/datatypes"
)

// FactoryScoreRecord 工厂 FTGI 综合信任分（每个工厂一行）
// 每次重算整行覆盖，不做字段级增量更新；JSON 字段名供展示层与消息集成按名读取
type FactoryScoreRecord struct {
	FactoryID          uint64         `gorm:"column:factory_id;primaryKey;autoIncrement:false;comment:工厂ID" json:"factoryId"`
	ScoreFromReviews   float64        `gorm:"column:score_from_reviews;type:numeric(5,1);not null;comment:买家评价通道分" json:"scoreFromReviews"`
	ScoreFromWebinars  float64        `gorm:"column:score_from_webinars;type:numeric(5,1);not null;comment:研讨会投票通道分" json:"scoreFromWebinars"`
	ScoreFromExperts   float64        `gorm:"column:score_from_experts;type:numeric(5,1);not null;comment:专家评审通道分" json:"scoreFromExperts"`
	HumanRawScore      float64        `gorm:"column:human_raw_score;type:numeric(5,1);not null;comment:人工原始分" json:"humanRawScore"`
	AIRawScore         float64        `gorm:"column:ai_raw_score;type:numeric(5,1);not null;comment:AI原始分" json:"aiRawScore"`
	AIContribution     float64        `gorm:"column:ai_contribution;type:numeric(5,1);not null;comment:AI贡献分" json:"aiContribution"`
	HumanContribution  float64        `gorm:"column:human_contribution;type:numeric(5,1);not null;comment:人工贡献分" json:"humanContribution"`
	TotalScore         float64        `gorm:"column:total_score;type:numeric(5,1);not null;index;comment:总分" json:"totalScore"`
	ReviewCount        int            `gorm:"column:review_count;type:int;not null;default:0;comment:参与计算的评价数" json:"reviewCount"`
	WebinarVoteCount   int            `gorm:"column:webinar_vote_count;type:int;not null;default:0;comment:参与计算的投票数" json:"webinarVoteCount"`
	ExpertReviewCount  int            `gorm:"column:expert_review_count;type:int;not null;default:0;comment:参与计算的专家评审数" json:"expertReviewCount"`
	DimensionBreakdown datatypes.JSON `gorm:"column:dimension_breakdown;type:jsonb;comment:AI五维度明细" json:"dimensionBreakdown"`
	LastComputedAt     time.Time      `gorm:"column:last_computed_at;not null;comment:最近计算时间" json:"lastComputedAt"`
}

func (FactoryScoreRecord) TableName() string { return "factory_score_records" }

// Tables 按依赖顺序返回需要迁移的全部表
func Tables() []interface{} {
	return []interface{}{
		&Review{},
		&WebinarVote{},
		&ExpertReview{},
		&AIVerification{},
		&FactoryScoreRecord{},
	}
}
