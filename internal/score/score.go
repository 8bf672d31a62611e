// Package score 实现 FTGI 综合信任分的纯计算部分：三个人工通道聚合、人工分合成、
// AI 五维度合成与 AI/人工系数混合。包内不做任何 I/O，输入相同则输出相同。
package score

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// NeutralScore 无数据时的中性默认分（缺少数据不等于不信任）
const NeutralScore = 50.0

// 人工三通道权重
const (
	ReviewChannelWeight  = 0.50
	WebinarChannelWeight = 0.30
	ExpertChannelWeight  = 0.20
)

// AI 五维度权重
const (
	TrustComplianceWeight     = 0.20
	FulfillmentAgilityWeight  = 0.30
	MarketInsightWeight       = 0.25
	EcosystemOpennessWeight   = 0.15
	CommunityReputationWeight = 0.10
)

var (
	decZero      = decimal.Zero
	decHundred   = decimal.NewFromInt(100)
	decNeutral   = decimal.NewFromFloat(NeutralScore)
	humanWeights = []float64{ReviewChannelWeight, WebinarChannelWeight, ExpertChannelWeight}
	aiWeights    = []float64{
		TrustComplianceWeight,
		FulfillmentAgilityWeight,
		MarketInsightWeight,
		EcosystemOpennessWeight,
		CommunityReputationWeight,
	}
)

// ChannelResult 单个人工通道的聚合结果：0-100 子分 + 参与计算的样本数
type ChannelResult struct {
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

// Anomaly 被剔除的畸形信号，由调用方记录日志并另行处理
type Anomaly struct {
	Channel  string `json:"channel"`
	SignalID uint64 `json:"signal_id"`
	Reason   string `json:"reason"`
}

const (
	ChannelReviews  = "reviews"
	ChannelWebinars = "webinar_votes"
	ChannelExperts  = "expert_reviews"
)

// ValidateWeights 校验人工三通道与 AI 五维度的权重和都严格等于 1
func ValidateWeights() error {
	if err := checkWeightSum("human channel", humanWeights); err != nil {
		return err
	}
	return checkWeightSum("ai dimension", aiWeights)
}

func checkWeightSum(name string, weights []float64) error {
	sum := decZero
	for _, w := range weights {
		if w <= 0 || w >= 1 {
			return fmt.Errorf("%s weight %v out of (0,1)", name, w)
		}
		sum = sum.Add(decimal.NewFromFloat(w))
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s weights sum to %s, want 1", name, sum.String())
	}
	return nil
}

// ValidateCoefficient AI 系数必须落在开区间 (0,1)
func ValidateCoefficient(a float64) error {
	if math.IsNaN(a) || a <= 0 || a >= 1 {
		return fmt.Errorf("ai coefficient %v out of (0,1)", a)
	}
	return nil
}

func clamp(d decimal.Decimal) decimal.Decimal {
	if d.LessThan(decZero) {
		return decZero
	}
	if d.GreaterThan(decHundred) {
		return decHundred
	}
	return d
}

// finalize 截断到 [0,100] 并保留一位小数（四舍五入，远离零）
func finalize(d decimal.Decimal) float64 {
	return clamp(d).Round(1).InexactFloat64()
}

func round1(d decimal.Decimal) decimal.Decimal {
	return d.Round(1)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func inPercentRange(v float64) bool {
	return isFinite(v) && v >= 0 && v <= 100
}
