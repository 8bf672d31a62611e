package score

import (
	"FactoryTrust/internal/model"

	"github.com/shopspring/decimal"
)

// 维度内部子权重
var (
	// D1 信任与合规：AI 核验分 / 认证饱和度 / 尚未接入信号的占位值
	d1VerificationWeight  = decimal.NewFromFloat(0.5)
	d1CertificationWeight = decimal.NewFromFloat(0.3)
	d1PlaceholderWeight   = decimal.NewFromFloat(0.2)

	// D2 履约敏捷度：响应率 / 打样转化率 / 纠纷率反向项
	d2ResponseWeight   = decimal.NewFromFloat(0.4)
	d2ConversionWeight = decimal.NewFromFloat(0.3)
	d2DisputeWeight    = decimal.NewFromFloat(0.3)

	// D5 社区口碑：平均评分 / 评价数量饱和度
	d5RatingWeight = decimal.NewFromFloat(0.7)
	d5VolumeWeight = decimal.NewFromFloat(0.3)
)

const (
	certificationSaturation = 5
	contentAssetSaturation  = 10
	reviewVolumeSaturation  = 20
	contentBaseline         = 30
	disputePenaltyFactor    = 10
)

// Dimensions AI 五维度得分明细（每项 0-100，一位小数），随分数记录一起落库用于审计
type Dimensions struct {
	TrustCompliance     float64 `json:"trust_compliance"`
	FulfillmentAgility  float64 `json:"fulfillment_agility"`
	MarketInsight       float64 `json:"market_insight"`
	EcosystemOpenness   float64 `json:"ecosystem_openness"`
	CommunityReputation float64 `json:"community_reputation"`
}

// CombineAI 由 AI 核验记录与评价数据计算五个维度并加权得到 AI 原始分。
// v 为 nil 表示工厂尚无核验记录，D1-D3 全部退回中性值；D5 仍读取评价数据。
func CombineAI(v *model.AIVerification, reviews []model.Review) (float64, Dimensions) {
	if v == nil {
		v = &model.AIVerification{}
	}
	d1 := clamp(trustCompliance(v))
	d2 := clamp(fulfillmentAgility(v))
	d3 := clamp(marketInsight(v))
	d4 := decNeutral
	d5 := clamp(communityReputation(reviews))

	raw := d1.Mul(decimal.NewFromFloat(TrustComplianceWeight)).
		Add(d2.Mul(decimal.NewFromFloat(FulfillmentAgilityWeight))).
		Add(d3.Mul(decimal.NewFromFloat(MarketInsightWeight))).
		Add(d4.Mul(decimal.NewFromFloat(EcosystemOpennessWeight))).
		Add(d5.Mul(decimal.NewFromFloat(CommunityReputationWeight)))

	return finalize(raw), Dimensions{
		TrustCompliance:     finalize(d1),
		FulfillmentAgility:  finalize(d2),
		MarketInsight:       finalize(d3),
		EcosystemOpenness:   finalize(d4),
		CommunityReputation: finalize(d5),
	}
}

func trustCompliance(v *model.AIVerification) decimal.Decimal {
	cert := decNeutral
	if v.CertificationCount != nil {
		cert = saturate(*v.CertificationCount, certificationSaturation)
	}
	return percentOrNeutral(v.VerificationScore).Mul(d1VerificationWeight).
		Add(cert.Mul(d1CertificationWeight)).
		Add(decNeutral.Mul(d1PlaceholderWeight))
}

func fulfillmentAgility(v *model.AIVerification) decimal.Decimal {
	dispute := decNeutral
	if v.DisputeRate != nil && isFinite(*v.DisputeRate) {
		rate := decimal.Max(decZero, decimal.NewFromFloat(*v.DisputeRate))
		dispute = decimal.Max(decZero, decHundred.Sub(rate.Mul(decimal.NewFromInt(disputePenaltyFactor))))
	}
	return percentOrNeutral(v.ResponseRate).Mul(d2ResponseWeight).
		Add(percentOrNeutral(v.SampleConversionRate).Mul(d2ConversionWeight)).
		Add(dispute.Mul(d2DisputeWeight))
}

// marketInsight 基线 30 分，内容资产数量在 10 个时饱和到 100
func marketInsight(v *model.AIVerification) decimal.Decimal {
	if v.ContentAssetCount == nil {
		return decNeutral
	}
	span := decHundred.Sub(decimal.NewFromInt(contentBaseline))
	ratio := saturate(*v.ContentAssetCount, contentAssetSaturation).Div(decHundred)
	return decimal.NewFromInt(contentBaseline).Add(span.Mul(ratio))
}

// communityReputation 对评价数据的第二次轻量读取，不区分是否已验证采购
func communityReputation(reviews []model.Review) decimal.Decimal {
	sum := decZero
	n := 0
	for _, r := range reviews {
		mean, err := reviewMean(r)
		if err != nil {
			continue
		}
		sum = sum.Add(mean)
		n++
	}
	if n == 0 {
		return decNeutral
	}
	avg := rescaleRating(sum.Div(decimal.NewFromInt(int64(n))))
	return avg.Mul(d5RatingWeight).Add(saturate(n, reviewVolumeSaturation).Mul(d5VolumeWeight))
}

// saturate min(n/limit, 1) * 100，负数按 0 处理
func saturate(n, limit int) decimal.Decimal {
	if n <= 0 {
		return decZero
	}
	if n >= limit {
		return decHundred
	}
	return decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(int64(limit))).Mul(decHundred)
}

func percentOrNeutral(p *float64) decimal.Decimal {
	if p == nil || !isFinite(*p) {
		return decNeutral
	}
	return clamp(decimal.NewFromFloat(*p))
}
