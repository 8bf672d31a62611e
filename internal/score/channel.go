package score

import (
	"fmt"

	"FactoryTrust/internal/model"

	"github.com/shopspring/decimal"
)

const (
	verifiedPurchaseWeight   = 2
	unverifiedPurchaseWeight = 1
)

var (
	decOne  = decimal.NewFromInt(1)
	decFour = decimal.NewFromInt(4)
	decFive = decimal.NewFromInt(5)
)

// reviewMean 单条评价五维度均值（1-5）；任一维度越界则整条评价无效
func reviewMean(r model.Review) (decimal.Decimal, error) {
	sum := 0
	for i, v := range r.Ratings() {
		if v < 1 || v > 5 {
			return decZero, fmt.Errorf("rating #%d = %d out of [1,5]", i, v)
		}
		sum += v
	}
	return decimal.NewFromInt(int64(sum)).Div(decFive), nil
}

// rescaleRating 1-5 映射到 0-100
func rescaleRating(mean decimal.Decimal) decimal.Decimal {
	return mean.Sub(decOne).Div(decFour).Mul(decHundred)
}

// AggregateReviews 买家评价通道：已验证采购权重 2，其余权重 1，按权重平均每条评价的五维度均值后映射到 0-100
func AggregateReviews(reviews []model.Review) (ChannelResult, []Anomaly) {
	var anomalies []Anomaly
	weightedSum, weightSum := decZero, decZero
	count := 0
	for _, r := range reviews {
		mean, err := reviewMean(r)
		if err != nil {
			anomalies = append(anomalies, Anomaly{Channel: ChannelReviews, SignalID: r.ID, Reason: err.Error()})
			continue
		}
		w := decimal.NewFromInt(unverifiedPurchaseWeight)
		if r.IsVerifiedPurchase {
			w = decimal.NewFromInt(verifiedPurchaseWeight)
		}
		weightedSum = weightedSum.Add(mean.Mul(w))
		weightSum = weightSum.Add(w)
		count++
	}
	if count == 0 {
		return ChannelResult{Score: NeutralScore, Count: 0}, anomalies
	}
	return ChannelResult{
		Score: finalize(rescaleRating(weightedSum.Div(weightSum))),
		Count: count,
	}, anomalies
}

// AggregateWebinarVotes 研讨会投票通道：有效投票的算术平均
func AggregateWebinarVotes(votes []model.WebinarVote) (ChannelResult, []Anomaly) {
	var anomalies []Anomaly
	sum := decZero
	count := 0
	for _, v := range votes {
		if !inPercentRange(v.Value) {
			anomalies = append(anomalies, Anomaly{
				Channel:  ChannelWebinars,
				SignalID: v.ID,
				Reason:   fmt.Sprintf("vote value %v out of [0,100]", v.Value),
			})
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(v.Value))
		count++
	}
	if count == 0 {
		return ChannelResult{Score: NeutralScore, Count: 0}, anomalies
	}
	return ChannelResult{
		Score: finalize(sum.Div(decimal.NewFromInt(int64(count)))),
		Count: count,
	}, anomalies
}

// AggregateExperts 专家评审通道：仅统计已发布评审，先求单条三项均值，再对所有评审取平均。
// 未发布评审直接跳过，不算异常。
func AggregateExperts(reviews []model.ExpertReview) (ChannelResult, []Anomaly) {
	var anomalies []Anomaly
	sum := decZero
	count := 0
	for _, r := range reviews {
		if !r.IsPublished {
			continue
		}
		scores := [3]float64{r.InnovationScore, r.ManagementScore, r.PotentialScore}
		valid := true
		perReview := decZero
		for i, s := range scores {
			if !inPercentRange(s) {
				anomalies = append(anomalies, Anomaly{
					Channel:  ChannelExperts,
					SignalID: r.ID,
					Reason:   fmt.Sprintf("expert score #%d = %v out of [0,100]", i, s),
				})
				valid = false
				break
			}
			perReview = perReview.Add(decimal.NewFromFloat(s))
		}
		if !valid {
			continue
		}
		sum = sum.Add(perReview.Div(decimal.NewFromInt(int64(len(scores)))))
		count++
	}
	if count == 0 {
		return ChannelResult{Score: NeutralScore, Count: 0}, anomalies
	}
	return ChannelResult{
		Score: finalize(sum.Div(decimal.NewFromInt(int64(count)))),
		Count: count,
	}, anomalies
}

// CombineHuman 人工原始分 = 0.5*评价 + 0.3*投票 + 0.2*专家
func CombineHuman(reviews, webinars, experts ChannelResult) float64 {
	sum := decimal.NewFromFloat(reviews.Score).Mul(decimal.NewFromFloat(ReviewChannelWeight)).
		Add(decimal.NewFromFloat(webinars.Score).Mul(decimal.NewFromFloat(WebinarChannelWeight))).
		Add(decimal.NewFromFloat(experts.Score).Mul(decimal.NewFromFloat(ExpertChannelWeight)))
	return finalize(sum)
}
