package score

import (
	"FactoryTrust/internal/model"
)

// Snapshot 一次重算所需的全部信号（同一个一致性读取中取出）
type Snapshot struct {
	FactoryID     uint64
	Reviews       []model.Review
	WebinarVotes  []model.WebinarVote
	ExpertReviews []model.ExpertReview
	Verification  *model.AIVerification
}

// Result 一次完整计算的全部中间量与最终分
type Result struct {
	Reviews    ChannelResult `json:"reviews"`
	Webinars   ChannelResult `json:"webinars"`
	Experts    ChannelResult `json:"experts"`
	HumanRaw   float64       `json:"human_raw_score"`
	AIRaw      float64       `json:"ai_raw_score"`
	Dimensions Dimensions    `json:"dimensions"`
	Mixed
	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

// Compute 对信号快照完整跑一遍 通道聚合 → 人工合成 / AI 合成 → 系数混合。
// 纯函数：只依赖 snapshot 与 aiCoefficient，不读取任何历史分数。
func Compute(snapshot Snapshot, aiCoefficient float64) Result {
	reviews, reviewAnomalies := AggregateReviews(snapshot.Reviews)
	webinars, voteAnomalies := AggregateWebinarVotes(snapshot.WebinarVotes)
	experts, expertAnomalies := AggregateExperts(snapshot.ExpertReviews)

	human := CombineHuman(reviews, webinars, experts)
	ai, dims := CombineAI(snapshot.Verification, snapshot.Reviews)

	anomalies := make([]Anomaly, 0, len(reviewAnomalies)+len(voteAnomalies)+len(expertAnomalies))
	anomalies = append(anomalies, reviewAnomalies...)
	anomalies = append(anomalies, voteAnomalies...)
	anomalies = append(anomalies, expertAnomalies...)

	return Result{
		Reviews:    reviews,
		Webinars:   webinars,
		Experts:    experts,
		HumanRaw:   human,
		AIRaw:      ai,
		Dimensions: dims,
		Mixed:      Mix(ai, human, aiCoefficient),
		Anomalies:  anomalies,
	}
}
