package score

import (
	"github.com/shopspring/decimal"
)

// Mixed 系数混合结果
type Mixed struct {
	AIContribution    float64 `json:"ai_contribution"`
	HumanContribution float64 `json:"human_contribution"`
	TotalScore        float64 `json:"total_score"`
}

// Mix 按 AI 系数 a（人工系数为 1-a）把两个原始分折算为贡献分并求和。
// a 由调用方显式传入，调用前应先通过 ValidateCoefficient。
func Mix(aiRaw, humanRaw, a float64) Mixed {
	coef := decimal.NewFromFloat(a)
	ai := round1(decimal.NewFromFloat(aiRaw).Mul(coef))
	human := round1(decimal.NewFromFloat(humanRaw).Mul(decimal.NewFromInt(1).Sub(coef)))
	return Mixed{
		AIContribution:    ai.InexactFloat64(),
		HumanContribution: human.InexactFloat64(),
		TotalScore:        finalize(ai.Add(human)),
	}
}
