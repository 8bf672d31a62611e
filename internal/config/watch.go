package config

import (
	"math"
	"sync/atomic"

	"FactoryTrust/internal/score"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ScoreSettings 运行期可热更新的 AI 系数；每次重算时读取，不在历史记录里固化
type ScoreSettings struct {
	bits atomic.Uint64
}

// NewScoreSettings 创建系数持有者，a 需已通过校验
func NewScoreSettings(a float64) (*ScoreSettings, error) {
	s := &ScoreSettings{}
	if err := s.SetAICoefficient(a); err != nil {
		return nil, err
	}
	return s, nil
}

// AICoefficient 当前 AI 系数
func (s *ScoreSettings) AICoefficient() float64 {
	return math.Float64frombits(s.bits.Load())
}

// SetAICoefficient 校验后替换系数；非法值直接拒绝，保留原值
func (s *ScoreSettings) SetAICoefficient(a float64) error {
	if err := score.ValidateCoefficient(a); err != nil {
		return err
	}
	s.bits.Store(math.Float64bits(a))
	return nil
}

// WatchScoreSettings 监听配置文件变化并热更新 AI 系数（需先调用 LoadConfig）
func WatchScoreSettings(settings *ScoreSettings, logger *logrus.Logger) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		applyReload(settings, viper.GetFloat64("score.ai_coefficient"), e.Name, logger)
	})
	viper.WatchConfig()
}

func applyReload(settings *ScoreSettings, next float64, source string, logger *logrus.Logger) {
	prev := settings.AICoefficient()
	if next == prev {
		return
	}
	if err := settings.SetAICoefficient(next); err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"file":     source,
			"current":  prev,
			"rejected": next,
		}).Warn("配置热更新：AI 系数非法，保留原值")
		return
	}
	logger.WithFields(logrus.Fields{
		"file": source,
		"from": prev,
		"to":   next,
	}).Info("配置热更新：AI 系数已生效，下次重算使用新值")
}
