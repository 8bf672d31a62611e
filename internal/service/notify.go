package service

import (
	"context"
	"math"

	"FactoryTrust/internal/interfaces"
	"FactoryTrust/internal/notify"

	"github.com/sirupsen/logrus"
)

// NoopNotifier 未配置 webhook 时使用，不推送
type NoopNotifier struct{}

func (NoopNotifier) NotifyScoreChanged(context.Context, interfaces.ScoreChangedEvent) error {
	return nil
}

// WebhookNotifier 总分变化达到 minDelta 才推送；首次计分总是推送
type WebhookNotifier struct {
	client   *notify.Client
	minDelta float64
	logger   *logrus.Logger
}

func NewWebhookNotifier(client *notify.Client, minDelta float64, logger *logrus.Logger) *WebhookNotifier {
	return &WebhookNotifier{client: client, minDelta: minDelta, logger: logger}
}

func (n *WebhookNotifier) NotifyScoreChanged(ctx context.Context, evt interfaces.ScoreChangedEvent) error {
	if !shouldNotify(evt, n.minDelta) {
		n.logger.WithField("factory_id", evt.FactoryID).Debug("分数变化低于阈值，不推送")
		return nil
	}
	return n.client.SendScoreChanged(ctx, evt)
}

func shouldNotify(evt interfaces.ScoreChangedEvent, minDelta float64) bool {
	if evt.PreviousTotal == nil {
		return true
	}
	delta := math.Abs(evt.TotalScore - *evt.PreviousTotal)
	if minDelta <= 0 {
		return delta > 0
	}
	// 分数都保留一位小数，比较前去掉浮点误差
	return math.Round(delta*10) >= math.Round(minDelta*10)
}
