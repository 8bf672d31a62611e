// Package notify 把分数变动事件推送到外部消息集成（运营/工厂提醒）的 webhook
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"FactoryTrust/internal/interfaces"
	"FactoryTrust/internal/utils/httpclient"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventTypeScoreChanged webhook 事件类型
const EventTypeScoreChanged = "factory.score.changed"

// Client 消息集成 webhook 客户端
type Client struct {
	webhookURL string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

// Config webhook 客户端配置
type Config struct {
	WebhookURL string
	Token      string
	Timeout    int // 秒
	Proxy      string
}

// NewClient 创建 webhook 客户端
func NewClient(cfg Config, logger *logrus.Logger) *Client {
	return &Client{
		webhookURL: strings.TrimSuffix(cfg.WebhookURL, "/"),
		token:      cfg.Token,
		httpClient: httpclient.NewHTTPClient(httpclient.Options{Timeout: cfg.Timeout, Proxy: cfg.Proxy, UserAgent: "FactoryTrust-ScoreNotify/1.0"}, logger),
		logger:     logger,
	}
}

// envelope webhook 请求体
type envelope struct {
	ID   string                       `json:"id"`
	Type string                       `json:"type"`
	Data interfaces.ScoreChangedEvent `json:"data"`
}

type errorResponse struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SendScoreChanged 推送一次分数变动事件；同一事件带唯一 ID，接收方可据此去重
func (c *Client) SendScoreChanged(ctx context.Context, evt interfaces.ScoreChangedEvent) error {
	if c.webhookURL == "" {
		return fmt.Errorf("notify webhook 未配置")
	}
	id := uuid.NewString()
	body, err := json.Marshal(envelope{ID: id, Type: EventTypeScoreChanged, Data: evt})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", id)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("factory_id", evt.FactoryID).Warn("notify webhook 请求失败")
		return fmt.Errorf("notify webhook 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		var result errorResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &result) == nil && result.Message != "" {
			msg = result.Message
		}
		c.logger.WithFields(logrus.Fields{
			"status":     resp.StatusCode,
			"message":    msg,
			"factory_id": evt.FactoryID,
		}).Warn("notify webhook 返回错误")
		return fmt.Errorf("notify webhook 错误 %d: %s", resp.StatusCode, msg)
	}
	c.logger.WithFields(logrus.Fields{
		"factory_id":  evt.FactoryID,
		"total_score": evt.TotalScore,
		"event_id":    id,
	}).Debug("notify webhook 推送成功")
	return nil
}
