// pkg/dispatch/webhook.go
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ColombeNotify/pkg/retry"
)

// WebhookNotifier 通过webhook投递系统通知
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
	policy     retry.Policy
}

// NewWebhookNotifier 创建webhook通知器，默认单次投递不重试
func NewWebhookNotifier(webhookURL string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		policy:     retry.Policy{MaxAttempts: 1},
	}
}

// SetRetryPolicy 配置投递失败的重试策略
func (n *WebhookNotifier) SetRetryPolicy(policy retry.Policy) {
	if policy.MaxAttempts > 0 {
		n.policy = policy
	}
}

// Show 投递单条系统通知，按策略重试后放弃
func (n *WebhookNotifier) Show(notification OSNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("序列化通知失败: %w", err)
	}
	return n.policy.Do(context.Background(), "系统通知投递", func() error {
		return n.post(payload)
	})
}

func (n *WebhookNotifier) post(payload []byte) error {
	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("发送通知失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("通知服务返回异常状态: %d", resp.StatusCode)
	}
	return nil
}

// badgeRequest 徽章投递请求体
type badgeRequest struct {
	Action string `json:"action"` // set 或 clear
	Count  int64  `json:"count"`
}

// WebhookBadge 通过webhook投递应用徽章
// 未配置地址视为平台不支持徽章
type WebhookBadge struct {
	badgeURL string
	client   *http.Client
}

// NewWebhookBadge 创建徽章投递器
func NewWebhookBadge(badgeURL string, timeout time.Duration) *WebhookBadge {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookBadge{
		badgeURL: badgeURL,
		client:   &http.Client{Timeout: timeout},
	}
}

// Supported 平台是否支持徽章
func (b *WebhookBadge) Supported() bool {
	return b.badgeURL != ""
}

// SetBadge 设置徽章数字
func (b *WebhookBadge) SetBadge(count int64) error {
	return b.post(badgeRequest{Action: "set", Count: count})
}

// ClearBadge 清除徽章
func (b *WebhookBadge) ClearBadge() error {
	return b.post(badgeRequest{Action: "clear"})
}

func (b *WebhookBadge) post(req badgeRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("序列化徽章请求失败: %w", err)
	}

	resp, err := b.client.Post(b.badgeURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("发送徽章请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("徽章服务返回异常状态: %d", resp.StatusCode)
	}
	return nil
}
