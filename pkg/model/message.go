// pkg/model/message.go
package model

import (
	"encoding/json"
	"fmt"
)

// 前台/后台桥接消息类型
// 除徽章查询为请求/应答外，其余均为发后即忘
const (
	MsgNewNotification     = "NEW_NOTIFICATION"
	MsgGetBadgeCount       = "GET_BADGE_COUNT"
	MsgBadgeCount          = "BADGE_COUNT"
	MsgMarkAllRead         = "MARK_ALL_READ"
	MsgAllMarkedRead       = "ALL_MARKED_READ"
	MsgNotificationClicked = "NOTIFICATION_CLICKED"
	MsgCheckNow            = "CHECK_NOW"
)

// Message 跨上下文消息，线上格式 {type, data}
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage 构造带JSON负载的消息
func NewMessage(msgType string, payload interface{}) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("序列化消息负载失败: %w", err)
	}
	return Message{Type: msgType, Data: data}, nil
}

// Decode 解码消息负载
func (m Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("解析消息负载失败: %w", err)
	}
	return nil
}

// NewNotificationData NEW_NOTIFICATION 负载
type NewNotificationData struct {
	Category Category `json:"category"`
}

// BadgeCountData BADGE_COUNT 应答负载
type BadgeCountData struct {
	Count int64 `json:"count"`
}

// AllMarkedReadData ALL_MARKED_READ 负载
type AllMarkedReadData struct {
	Timestamp int64 `json:"timestamp"`
}

// ClickData NOTIFICATION_CLICKED 负载，携带导航上下文
type ClickData struct {
	Category Category `json:"category"`
	Page     string   `json:"page"`
	ChildID  string   `json:"child_id,omitempty"`
}

// WakeupPayload 推送唤醒事件负载
type WakeupPayload struct {
	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`
	Data map[string]string `json:"data"`
}
