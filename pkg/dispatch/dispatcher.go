// pkg/dispatch/dispatcher.go
package dispatch

import (
	"log"

	"ColombeNotify/pkg/model"
)

// OSNotification 系统级通知调用参数
type OSNotification struct {
	Title              string            `json:"title"`
	Body               string            `json:"body"`
	Icon               string            `json:"icon,omitempty"`
	Badge              string            `json:"badge,omitempty"`
	Tag                string            `json:"tag"` // 同类别通知默认合并替换
	Data               map[string]string `json:"data,omitempty"`
	RequireInteraction bool              `json:"requireInteraction"`
	Renotify           bool              `json:"renotify"`
	Vibrate            []int             `json:"vibrate,omitempty"`
	Actions            []Action          `json:"actions,omitempty"`
}

// Action 通知上的操作按钮
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// OSNotifier 系统通知表面
type OSNotifier interface {
	Show(notification OSNotification) error
}

// BadgeSink 应用徽章表面
type BadgeSink interface {
	Supported() bool
	SetBadge(count int64) error
	ClearBadge() error
}

// BridgePoster 跨上下文消息通道
type BridgePoster interface {
	Post(msg model.Message) error
}

// Dispatcher 投递分发器
// 把已定稿通知扇出到四个相互独立的尽力而为表面：
// 系统通知、徽章、应用内列表、跨上下文通道；单个表面失败不阻塞其余。
type Dispatcher struct {
	notifier  OSNotifier
	badge     BadgeSink
	list      *ListSink
	bridge    BridgePoster
	icon      string
	badgeIcon string
}

// NewDispatcher 创建分发器，不需要的表面传nil
func NewDispatcher(notifier OSNotifier, badge BadgeSink, list *ListSink, bridge BridgePoster) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		badge:    badge,
		list:     list,
		bridge:   bridge,
	}
}

// SetIcons 配置通知图标
func (d *Dispatcher) SetIcons(icon, badgeIcon string) {
	d.icon = icon
	d.badgeIcon = badgeIcon
}

// List 应用内列表表面
func (d *Dispatcher) List() *ListSink {
	return d.list
}

// Deliver 扇出单条通知记录
func (d *Dispatcher) Deliver(record model.NotificationRecord, unread int64) {
	// 系统通知表面
	if d.notifier != nil {
		osn := OSNotification{
			Title:              record.Title,
			Body:               record.Body,
			Icon:               d.icon,
			Badge:              d.badgeIcon,
			Tag:                string(record.Category),
			Data:               record.Context,
			RequireInteraction: true,
			Renotify:           true,
			Vibrate:            []int{200, 100, 200},
			Actions: []Action{
				{Action: "view", Title: "👁️ Voir"},
				{Action: "dismiss", Title: "❌ Fermer"},
			},
		}
		if err := d.notifier.Show(osn); err != nil {
			log.Printf("系统通知投递失败: %v", err)
		}
	}

	// 徽章表面
	d.UpdateBadge(unread)

	// 应用内列表表面
	if d.list != nil {
		d.list.Prepend(record)
	}

	// 跨上下文通道
	if d.bridge != nil {
		msg, err := model.NewMessage(model.MsgNewNotification, model.NewNotificationData{Category: record.Category})
		if err == nil {
			if err := d.bridge.Post(msg); err != nil {
				log.Printf("跨上下文消息投递失败: %v", err)
			}
		}
	}
}

// UpdateBadge 更新徽章为指定未读数，0时清除
func (d *Dispatcher) UpdateBadge(unread int64) {
	if d.badge == nil {
		return
	}
	if !d.badge.Supported() {
		log.Println("平台不支持徽章，跳过")
		return
	}

	var err error
	if unread > 0 {
		err = d.badge.SetBadge(unread)
	} else {
		err = d.badge.ClearBadge()
	}
	if err != nil {
		log.Printf("更新徽章失败: %v", err)
	}
}
