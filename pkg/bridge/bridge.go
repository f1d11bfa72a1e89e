// pkg/bridge/bridge.go
package bridge

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"ColombeNotify/pkg/model"
)

// HandlerFunc 桥接消息处理函数，返回非nil表示应答（仅徽章查询使用）
type HandlerFunc func(msg model.Message) *model.Message

// Bridge 前台/后台消息桥
// 两个执行上下文不共享内存，只通过这里和持久化存储协调状态；
// 除徽章查询为请求/应答外，所有消息发后即忘。
type Bridge struct {
	transport    Transport
	localSubject string // 本侧收件主题
	peerSubject  string // 对侧收件主题

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	unsub    func() error
}

// NewBridge 创建消息桥
func NewBridge(transport Transport, localSubject, peerSubject string) *Bridge {
	return &Bridge{
		transport:    transport,
		localSubject: localSubject,
		peerSubject:  peerSubject,
		handlers:     make(map[string]HandlerFunc),
	}
}

// Handle 注册消息类型的处理函数
func (b *Bridge) Handle(msgType string, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[msgType] = fn
}

// Listen 开始接收对侧消息
func (b *Bridge) Listen() error {
	unsub, err := b.transport.Subscribe(b.localSubject, func(data []byte, reply func([]byte)) {
		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("解析桥接消息失败: %v", err)
			return
		}

		b.mu.RLock()
		handler, ok := b.handlers[msg.Type]
		b.mu.RUnlock()

		if !ok {
			log.Printf("未处理的桥接消息类型: %s", msg.Type)
			return
		}

		resp := handler(msg)
		if resp != nil && reply != nil {
			payload, err := json.Marshal(resp)
			if err != nil {
				log.Printf("序列化应答失败: %v", err)
				return
			}
			reply(payload)
		}
	})
	if err != nil {
		return fmt.Errorf("监听桥接主题失败: %w", err)
	}

	b.unsub = unsub
	log.Printf("桥接监听中: %s", b.localSubject)
	return nil
}

// Post 发后即忘地发给对侧
func (b *Bridge) Post(msg model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化桥接消息失败: %w", err)
	}
	return b.transport.Publish(b.peerSubject, payload)
}

// RequestBadgeCount 向对侧查询未读数，单次应答关联
func (b *Bridge) RequestBadgeCount(timeout time.Duration) (int64, error) {
	req, err := model.NewMessage(model.MsgGetBadgeCount, nil)
	if err != nil {
		return 0, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("序列化徽章查询失败: %w", err)
	}

	respData, err := b.transport.Request(b.peerSubject, payload, timeout)
	if err != nil {
		return 0, fmt.Errorf("徽章查询失败: %w", err)
	}

	var resp model.Message
	if err := json.Unmarshal(respData, &resp); err != nil {
		return 0, fmt.Errorf("解析徽章应答失败: %w", err)
	}
	if resp.Type != model.MsgBadgeCount {
		return 0, fmt.Errorf("意外的应答类型: %s", resp.Type)
	}

	var data model.BadgeCountData
	if err := resp.Decode(&data); err != nil {
		return 0, err
	}
	return data.Count, nil
}

// Close 停止监听
func (b *Bridge) Close() error {
	if b.unsub != nil {
		if err := b.unsub(); err != nil {
			return err
		}
		b.unsub = nil
	}
	return nil
}
