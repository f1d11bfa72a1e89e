// pkg/feed/source.go
package feed

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"ColombeNotify/pkg/model"
)

// Handler 变更事件处理函数
type Handler func(event model.ChangeEvent)

// Subscription 单个集合订阅句柄，仅在整体拆除时批量取消
type Subscription interface {
	Unsubscribe() error
}

// Source 远程文档库变更流的订阅能力
// 线上格式：每条消息为一批 {changeType, documentId, documentData}
type Source interface {
	Subscribe(collection, entityKey string, handler Handler) (Subscription, error)
	OnStatusChange(fn func(online bool))
	Connected() bool
	Close() error
}

// NATSSource 基于NATS的变更流实现
type NATSSource struct {
	conn          *nats.Conn
	subjectPrefix string
	statusFns     []func(online bool)
	mu            sync.RWMutex
}

// NewNATSSource 连接变更流
func NewNATSSource(url, clientName, subjectPrefix string) (*NATSSource, error) {
	source := &NATSSource{subjectPrefix: subjectPrefix}

	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // 无限重连
		// 首次连接失败不报错，后台持续重连，进程照常启动
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("变更流连接断开: %v", err)
			source.notifyStatus(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Println("变更流重新连接成功")
			source.notifyStatus(true)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接变更流失败: %w", err)
	}

	source.conn = nc
	return source, nil
}

// Subscribe 订阅指定集合按实体键过滤的变更
func (s *NATSSource) Subscribe(collection, entityKey string, handler Handler) (Subscription, error) {
	subject := s.subjectFor(collection, entityKey)

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		// 每条消息是一批变更
		var batch []model.ChangeEvent
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			// 兼容单条变更
			var single model.ChangeEvent
			if err2 := json.Unmarshal(msg.Data, &single); err2 != nil {
				log.Printf("解析变更批次失败 (%s): %v", subject, err)
				return
			}
			batch = []model.ChangeEvent{single}
		}

		for _, event := range batch {
			handler(event)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("订阅 %s 失败: %w", subject, err)
	}

	log.Printf("已订阅变更流: %s", subject)
	return sub, nil
}

// subjectFor 集合+实体键对应的主题
func (s *NATSSource) subjectFor(collection, entityKey string) string {
	key := sanitizeToken(entityKey)
	if key == "" {
		key = "all"
	}
	return fmt.Sprintf("%s.%s.%s", s.subjectPrefix, sanitizeToken(collection), key)
}

// sanitizeToken 清理主题记号中的非法字符
func sanitizeToken(token string) string {
	token = strings.TrimSpace(token)
	token = strings.ReplaceAll(token, " ", "_")
	token = strings.ReplaceAll(token, ".", "_")
	token = strings.ReplaceAll(token, "*", "_")
	token = strings.ReplaceAll(token, ">", "_")
	return token
}

// OnStatusChange 注册连接状态变化回调
func (s *NATSSource) OnStatusChange(fn func(online bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFns = append(s.statusFns, fn)
}

func (s *NATSSource) notifyStatus(online bool) {
	s.mu.RLock()
	fns := make([]func(bool), len(s.statusFns))
	copy(fns, s.statusFns)
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Connected 检查连接状态
func (s *NATSSource) Connected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Close 关闭连接
func (s *NATSSource) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
