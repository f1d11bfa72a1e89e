// pkg/bridge/transport.go
package bridge

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Transport 跨上下文消息传输能力
// Subscribe处理函数收到reply非nil时表示对端在等待应答
type Transport interface {
	Publish(subject string, data []byte) error
	Request(subject string, data []byte, timeout time.Duration) ([]byte, error)
	Subscribe(subject string, handler func(data []byte, reply func([]byte))) (func() error, error)
	Close() error
}

// NATSTransport 基于NATS请求/应答的传输实现
type NATSTransport struct {
	conn *nats.Conn
}

// NewNATSTransport 连接桥接总线
func NewNATSTransport(url, clientName string) (*NATSTransport, error) {
	nc, err := nats.Connect(url,
		nats.Name(clientName),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("桥接连接断开: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Println("桥接重新连接成功")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("连接桥接总线失败: %w", err)
	}
	return &NATSTransport{conn: nc}, nil
}

// Publish 发后即忘
func (t *NATSTransport) Publish(subject string, data []byte) error {
	if err := t.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("发布到 %s 失败: %w", subject, err)
	}
	return nil
}

// Request 单次请求/应答
func (t *NATSTransport) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	msg, err := t.conn.Request(subject, data, timeout)
	if err != nil {
		return nil, fmt.Errorf("请求 %s 失败: %w", subject, err)
	}
	return msg.Data, nil
}

// Subscribe 订阅主题
func (t *NATSTransport) Subscribe(subject string, handler func(data []byte, reply func([]byte))) (func() error, error) {
	sub, err := t.conn.Subscribe(subject, func(msg *nats.Msg) {
		var reply func([]byte)
		if msg.Reply != "" {
			reply = func(data []byte) {
				if err := msg.Respond(data); err != nil {
					log.Printf("应答 %s 失败: %v", subject, err)
				}
			}
		}
		handler(msg.Data, reply)
	})
	if err != nil {
		return nil, fmt.Errorf("订阅 %s 失败: %w", subject, err)
	}
	return sub.Unsubscribe, nil
}

// Close 关闭连接
func (t *NATSTransport) Close() error {
	if t.conn != nil {
		t.conn.Close()
	}
	return nil
}

// loopbackHandler 带身份标识的订阅，注销按标识而非位置
type loopbackHandler struct {
	id int
	fn func(data []byte, reply func([]byte))
}

// LoopbackTransport 进程内回环传输，测试和单进程部署用
type LoopbackTransport struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string][]loopbackHandler
}

// NewLoopbackTransport 创建回环传输
func NewLoopbackTransport() *LoopbackTransport {
	return &LoopbackTransport{
		handlers: make(map[string][]loopbackHandler),
	}
}

// Publish 同步派发给所有订阅者
func (t *LoopbackTransport) Publish(subject string, data []byte) error {
	t.mu.RLock()
	handlers := append([]loopbackHandler{}, t.handlers[subject]...)
	t.mu.RUnlock()

	for _, handler := range handlers {
		handler.fn(data, nil)
	}
	return nil
}

// Request 同步请求第一个订阅者并等待应答
func (t *LoopbackTransport) Request(subject string, data []byte, timeout time.Duration) ([]byte, error) {
	t.mu.RLock()
	handlers := t.handlers[subject]
	t.mu.RUnlock()

	if len(handlers) == 0 {
		return nil, fmt.Errorf("主题 %s 无订阅者", subject)
	}

	replyChan := make(chan []byte, 1)
	handlers[0].fn(data, func(resp []byte) {
		select {
		case replyChan <- resp:
		default:
		}
	})

	select {
	case resp := <-replyChan:
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("请求 %s 超时", subject)
	}
}

// Subscribe 注册订阅，注销按身份标识删除，之前的注销不会使其失效
func (t *LoopbackTransport) Subscribe(subject string, handler func(data []byte, reply func([]byte))) (func() error, error) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.handlers[subject] = append(t.handlers[subject], loopbackHandler{id: id, fn: handler})
	t.mu.Unlock()

	return func() error {
		t.mu.Lock()
		defer t.mu.Unlock()
		handlers := t.handlers[subject]
		for i, h := range handlers {
			if h.id == id {
				t.handlers[subject] = append(handlers[:i], handlers[i+1:]...)
				return nil
			}
		}
		return nil
	}, nil
}

// Close 清空订阅
func (t *LoopbackTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = make(map[string][]loopbackHandler)
	return nil
}
