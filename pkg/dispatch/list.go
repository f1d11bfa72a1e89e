// pkg/dispatch/list.go
package dispatch

import (
	"sync"

	"ColombeNotify/pkg/model"
)

// Observer 应用内列表观察者回调
type Observer func(record model.NotificationRecord)

// ListSink 应用内通知列表表面
// 新记录前插，观察者按注册顺序同步收到回调
type ListSink struct {
	mu        sync.Mutex
	records   []model.NotificationRecord
	maxSize   int
	observers []Observer
	nextID    int
	obsIDs    []int
}

// NewListSink 创建列表表面
func NewListSink(maxSize int) *ListSink {
	if maxSize <= 0 {
		maxSize = 200
	}
	return &ListSink{maxSize: maxSize}
}

// Prepend 前插一条记录并按注册顺序通知观察者
func (l *ListSink) Prepend(record model.NotificationRecord) {
	l.mu.Lock()
	l.records = append([]model.NotificationRecord{record}, l.records...)
	if len(l.records) > l.maxSize {
		l.records = l.records[:l.maxSize]
	}
	observers := make([]Observer, len(l.observers))
	copy(observers, l.observers)
	l.mu.Unlock()

	for _, observer := range observers {
		observer(record)
	}
}

// Subscribe 注册观察者，返回注销函数
func (l *ListSink) Subscribe(observer Observer) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.observers = append(l.observers, observer)
	l.obsIDs = append(l.obsIDs, id)
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, obsID := range l.obsIDs {
			if obsID == id {
				l.observers = append(l.observers[:i], l.observers[i+1:]...)
				l.obsIDs = append(l.obsIDs[:i], l.obsIDs[i+1:]...)
				return
			}
		}
	}
}

// Records 当前列表快照，最新在前
func (l *ListSink) Records() []model.NotificationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.NotificationRecord, len(l.records))
	copy(out, l.records)
	return out
}

// ObserverCount 当前注册的观察者数量
func (l *ListSink) ObserverCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.observers)
}
