// pkg/reconcile/reconciler.go
package reconcile

import (
	"log"
	"sync"
	"time"

	"ColombeNotify/pkg/model"
	"ColombeNotify/pkg/store"
)

// 事件记录和作业使用24小时新近性窗口：过旧的候选直接丢弃
// 注意这是新近性过滤而非去重，去重由文档ID和检查点负责
const recencyWindow = 24 * time.Hour

// Emit 已定稿通知的投递回调，unread为落库后的未读数
type Emit func(record model.NotificationRecord, unread int64)

// Reconciler 通知决策引擎
// 候选通知在这里走完资格过滤、去重、新近性判定、落库、徽章重算；
// 离线时候选进入有界队列，恢复在线后按原始顺序重放整条流水线。
type Reconciler struct {
	store *store.Store
	emit  Emit

	mu           sync.Mutex
	online       bool
	offlineQueue []model.Candidate
	offlineCap   int
}

// NewReconciler 创建决策引擎，初始视为在线
func NewReconciler(st *store.Store, offlineCap int, emit Emit) *Reconciler {
	if offlineCap <= 0 {
		offlineCap = 50
	}
	return &Reconciler{
		store:      st,
		emit:       emit,
		online:     true,
		offlineCap: offlineCap,
	}
}

// Process 处理单个候选，返回是否产生了通知记录
func (r *Reconciler) Process(candidate model.Candidate) bool {
	// 1. 类别资格过滤
	if !r.eligible(candidate) {
		return false
	}

	// 离线时入队等待重放
	r.mu.Lock()
	if !r.online {
		r.enqueueOffline(candidate)
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	// 2. 按源文档ID去重：同一文档的重复投递不产生第二条记录
	// 考勤例外：状态修正复用文档ID，带上状态判重，修正能再次送达
	duplicate := false
	if candidate.Category == model.CategoryAttendance {
		duplicate = r.store.HasRecordForDocumentStatus(candidate.Category, candidate.DocumentID, candidate.Context["status"])
	} else {
		duplicate = r.store.HasRecordForDocument(candidate.Category, candidate.DocumentID)
	}
	if duplicate {
		log.Printf("候选重复，跳过: %s/%s", candidate.Category, candidate.DocumentID)
		return false
	}

	// 3. 检查点新近性：早于该类别最近一次成功检查的候选视为已见过
	// （重新订阅会回放历史文档，窗口式判定会导致重复提醒，检查点不会）
	// 等于检查点时间的候选放行，真正的重复由文档ID去重兜底
	if lastSeen, ok := r.store.Checkpoint(candidate.Category); ok {
		if candidate.CreatedAt.Before(lastSeen) {
			return false
		}
	}

	// 4. 构造通知记录
	record := model.NotificationRecord{
		ID:        model.NewRecordID(),
		Category:  candidate.Category,
		Title:     candidate.Title,
		Body:      candidate.Body,
		Context:   candidate.Context,
		Read:      false,
		CreatedAt: time.Now(),
	}
	if record.Title == "" {
		record.Title = model.TitleForCategory(candidate.Category)
	}

	// 5. 落库并推进检查点（检查点只前进不后退）
	r.store.Append(&record)
	if lastSeen, ok := r.store.Checkpoint(candidate.Category); !ok || candidate.CreatedAt.After(lastSeen) {
		r.store.SetCheckpoint(candidate.Category, candidate.CreatedAt)
	}

	// 6. 徽章永远由未读记录数推导，不做独立自增
	unread := r.store.UnreadCount()

	// 7. 投递
	if r.emit != nil {
		r.emit(record, unread)
	}

	log.Printf("通知已创建: %s (%s)", record.ID, record.Category)
	return true
}

// eligible 类别资格过滤
func (r *Reconciler) eligible(candidate model.Candidate) bool {
	if !candidate.Category.Valid() {
		return false
	}

	// 事件记录与作业的新近性窗口
	switch candidate.Category {
	case model.CategoryIncident, model.CategoryHomework:
		if time.Since(candidate.CreatedAt) > recencyWindow {
			return false
		}
	}

	return true
}

// enqueueOffline 候选入离线队列，超限先丢最旧，须持有锁
func (r *Reconciler) enqueueOffline(candidate model.Candidate) {
	r.offlineQueue = append(r.offlineQueue, candidate)
	if len(r.offlineQueue) > r.offlineCap {
		r.offlineQueue = r.offlineQueue[1:]
	}
	log.Printf("离线，候选已入队 (%d/%d)", len(r.offlineQueue), r.offlineCap)
}

// SetOnline 更新在线标志；离线恢复为在线时重放排队候选
func (r *Reconciler) SetOnline(online bool) {
	r.mu.Lock()
	wasOnline := r.online
	r.online = online
	r.mu.Unlock()

	if online && !wasOnline {
		log.Println("连接恢复，重放离线候选")
		r.replayOffline()
	}
}

// Online 当前在线标志
func (r *Reconciler) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// OfflineQueueLen 离线队列长度
func (r *Reconciler) OfflineQueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.offlineQueue)
}

// replayOffline 按到达顺序重放离线候选，重新进入完整流水线
func (r *Reconciler) replayOffline() {
	r.mu.Lock()
	pending := r.offlineQueue
	r.offlineQueue = nil
	r.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	log.Printf("重放 %d 个离线候选", len(pending))
	for _, candidate := range pending {
		r.Process(candidate)
	}
}
