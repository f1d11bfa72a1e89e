// pkg/service/manager.go
package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"ColombeNotify/pkg/bridge"
	"ColombeNotify/pkg/config"
	"ColombeNotify/pkg/dispatch"
	"ColombeNotify/pkg/feed"
	"ColombeNotify/pkg/model"
	"ColombeNotify/pkg/monitor"
	"ColombeNotify/pkg/reconcile"
	"ColombeNotify/pkg/retry"
	"ColombeNotify/pkg/scheduler"
	"ColombeNotify/pkg/store"
)

// Role 进程角色
type Role string

const (
	// RoleWorker 后台进程：订阅变更流、裁决、投递系统通知
	RoleWorker Role = "worker"
	// RolePortal 前台进程：应用内列表、API、点击导航
	RolePortal Role = "portal"
)

// Manager 通知层总控
// 按角色装配各组件并管理生命周期，对外提供操作入口
type Manager struct {
	cfg  *config.Config
	role Role

	store      *store.Store
	source     feed.Source
	adapter    *feed.Adapter
	reconciler *reconcile.Reconciler
	dispatcher *dispatch.Dispatcher
	bridge     *bridge.Bridge
	scheduler  *scheduler.Scheduler
	health     *monitor.HealthMonitor

	mu          sync.Mutex
	initialized bool
	bridgeUp    bool
}

// NewManager 按角色装配通知层
func NewManager(cfg *config.Config, role Role) (*Manager, error) {
	db, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("打开存储失败: %w", err)
	}
	st := store.NewStore(db, cfg.Store.MaxRecords)

	m := &Manager{
		cfg:    cfg,
		role:   role,
		store:  st,
		health: monitor.NewHealthMonitor(),
	}
	m.health.RegisterComponent("store")
	m.health.RegisterComponent("bridge")

	// 跨进程桥接，worker与portal各占一个主题互发
	localSubject := fmt.Sprintf("%s.%s", cfg.Bridge.SubjectPrefix, role)
	peerSubject := fmt.Sprintf("%s.%s", cfg.Bridge.SubjectPrefix, peerRole(role))
	transport, err := bridge.NewNATSTransport(cfg.Bridge.URL, fmt.Sprintf("%s-%s", cfg.App.Name, role))
	if err != nil {
		// 桥接不可达时降级为独立运行，不阻塞主流程
		log.Printf("桥接通道连接失败，独立运行: %v", err)
		m.health.UpdateStatus("bridge", false, err.Error())
	} else {
		m.bridge = bridge.NewBridge(transport, localSubject, peerSubject)
		m.bridgeUp = true
	}

	switch role {
	case RoleWorker:
		m.assembleWorker()
	case RolePortal:
		m.assemblePortal()
	default:
		return nil, fmt.Errorf("未知的进程角色: %s", role)
	}

	return m, nil
}

// assembleWorker 装配后台链路：变更流 -> 适配 -> 裁决 -> 投递
// 变更流不可达时降级离线运行，候选进入离线队列等待重连，进程不退出
func (m *Manager) assembleWorker() {
	m.health.RegisterComponent("feed")
	src, err := feed.NewNATSSource(m.cfg.Feed.URL, m.cfg.Feed.ClientID, m.cfg.Feed.SubjectPrefix)
	if err != nil {
		log.Printf("连接变更流失败，离线运行: %v", err)
		m.health.UpdateStatus("feed", false, err.Error())
	} else {
		m.source = src
	}

	notifier := dispatch.NewWebhookNotifier(m.cfg.Notify.WebhookURL, m.cfg.Notify.Timeout)
	notifier.SetRetryPolicy(retry.Policy{
		MaxAttempts: m.cfg.Retry.MaxAttempts,
		BaseDelay:   m.cfg.Retry.BaseDelay,
		MaxDelay:    m.cfg.Retry.MaxDelay,
	})
	badge := dispatch.NewWebhookBadge(m.cfg.Notify.BadgeURL, m.cfg.Notify.Timeout)
	var poster dispatch.BridgePoster
	if m.bridge != nil {
		poster = m.bridge
	}
	m.dispatcher = dispatch.NewDispatcher(notifier, badge, nil, poster)
	m.dispatcher.SetIcons(m.cfg.Notify.Icon, m.cfg.Notify.BadgeIcon)

	m.reconciler = reconcile.NewReconciler(m.store, m.cfg.Store.OfflineQueueSize, m.dispatcher.Deliver)
	if m.source != nil {
		m.adapter = feed.NewAdapter(m.source, m.cfg.Parent, m.cfg.Children, func(c model.Candidate) {
			m.reconciler.Process(c)
		})
	}
	m.scheduler = scheduler.NewScheduler(m.cfg.Checks.Interval, m.cfg.Checks.FirstDelay, m.CheckAllUpdates)
}

// assemblePortal 装配前台链路：列表表面 + 徽章 + 桥接
// 前台也持有裁决引擎，供API侧的唤醒处理与测试注入走同一条链路
func (m *Manager) assemblePortal() {
	list := dispatch.NewListSink(m.cfg.Store.MaxRecords)
	badge := dispatch.NewWebhookBadge(m.cfg.Notify.BadgeURL, m.cfg.Notify.Timeout)
	m.dispatcher = dispatch.NewDispatcher(nil, badge, list, nil)
	m.reconciler = reconcile.NewReconciler(m.store, m.cfg.Store.OfflineQueueSize, m.dispatcher.Deliver)
}

// Initialize 初始化通知层，可重复调用
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}

	if err := m.store.Load(); err != nil {
		// 存储迁移失败时继续运行，后续写入各自兜底
		log.Printf("存储加载失败: %v", err)
		m.health.UpdateStatus("store", false, err.Error())
	}

	if m.bridge != nil {
		m.registerBridgeHandlers()
		if err := m.bridge.Listen(); err != nil {
			log.Printf("桥接监听失败，独立运行: %v", err)
			m.health.UpdateStatus("bridge", false, err.Error())
			m.bridgeUp = false
		}
	}

	if m.role == RoleWorker {
		if m.adapter != nil {
			// 订阅失败按退避策略重试，避免启动竞态下永久失联
			policy := retry.Policy{
				MaxAttempts: m.cfg.Retry.MaxAttempts,
				BaseDelay:   m.cfg.Retry.BaseDelay,
				MaxDelay:    m.cfg.Retry.MaxDelay,
			}
			if err := policy.Do(context.Background(), "订阅变更流", m.adapter.Setup); err != nil {
				log.Printf("变更流订阅失败: %v", err)
				m.health.UpdateStatus("feed", false, err.Error())
			}

			m.source.OnStatusChange(func(online bool) {
				m.reconciler.SetOnline(online)
				m.health.UpdateStatus("feed", online, connStateText(online))
				if online {
					// 重连后立即复查，补投离线期间漏掉的变更
					go m.CheckAllUpdates()
				}
			})

			// 首次连接可能仍在后台重试，按当前状态初始化在线标志
			online := m.source.Connected()
			m.reconciler.SetOnline(online)
			m.health.UpdateStatus("feed", online, connStateText(online))
		} else {
			m.reconciler.SetOnline(false)
		}

		if err := m.scheduler.Start(); err != nil {
			return fmt.Errorf("启动调度器失败: %w", err)
		}
	}

	m.initialized = true
	log.Printf("通知层初始化完成，角色: %s", m.role)
	return nil
}

// Teardown 停止通知层并释放资源
func (m *Manager) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return
	}

	if m.scheduler != nil {
		m.scheduler.Stop()
	}
	if m.adapter != nil {
		m.adapter.UnsubscribeAll()
	}
	if m.source != nil {
		if err := m.source.Close(); err != nil {
			log.Printf("关闭变更流失败: %v", err)
		}
	}
	if m.bridge != nil {
		if err := m.bridge.Close(); err != nil {
			log.Printf("关闭桥接失败: %v", err)
		}
	}

	m.initialized = false
	log.Println("通知层已停止")
}

// CheckAllUpdates 周期性复查：刷新连接状态、补齐订阅、重算徽章
func (m *Manager) CheckAllUpdates() {
	log.Println("执行周期检查...")

	if m.source != nil {
		online := m.source.Connected()
		m.reconciler.SetOnline(online)
		m.health.UpdateStatus("feed", online, connStateText(online))

		// 订阅半途丢失时重建
		if online && m.adapter.SubscriptionCount() == 0 {
			if err := m.adapter.Setup(); err != nil {
				log.Printf("重建订阅失败: %v", err)
			}
		}
	}

	// 徽章以存储中的未读数为唯一事实来源，定期校正漂移
	m.dispatcher.UpdateBadge(m.store.UnreadCount())
}

// HandleWakeup 处理推送唤醒事件
// 负载中的类别缺失或标题为空时按类别重新定标题，走正常裁决链路
func (m *Manager) HandleWakeup(payload model.WakeupPayload) bool {
	if m.reconciler == nil {
		return false
	}

	category := model.Category(payload.Data["category"])
	if !category.Valid() {
		category = model.CategoryGeneral
	}

	title := payload.Notification.Title
	if title == "" {
		title = model.TitleForCategory(category)
	}
	body := payload.Notification.Body
	if body == "" {
		body = "Vous avez une nouvelle notification"
	}

	docID := payload.Data["documentId"]
	if docID == "" {
		docID = model.NewRecordID()
	}

	ctx := map[string]string{
		"documentId": docID,
		"page":       model.PageForCategory(category),
	}
	if childID := payload.Data["childId"]; childID != "" {
		ctx["childId"] = childID
	}

	return m.reconciler.Process(model.Candidate{
		Category:   category,
		DocumentID: docID,
		Title:      title,
		Body:       body,
		Context:    ctx,
		CreatedAt:  time.Now(),
		ReceivedAt: time.Now(),
	})
}

// Test 注入一组测试候选，验证从裁决到投递的完整链路
func (m *Manager) Test() int {
	if m.reconciler == nil {
		return 0
	}

	now := time.Now()
	base := now.UnixMilli()
	candidates := []model.Candidate{
		{
			Category:   model.CategoryGrade,
			DocumentID: fmt.Sprintf("test_%d_grade", base),
			Title:      model.TitleForCategory(model.CategoryGrade),
			Body:       "Test: nouvelles notes en Mathématiques",
			Context:    map[string]string{"childId": "TEST123", "page": "grades"},
			CreatedAt:  now,
			ReceivedAt: now,
		},
		{
			Category:   model.CategoryIncident,
			DocumentID: fmt.Sprintf("test_%d_incident", base),
			Title:      model.TitleForCategory(model.CategoryIncident),
			Body:       "Test: incident signalé",
			Context:    map[string]string{"childId": "TEST123", "page": "presence-incidents"},
			CreatedAt:  now,
			ReceivedAt: now,
		},
		{
			Category:   model.CategoryHomework,
			DocumentID: fmt.Sprintf("test_%d_homework", base),
			Title:      model.TitleForCategory(model.CategoryHomework),
			Body:       "Test: nouveau devoir en Français",
			Context:    map[string]string{"childId": "TEST123", "page": "homework"},
			CreatedAt:  now,
			ReceivedAt: now,
		},
	}

	delivered := 0
	for _, c := range candidates {
		if m.reconciler.Process(c) {
			delivered++
		}
	}
	log.Printf("测试通知已注入，投递 %d/%d 条", delivered, len(candidates))
	return delivered
}

// MarkAllRead 全部标记已读并同步徽章与对端进程
func (m *Manager) MarkAllRead() {
	m.store.MarkAllRead()
	m.dispatcher.UpdateBadge(0)

	if m.bridge != nil {
		msg, err := model.NewMessage(model.MsgAllMarkedRead, model.AllMarkedReadData{
			Timestamp: time.Now().UnixMilli(),
		})
		if err == nil {
			if err := m.bridge.Post(msg); err != nil {
				log.Printf("已读同步消息投递失败: %v", err)
			}
		}
	}
}

// HandleNotificationClick 处理通知点击：对应页面的通知标记已读并校正徽章
func (m *Manager) HandleNotificationClick(click model.ClickData) int64 {
	page := click.Page
	if page == "" {
		page = model.PageForCategory(click.Category)
	}

	n := m.store.MarkReadByPage(page, click.ChildID)
	m.dispatcher.UpdateBadge(m.store.UnreadCount())
	return n
}

// Status 通知层运行状态快照
func (m *Manager) Status() map[string]interface{} {
	m.mu.Lock()
	initialized := m.initialized
	m.mu.Unlock()

	status := map[string]interface{}{
		"role":        string(m.role),
		"initialized": initialized,
		"records":     m.store.Count(),
		"unread":      m.store.UnreadCount(),
		"bridge_up":   m.bridgeUp,
		"components":  m.health.GetAllStatus(),
	}
	if m.reconciler != nil {
		status["online"] = m.reconciler.Online()
		status["offline_queue"] = m.reconciler.OfflineQueueLen()
	}
	if m.adapter != nil {
		status["subscriptions"] = m.adapter.SubscriptionCount()
	}
	if list := m.dispatcher.List(); list != nil {
		status["observers"] = list.ObserverCount()
	}
	return status
}

// TriggerCheck 立即触发一次检查
func (m *Manager) TriggerCheck() {
	if m.scheduler != nil {
		m.scheduler.TriggerNow()
		return
	}
	// portal侧无调度器，改为请求对端执行
	if m.bridge != nil {
		msg, err := model.NewMessage(model.MsgCheckNow, nil)
		if err == nil {
			if err := m.bridge.Post(msg); err != nil {
				log.Printf("CHECK_NOW消息投递失败: %v", err)
			}
		}
	}
}

// registerBridgeHandlers 注册按角色区分的桥接消息处理器
func (m *Manager) registerBridgeHandlers() {
	// 两端都能应答徽章查询，以本地存储的未读数为准
	m.bridge.Handle(model.MsgGetBadgeCount, func(msg model.Message) *model.Message {
		reply, err := model.NewMessage(model.MsgBadgeCount, model.BadgeCountData{Count: m.store.UnreadCount()})
		if err != nil {
			return nil
		}
		return &reply
	})

	switch m.role {
	case RoleWorker:
		m.bridge.Handle(model.MsgCheckNow, func(msg model.Message) *model.Message {
			m.scheduler.TriggerNow()
			return nil
		})
		m.bridge.Handle(model.MsgMarkAllRead, func(msg model.Message) *model.Message {
			m.MarkAllRead()
			return nil
		})
		m.bridge.Handle(model.MsgAllMarkedRead, func(msg model.Message) *model.Message {
			// 前台已全部标记已读，后台据此校正系统徽章
			m.dispatcher.UpdateBadge(m.store.UnreadCount())
			return nil
		})

	case RolePortal:
		m.bridge.Handle(model.MsgNewNotification, func(msg model.Message) *model.Message {
			// 后台已落库，前台取最新一条刷新列表表面
			records := m.store.List(store.ListFilter{Limit: 1})
			if len(records) > 0 && m.dispatcher.List() != nil {
				m.dispatcher.List().Prepend(records[0])
			}
			m.dispatcher.UpdateBadge(m.store.UnreadCount())
			return nil
		})
		m.bridge.Handle(model.MsgAllMarkedRead, func(msg model.Message) *model.Message {
			m.dispatcher.UpdateBadge(0)
			return nil
		})
		m.bridge.Handle(model.MsgNotificationClicked, func(msg model.Message) *model.Message {
			var click model.ClickData
			if err := msg.Decode(&click); err != nil {
				log.Printf("解析点击消息失败: %v", err)
				return nil
			}
			m.HandleNotificationClick(click)
			return nil
		})
	}
}

// Store 本地通知存储
func (m *Manager) Store() *store.Store {
	return m.store
}

// Dispatcher 投递分发器
func (m *Manager) Dispatcher() *dispatch.Dispatcher {
	return m.dispatcher
}

// Bridge 跨进程桥接，未连接时为nil
func (m *Manager) Bridge() *bridge.Bridge {
	return m.bridge
}

// Health 组件健康注册表
func (m *Manager) Health() *monitor.HealthMonitor {
	return m.health
}

func peerRole(role Role) Role {
	if role == RoleWorker {
		return RolePortal
	}
	return RoleWorker
}

func connStateText(online bool) string {
	if online {
		return "connected"
	}
	return "disconnected"
}
