package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ColombeNotify/pkg/bridge"
	"ColombeNotify/pkg/config"
	"ColombeNotify/pkg/dispatch"
	"ColombeNotify/pkg/model"
	"ColombeNotify/pkg/monitor"
	"ColombeNotify/pkg/store"
)

// newPortalManager 无NATS环境下的前台管理器：桥接连接失败时降级为独立运行
func newPortalManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Name = "colombe-test"
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "test.db")
	cfg.Store.MaxRecords = 200
	cfg.Store.OfflineQueueSize = 50
	cfg.Bridge.URL = "nats://127.0.0.1:1" // 不可达，触发独立运行
	cfg.Bridge.SubjectPrefix = "bridge"

	m, err := NewManager(cfg, RolePortal)
	if err != nil {
		t.Fatalf("装配前台管理器失败: %v", err)
	}
	if err := m.Initialize(); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}
	t.Cleanup(m.Teardown)
	return m
}

func TestManagerPortalLifecycle(t *testing.T) {
	m := newPortalManager(t)

	t.Run("桥接不可达时独立运行", func(t *testing.T) {
		if m.Bridge() != nil {
			t.Error("桥接连接失败时应为nil")
		}
		status := m.Status()
		if status["bridge_up"] != false {
			t.Errorf("bridge_up = %v, 期望 false", status["bridge_up"])
		}
		if status["initialized"] != true {
			t.Errorf("initialized = %v, 期望 true", status["initialized"])
		}
	})

	t.Run("重复初始化幂等", func(t *testing.T) {
		if err := m.Initialize(); err != nil {
			t.Errorf("重复初始化失败: %v", err)
		}
	})
}

func TestManagerTestInjection(t *testing.T) {
	m := newPortalManager(t)

	t.Run("注入三条测试通知", func(t *testing.T) {
		if delivered := m.Test(); delivered != 3 {
			t.Errorf("投递数 = %d, 期望 3", delivered)
		}
		if got := m.Store().UnreadCount(); got != 3 {
			t.Errorf("未读数 = %d, 期望 3", got)
		}
		if got := len(m.Dispatcher().List().Records()); got != 3 {
			t.Errorf("列表记录数 = %d, 期望 3", got)
		}
	})

	t.Run("重复注入被文档去重拦截", func(t *testing.T) {
		// 同一毫秒内的第二次注入复用文档ID，应全部判重
		before := m.Store().Count()
		m.Test()
		if got := m.Store().Count(); got < before {
			t.Errorf("记录数 = %d, 不应减少", got)
		}
	})
}

func TestManagerWakeup(t *testing.T) {
	m := newPortalManager(t)

	t.Run("带类别的唤醒走完整链路", func(t *testing.T) {
		var payload model.WakeupPayload
		payload.Notification.Title = "📊 Nouvelles notes"
		payload.Notification.Body = "Amadou a des nouvelles notes"
		payload.Data = map[string]string{
			"category":   "grade",
			"documentId": "wake1",
			"childId":    "MAT001",
		}

		if !m.HandleWakeup(payload) {
			t.Fatal("唤醒消息应产生记录")
		}
		records := m.Store().List(store.ListFilter{Category: model.CategoryGrade})
		if len(records) != 1 {
			t.Errorf("成绩类记录数 = %d, 期望 1", len(records))
		}
	})

	t.Run("缺失类别回退为通用并补标题", func(t *testing.T) {
		var payload model.WakeupPayload
		payload.Data = map[string]string{"documentId": "wake2"}

		if !m.HandleWakeup(payload) {
			t.Fatal("唤醒消息应产生记录")
		}
		records := m.Store().List(store.ListFilter{Category: model.CategoryGeneral})
		if len(records) != 1 {
			t.Fatalf("通用类记录数 = %d, 期望 1", len(records))
		}
		if records[0].Title != model.TitleForCategory(model.CategoryGeneral) {
			t.Errorf("标题 = %q, 期望类别默认标题", records[0].Title)
		}
	})

	t.Run("同一文档的重复唤醒判重", func(t *testing.T) {
		var payload model.WakeupPayload
		payload.Data = map[string]string{"category": "grade", "documentId": "wake1"}
		if m.HandleWakeup(payload) {
			t.Error("重复文档的唤醒不应产生第二条记录")
		}
	})
}

func TestManagerReadFlows(t *testing.T) {
	m := newPortalManager(t)
	m.Test()

	t.Run("点击导航标记对应页面已读", func(t *testing.T) {
		marked := m.HandleNotificationClick(model.ClickData{
			Category: model.CategoryGrade,
			ChildID:  "TEST123",
		})
		if marked != 1 {
			t.Errorf("标记数 = %d, 期望 1", marked)
		}
		if got := m.Store().UnreadCount(); got != 2 {
			t.Errorf("未读数 = %d, 期望 2", got)
		}
	})

	t.Run("全部标记已读", func(t *testing.T) {
		m.MarkAllRead()
		if got := m.Store().UnreadCount(); got != 0 {
			t.Errorf("未读数 = %d, 期望 0", got)
		}
	})
}

// newWorkerManager 变更流与桥接均不可达时的后台管理器
func newWorkerManager(t *testing.T) *Manager {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Name = "colombe-test"
	cfg.Parent = model.Parent{Matricule: "PAR001"}
	cfg.Children = []model.Child{
		{Matricule: "MAT001", FullName: "Amadou Diallo", Class: "3ème A", Type: "secondary"},
	}
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "test.db")
	cfg.Store.MaxRecords = 200
	cfg.Store.OfflineQueueSize = 50
	cfg.Feed.URL = "nats://127.0.0.1:1" // 不可达，后台持续重连
	cfg.Feed.ClientID = "colombe-test"
	cfg.Feed.SubjectPrefix = "feed"
	cfg.Bridge.URL = "nats://127.0.0.1:1"
	cfg.Bridge.SubjectPrefix = "bridge"
	cfg.Checks.Interval = time.Minute
	cfg.Checks.FirstDelay = time.Minute
	cfg.Retry.MaxAttempts = 1
	cfg.Retry.BaseDelay = 10 * time.Millisecond
	cfg.Retry.MaxDelay = 10 * time.Millisecond

	m, err := NewManager(cfg, RoleWorker)
	if err != nil {
		t.Fatalf("变更流不可达时装配不应失败: %v", err)
	}
	if err := m.Initialize(); err != nil {
		t.Fatalf("初始化失败: %v", err)
	}
	t.Cleanup(m.Teardown)
	return m
}

func TestManagerWorkerOfflineStart(t *testing.T) {
	m := newWorkerManager(t)

	t.Run("变更流不可达时照常启动", func(t *testing.T) {
		status := m.Status()
		if status["initialized"] != true {
			t.Errorf("initialized = %v, 期望 true", status["initialized"])
		}
		if status["online"] != false {
			t.Errorf("online = %v, 期望 false", status["online"])
		}
		if status["subscriptions"] != 6 {
			t.Errorf("订阅数 = %v, 期望 6", status["subscriptions"])
		}
	})

	t.Run("离线期间候选进入队列", func(t *testing.T) {
		if delivered := m.Test(); delivered != 0 {
			t.Errorf("离线时投递数 = %d, 期望 0", delivered)
		}
		status := m.Status()
		if status["offline_queue"] != 3 {
			t.Errorf("离线队列长度 = %v, 期望 3", status["offline_queue"])
		}
	})
}

func TestWorkerBadgeResyncOnAllMarkedRead(t *testing.T) {
	var mu sync.Mutex
	var actions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("解析徽章请求失败: %v", err)
			return
		}
		action, _ := body["action"].(string)
		mu.Lock()
		actions = append(actions, action)
		mu.Unlock()
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Store.Backend = "sqlite"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "test.db")
	cfg.Store.MaxRecords = 200
	db, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("打开存储失败: %v", err)
	}
	st := store.NewStore(db, 200)
	if err := st.Load(); err != nil {
		t.Fatalf("加载存储失败: %v", err)
	}

	// 回环传输上手工装配worker侧桥接，前台发来的已读同步应触发徽章校正
	transport := bridge.NewLoopbackTransport()
	m := &Manager{
		cfg:        cfg,
		role:       RoleWorker,
		store:      st,
		health:     monitor.NewHealthMonitor(),
		dispatcher: dispatch.NewDispatcher(nil, dispatch.NewWebhookBadge(srv.URL, time.Second), nil, nil),
		bridge:     bridge.NewBridge(transport, "bridge.worker", "bridge.portal"),
	}
	m.registerBridgeHandlers()
	if err := m.bridge.Listen(); err != nil {
		t.Fatalf("桥接监听失败: %v", err)
	}

	peer := bridge.NewBridge(transport, "bridge.portal", "bridge.worker")
	msg, err := model.NewMessage(model.MsgAllMarkedRead, model.AllMarkedReadData{Timestamp: time.Now().UnixMilli()})
	if err != nil {
		t.Fatalf("构造消息失败: %v", err)
	}
	if err := peer.Post(msg); err != nil {
		t.Fatalf("投递消息失败: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(actions) != 1 || actions[0] != "clear" {
		t.Errorf("徽章校正请求 = %v, 期望一次clear", actions)
	}
}
