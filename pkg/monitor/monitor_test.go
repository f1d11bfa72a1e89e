package monitor

import "testing"

func TestHealthMonitor(t *testing.T) {
	m := NewHealthMonitor()

	t.Run("注册后默认健康", func(t *testing.T) {
		m.RegisterComponent("store")
		m.RegisterComponent("feed")
		if !m.AllHealthy() {
			t.Error("注册后应全部健康")
		}
		if len(m.GetAllStatus()) != 2 {
			t.Errorf("组件数 = %d, 期望 2", len(m.GetAllStatus()))
		}
	})

	t.Run("更新为不健康", func(t *testing.T) {
		m.UpdateStatus("feed", false, "disconnected")
		if m.AllHealthy() {
			t.Error("存在不健康组件时应返回false")
		}
	})

	t.Run("恢复健康", func(t *testing.T) {
		m.UpdateStatus("feed", true, "connected")
		if !m.AllHealthy() {
			t.Error("恢复后应全部健康")
		}
	})

	t.Run("未注册组件可直接更新", func(t *testing.T) {
		m.UpdateStatus("bridge", false, "down")
		if len(m.GetAllStatus()) != 3 {
			t.Errorf("组件数 = %d, 期望 3", len(m.GetAllStatus()))
		}
	})
}
