// pkg/monitor/monitor.go
package monitor

import (
	"sync"
	"time"
)

// ComponentStatus 组件运行状态
type ComponentStatus struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HealthMonitor 组件健康状态注册表
type HealthMonitor struct {
	mu         sync.RWMutex
	components map[string]*ComponentStatus
}

// NewHealthMonitor 创建健康监控器
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		components: make(map[string]*ComponentStatus),
	}
}

// RegisterComponent 注册组件，初始状态为健康
func (m *HealthMonitor) RegisterComponent(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = &ComponentStatus{
		Name:      name,
		Healthy:   true,
		Message:   "registered",
		UpdatedAt: time.Now(),
	}
}

// UpdateStatus 更新组件状态
func (m *HealthMonitor) UpdateStatus(name string, healthy bool, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.components[name]
	if !ok {
		s = &ComponentStatus{Name: name}
		m.components[name] = s
	}
	s.Healthy = healthy
	s.Message = message
	s.UpdatedAt = time.Now()
}

// GetAllStatus 获取全部组件状态快照
func (m *HealthMonitor) GetAllStatus() []ComponentStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ComponentStatus, 0, len(m.components))
	for _, s := range m.components {
		out = append(out, *s)
	}
	return out
}

// AllHealthy 所有已注册组件是否均健康
func (m *HealthMonitor) AllHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.components {
		if !s.Healthy {
			return false
		}
	}
	return true
}
