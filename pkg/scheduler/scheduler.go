// pkg/scheduler/scheduler.go
package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler 周期性复查调度器
// 复查允许与进行中的检查重叠：检查对检查点幂等，不做互斥
type Scheduler struct {
	cron       *cron.Cron
	check      func()
	interval   time.Duration
	firstDelay time.Duration
	firstTimer *time.Timer
}

// NewScheduler 创建调度器
func NewScheduler(interval, firstDelay time.Duration, check func()) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		check:      check,
		interval:   interval,
		firstDelay: firstDelay,
	}
}

// Start 启动调度器：首次检查延迟执行，之后按固定间隔复查
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.check); err != nil {
		return fmt.Errorf("注册周期检查失败: %w", err)
	}

	s.firstTimer = time.AfterFunc(s.firstDelay, func() {
		log.Println("执行首次检查...")
		s.check()
	})

	s.cron.Start()
	log.Printf("调度器已启动，检查间隔 %s", s.interval)
	return nil
}

// TriggerNow 绕过排期立即检查（CHECK_NOW）
func (s *Scheduler) TriggerNow() {
	go s.check()
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	if s.firstTimer != nil {
		s.firstTimer.Stop()
	}
	s.cron.Stop()
}
