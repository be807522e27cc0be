package scheduler

import (
	"log"
	"sync"
	"time"
)

// EscalationScheduler 升级巡检内置调度器
// 主要触发方式是外部cron调用巡检接口；没有外部调度器的部署
// 可以在配置中启用内置定时器，周期性跑一次巡检
type EscalationScheduler struct {
	runner   sweepFunc
	interval time.Duration
	ticker   *time.Ticker
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

type sweepFunc func() error

// NewEscalationScheduler 创建升级巡检调度器
func NewEscalationScheduler(run func() error, intervalMinutes int) *EscalationScheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 60 // 默认每小时一次
	}
	return &EscalationScheduler{
		runner:   run,
		interval: time.Duration(intervalMinutes) * time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start 启动调度器
func (s *EscalationScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.ticker = time.NewTicker(s.interval)

	log.Printf("[EscalationScheduler] 📅 Internal sweep scheduler started, interval=%s", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ticker.C:
				if err := s.runner(); err != nil {
					log.Printf("[EscalationScheduler] Sweep failed: %v", err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop 停止调度器并等待进行中的巡检结束
func (s *EscalationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.ticker.Stop()
	close(s.stopChan)
	s.wg.Wait()
	log.Println("[EscalationScheduler] Scheduler stopped")
}
