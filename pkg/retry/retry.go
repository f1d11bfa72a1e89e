// pkg/retry/retry.go
package retry

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Policy 受控重试策略：固定倍率退避，封顶延迟，超过最大次数后放弃
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy 默认策略：5次，3s起步，15s封顶
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: 3 * time.Second, MaxDelay: 15 * time.Second}
}

// Delay 第attempt次失败后的等待时间
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay * time.Duration(attempt)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Do 执行fn直到成功或尝试次数耗尽
func (p Policy) Do(ctx context.Context, name string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		log.Printf("%s 失败，%v 后重试 (%d/%d): %v", name, delay, attempt, p.MaxAttempts, lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	log.Printf("%s 重试次数耗尽，放弃: %v", name, lastErr)
	return fmt.Errorf("%s 重试 %d 次后放弃: %w", name, p.MaxAttempts, lastErr)
}
