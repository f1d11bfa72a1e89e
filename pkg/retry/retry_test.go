package retry

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestPolicyDelay(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: 3 * time.Second, MaxDelay: 15 * time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 3 * time.Second},
		{2, 6 * time.Second},
		{4, 12 * time.Second},
		{5, 15 * time.Second},
		{10, 15 * time.Second},
	}
	for _, c := range cases {
		if got := p.Delay(c.attempt); got != c.want {
			t.Errorf("Delay(%d) = %v, 期望 %v", c.attempt, got, c.want)
		}
	}
}

func TestPolicyDo(t *testing.T) {
	t.Run("首次成功不重试", func(t *testing.T) {
		p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
		calls := 0
		err := p.Do(context.Background(), "测试", func() error {
			calls++
			return nil
		})
		if err != nil {
			t.Fatalf("不应返回错误: %v", err)
		}
		if calls != 1 {
			t.Errorf("调用次数 = %d, 期望 1", calls)
		}
	})

	t.Run("失败后按次数重试", func(t *testing.T) {
		p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
		calls := 0
		err := p.Do(context.Background(), "测试", func() error {
			calls++
			if calls < 3 {
				return fmt.Errorf("暂时失败")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("最终成功不应返回错误: %v", err)
		}
		if calls != 3 {
			t.Errorf("调用次数 = %d, 期望 3", calls)
		}
	})

	t.Run("次数耗尽返回最后错误", func(t *testing.T) {
		p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
		calls := 0
		err := p.Do(context.Background(), "测试", func() error {
			calls++
			return fmt.Errorf("持续失败")
		})
		if err == nil {
			t.Fatal("次数耗尽应返回错误")
		}
		if calls != 2 {
			t.Errorf("调用次数 = %d, 期望 2", calls)
		}
	})

	t.Run("上下文取消时提前终止", func(t *testing.T) {
		p := Policy{MaxAttempts: 100, BaseDelay: time.Hour, MaxDelay: time.Hour}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := p.Do(ctx, "测试", func() error {
			return fmt.Errorf("失败")
		})
		if err == nil {
			t.Fatal("取消后应返回错误")
		}
	})
}
