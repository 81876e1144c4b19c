package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultCooldown   = 1 * time.Second
	DefaultMaxRetries = 4
)

// Policy 描述“有界重试 + 固定冷却”。
//
// 约束：
// - MaxRetries 不含首次尝试：0 表示只尝试一次
// - 只有 Retryable 返回 true 的错误才会重试；其它错误立即返回
// - 重试耗尽不是错误：Do 返回 ok=false, err=nil，由调用方按“缺失”处理
type Policy struct {
	Cooldown   time.Duration
	MaxRetries int

	// Retryable 判断错误是否属于可重试的瞬时错误；nil 表示都不重试。
	Retryable func(error) bool

	// Sleep 允许测试替换等待实现；nil 表示按 ctx 可取消地等待 Cooldown。
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *zap.Logger
}

// Default 返回默认策略（冷却 1s，最多 5 次尝试）。
func Default(retryable func(error) bool, logger *zap.Logger) Policy {
	return Policy{
		Cooldown:   DefaultCooldown,
		MaxRetries: DefaultMaxRetries,
		Retryable:  retryable,
		Logger:     logger,
	}
}

// Do 执行 op，并按 p 对瞬时错误做有界重试。
//
// 返回值：
// - (v, true, nil)：成功
// - (零值, false, nil)：重试耗尽（每次失败都已记录日志）
// - (零值, false, err)：不可重试的错误，或 ctx 已取消
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	max := p.MaxRetries
	if max < 0 {
		max = 0
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 0; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, true, nil
		}
		if ctx.Err() != nil {
			return zero, false, ctx.Err()
		}
		if errors.Is(err, context.Canceled) || p.Retryable == nil || !p.Retryable(err) {
			return zero, false, err
		}

		logger.Warn("请求失败",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", max+1),
			zap.Error(err),
		)
		if attempt == max {
			break
		}
		if err := p.sleep(ctx); err != nil {
			return zero, false, err
		}
	}

	logger.Warn("重试耗尽，放弃该请求", zap.Int("attempts", max+1))
	return zero, false, nil
}

func (p Policy) sleep(ctx context.Context) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, p.Cooldown)
	}
	if p.Cooldown <= 0 {
		return nil
	}
	t := time.NewTimer(p.Cooldown)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
