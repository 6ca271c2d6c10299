// Package poll 实现轮询断言：反复评估谓词直到成立或超时。
package poll

import (
	"context"
	"time"

	"cdpharness/pkg/model"
)

const (
	// DefaultTimeout 断言默认超时
	DefaultTimeout = 4 * time.Second
	// DefaultInterval 两次评估之间的间隔
	DefaultInterval = 50 * time.Millisecond
)

// Check 对当前状态的一次评估；ok 为 false 时 mismatch 描述实际观察到的状态
type Check func(ctx context.Context) (ok bool, mismatch string, err error)

// Options 轮询参数
type Options struct {
	Timeout     time.Duration
	Interval    time.Duration
	Description string
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Description == "" {
		o.Description = "condition to hold"
	}
	return o
}

// Eventually 反复执行 check，直到其观察到条件成立；超时返回 AssertionTimeoutError。
// 至少评估一次，且只有在一次真实评估返回 ok 时才成功。
func Eventually(ctx context.Context, check Check, opts Options) error {
	opts = opts.withDefaults()
	start := time.Now()
	deadline := start.Add(opts.Timeout)

	var (
		attempts int
		mismatch string
		lastErr  error
	)
	for {
		attempts++
		cctx, cancel := context.WithDeadline(ctx, deadline.Add(opts.Interval))
		ok, mm, err := check(cctx)
		cancel()
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			mismatch = mm
			lastErr = nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &model.AssertionTimeoutError{
				Description:  opts.Description,
				LastMismatch: mismatch,
				Elapsed:      time.Since(start),
				Attempts:     attempts,
				LastErr:      lastErr,
			}
		}

		wait := opts.Interval
		if wait > remaining {
			wait = remaining
		}
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}
