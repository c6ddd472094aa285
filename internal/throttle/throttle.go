// Package throttle spaces out calls to one guarded operation. Each Throttle
// owns its own limiter, so two fetchers never share a schedule.
package throttle

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Throttle 保证被包装操作的两次调用之间至少间隔 minInterval。
// 间隔由容量为 1 的 rate.Limiter 计算；不支持并发调用。
type Throttle struct {
	minInterval time.Duration
	limiter     *rate.Limiter
	last        time.Time
	hasLast     bool

	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	logger *logrus.Logger
}

// Option 调整 Throttle 的时钟、sleep 实现或日志。
type Option func(*Throttle)

// WithClock 替换时钟。
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) {
		if now != nil {
			t.now = now
		}
	}
}

// WithSleep 替换阻塞等待的实现，测试中可以只记录时长。
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(t *Throttle) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// WithLogger 指定日志输出。
func WithLogger(logger *logrus.Logger) Option {
	return func(t *Throttle) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New 创建一个独立的节流器；负的间隔按 0 处理。
func New(minInterval time.Duration, opts ...Option) *Throttle {
	if minInterval < 0 {
		minInterval = 0
	}
	t := &Throttle{
		minInterval: minInterval,
		limiter:     rate.NewLimiter(rate.Every(minInterval), 1),
		now:         time.Now,
		sleep:       sleepContext,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Wait 在需要时阻塞到距上次调用满 minInterval，然后记录本次调用时间。
// 返回实际等待的时长；ctx 取消时返回其错误，且不占用调用名额。
func (t *Throttle) Wait(ctx context.Context) (time.Duration, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := t.now()
	reservation := t.limiter.ReserveN(now, 1)
	waited := reservation.DelayFrom(now)
	if waited > 0 {
		// 先归还名额，醒来后按实际时间重新预订，间隔从真正的调用时刻算起。
		reservation.CancelAt(now)
		t.logger.WithFields(logrus.Fields{
			"action":  "throttle_wait",
			"seconds": waited.Seconds(),
		}).Warn("waiting before next request")
		if err := t.sleep(ctx, waited); err != nil {
			return 0, err
		}
		now = t.now()
		t.limiter.ReserveN(now, 1)
	}

	t.last = now
	t.hasLast = true
	return waited, nil
}

// MinInterval 返回配置的最小间隔。
func (t *Throttle) MinInterval() time.Duration {
	return t.minInterval
}

// LastInvocation 返回上一次调用的时间；从未调用时 ok 为 false。
func (t *Throttle) LastInvocation() (time.Time, bool) {
	return t.last, t.hasLast
}

// Invoke 经节流后执行 fn，并原样返回其结果。等待被取消时 fn 不会执行。
func Invoke[T any](ctx context.Context, t *Throttle, fn func() T) (T, error) {
	if _, err := t.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	return fn(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
