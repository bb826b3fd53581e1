package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// Pinger is implemented by pgxpool.Pool and cache.Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks a dependency through its Ping method.
func Ping(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// KafkaBrokers reports healthy when at least one broker accepts a
// connection.
func KafkaBrokers(brokers []string) CheckFunc {
	return func(ctx context.Context) error {
		var last error
		for _, addr := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", addr)
			if err != nil {
				last = err
				continue
			}
			_ = conn.Close()
			return nil
		}
		if last == nil {
			return errors.New("no brokers configured")
		}
		return errors.Wrap(last, "dial kafka")
	}
}

// GoroutineCount fails when the process runs more than threshold
// goroutines.
func GoroutineCount(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}
