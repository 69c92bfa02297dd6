package rtc

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/sweeney/nixie-clock/internal/logic"
	"github.com/sweeney/nixie-clock/internal/timebase"
)

// ErrUnavailable means the RTC kept failing after every retry. The clock
// cannot run without it.
var ErrUnavailable = errors.New("rtc unavailable")

// Default retry policy.
const (
	DefaultAttempts = 3
	DefaultWait     = 10 * time.Millisecond
)

var (
	retriesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtc_retries_total",
		Help: "count of rtc operations retried after a transient error",
	})

	failuresCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtc_failures_total",
		Help: "count of rtc operations that failed every attempt",
	})
)

// Retrying wraps an RTC and retries each operation a bounded number of
// times. When every attempt fails the error wraps ErrUnavailable and the
// last underlying error.
type Retrying struct {
	rtc      RTC
	attempts int
	wait     time.Duration
	delay    timebase.Delay
	logger   *zap.SugaredLogger
}

// NewRetrying creates a retrying RTC. attempts below 1 are treated as 1.
func NewRetrying(r RTC, attempts int, wait time.Duration, delay timebase.Delay, logger *zap.SugaredLogger) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{rtc: r, attempts: attempts, wait: wait, delay: delay, logger: logger}
}

func (r *Retrying) do(op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt < r.attempts {
			retriesCounter.Inc()
			r.logger.Warnw("RTC operation failed, retrying", "op", op, "attempt", attempt, "error", err)
			r.delay.Sleep(r.wait)
		}
	}
	failuresCounter.Inc()
	return fmt.Errorf("%s after %d attempts: %w: %w", op, r.attempts, ErrUnavailable, err)
}

// ReadTime implements RTC.
func (r *Retrying) ReadTime() (logic.TimeOfDay, error) {
	var t logic.TimeOfDay
	err := r.do("read time", func() error {
		var err error
		t, err = r.rtc.ReadTime()
		return err
	})
	return t, err
}

// ReadDate implements RTC.
func (r *Retrying) ReadDate() (Date, error) {
	var d Date
	err := r.do("read date", func() error {
		var err error
		d, err = r.rtc.ReadDate()
		return err
	})
	return d, err
}

// SetDateTime implements RTC.
func (r *Retrying) SetDateTime(d Date, t logic.TimeOfDay) error {
	return r.do("set date time", func() error {
		return r.rtc.SetDateTime(d, t)
	})
}
