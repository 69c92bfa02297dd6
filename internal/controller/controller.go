// Package controller runs one tick of the clock: it reads the switches and
// buttons, drives the time adjust state machine and the anti-poisoning
// sweep, and writes the result to the tubes.
package controller

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/sweeney/nixie-clock/internal/gpio"
	"github.com/sweeney/nixie-clock/internal/logic"
	"github.com/sweeney/nixie-clock/internal/rtc"
	"github.com/sweeney/nixie-clock/internal/timebase"
)

// TickDelay paces the loop.
const TickDelay = time.Millisecond

var (
	sweepsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anti_poison_sweeps_total",
		Help: "count of completed anti-poisoning sweeps",
	})

	adjustWritesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "time_adjust_writes_total",
		Help: "count of times written to the rtc from adjust mode",
	})

	tickDurationMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tick_duration_seconds",
		Help:    "time taken by one loop tick, including display writes",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

// Display shows strings on the tubes. *nixie.Driver satisfies it.
type Display interface {
	DisplayStr(s string) error
	TurnOff() error
}

// Inputs are the switches and buttons.
type Inputs struct {
	Power   gpio.Input    // high turns the tubes on
	Mode    gpio.Input    // high shows the divergence number
	Buttons [3]gpio.Input // hour, minute, second
}

// Config holds the timing of the controller, in cycles.
type Config struct {
	Windows      logic.Windows
	Schedule     logic.Schedule
	FrameRepeats int
}

// Controller owns all loop state. It is not safe for concurrent use; the
// accessors are meant to be called between ticks by the goroutine that calls
// Step.
type Controller struct {
	counter  *logic.Counter
	buttons  [3]*logic.Button
	power    gpio.Input
	mode     gpio.Input
	adjuster *logic.Adjuster
	schedule logic.Schedule
	repeats  int

	divergence int

	display Display
	rtc     rtc.RTC
	delay   timebase.Delay
	logger  *zap.SugaredLogger

	on    bool
	shown string
	time  logic.TimeOfDay
}

// New creates a controller. Nothing is read or written until the first Step.
func New(cfg Config, ticks logic.TickSource, delay timebase.Delay, in Inputs, display Display, clock rtc.RTC, logger *zap.SugaredLogger) *Controller {
	c := &Controller{
		counter:  logic.NewCounter(ticks),
		power:    in.Power,
		mode:     in.Mode,
		adjuster: logic.NewAdjuster(),
		schedule: cfg.Schedule,
		repeats:  cfg.FrameRepeats,
		display:  display,
		rtc:      clock,
		delay:    delay,
		logger:   logger,
	}
	if c.repeats < 1 {
		c.repeats = 1
	}
	for i, pin := range in.Buttons {
		c.buttons[i] = logic.NewButton(pin, cfg.Windows)
	}
	return c
}

// Step runs one tick and returns the events it produced. Hardware faults
// that only cost a frame or a button sample are logged and absorbed. The
// returned error is fatal: the RTC is unavailable, and the tubes have been
// turned off.
func (c *Controller) Step() ([]logic.Event, error) {
	timer := prometheus.NewTimer(tickDurationMetric)
	defer timer.ObserveDuration()

	events, err := c.step()
	if err != nil {
		c.Off()
		return events, err
	}
	c.delay.Sleep(TickDelay)
	return events, nil
}

func (c *Controller) step() ([]logic.Event, error) {
	// Sampled every tick, including while off, so no wrap is missed.
	now := c.counter.Update()

	on, err := c.power.IsHigh()
	if err != nil {
		c.logger.Warnw("Failed to read power switch", "error", err)
		return nil, nil
	}
	if !on {
		if c.on || c.shown != "" {
			c.logger.Infow("Power switch off")
		}
		c.Off()
		return nil, nil
	}
	if !c.on {
		c.logger.Infow("Power switch on")
		c.on = true
	}

	var events []logic.Event
	if !c.adjuster.Active() && c.schedule.Due(now) {
		events = c.runSweep(now)
	}

	divergence, err := c.mode.IsHigh()
	if err != nil {
		c.logger.Warnw("Failed to read mode switch", "error", err)
		return events, nil
	}
	if divergence {
		c.show(logic.DivergenceNumbers[c.divergence])
		return events, nil
	}

	now = c.counter.Update()
	adjust, err := c.runAdjust(now)
	events = append(events, adjust...)
	return events, err
}

// runSweep runs the anti-poisoning animation to completion. Buttons are not
// sampled while it runs.
func (c *Controller) runSweep(now uint64) []logic.Event {
	sw := c.schedule.Start(now)
	c.divergence = sw.DivergenceIndex
	events := []logic.Event{{Cycle: now, Type: logic.EventSweepStart}}
	c.logger.Debugw("Anti-poisoning sweep started", "cycle", now, "until", sw.DeactivateAt)

	for !sw.Done(now) {
		frame := sw.Frame()
		for i := 0; i < c.repeats; i++ {
			c.show(frame)
		}
		sw.Advance()
		now = c.counter.Update()
	}

	c.schedule.Finish(sw, now)
	sweepsCounter.Inc()
	c.logger.Debugw("Anti-poisoning sweep finished", "cycle", now, "next", sw.ReactivateAt, "divergence", sw.Divergence())
	return append(events, logic.Event{Cycle: now, Type: logic.EventSweepEnd, Divergence: sw.Divergence()})
}

// runAdjust samples the buttons, drives the adjust state machine and shows
// the time.
func (c *Controller) runAdjust(now uint64) ([]logic.Event, error) {
	var pressed, raw [3]bool
	for i, b := range c.buttons {
		p, err := b.Pressed(now)
		if err != nil {
			c.logger.Warnw("Failed to read button", "button", i, "error", err)
		}
		pressed[i] = p
		raw[i] = b.Raw
	}

	var events []logic.Event
	if c.adjuster.Gesture(logic.TripleHold(c.buttons)) {
		if c.adjuster.Active() {
			t, err := c.rtc.ReadTime()
			if err != nil {
				return events, fmt.Errorf("enter adjust mode: %w", err)
			}
			c.adjuster.Begin(t)
			c.logger.Infow("Entered time adjust mode", "time", t.String())
			events = append(events, logic.Event{Cycle: now, Type: logic.EventAdjustEnter, Time: t})
		} else {
			c.logger.Infow("Left time adjust mode", "time", c.adjuster.Candidate.String())
			events = append(events, logic.Event{Cycle: now, Type: logic.EventAdjustExit, Time: c.adjuster.Candidate})
		}
	}

	if c.adjuster.Active() {
		if c.adjuster.Apply(pressed, raw) {
			if err := c.writeCandidate(); err != nil {
				return events, err
			}
			events = append(events, logic.Event{Cycle: now, Type: logic.EventTimeSet, Time: c.adjuster.Candidate})
		}
		c.time = c.adjuster.Candidate
		c.show(logic.FormatTime(c.adjuster.Candidate, true))
		return events, nil
	}

	t, err := c.rtc.ReadTime()
	if err != nil {
		return events, fmt.Errorf("read time: %w", err)
	}
	c.time = t
	c.show(logic.FormatTime(t, false))
	return events, nil
}

func (c *Controller) writeCandidate() error {
	d, err := c.rtc.ReadDate()
	if err != nil {
		return fmt.Errorf("write adjusted time: %w", err)
	}
	if err := c.rtc.SetDateTime(d, c.adjuster.Candidate); err != nil {
		return fmt.Errorf("write adjusted time: %w", err)
	}
	adjustWritesCounter.Inc()
	c.logger.Infow("Time set", "date", d.String(), "time", c.adjuster.Candidate.String())
	return nil
}

func (c *Controller) show(s string) {
	c.shown = s
	if err := c.display.DisplayStr(s); err != nil {
		c.logger.Warnw("Display write failed", "text", s, "error", err)
	}
}

// Off blanks the tubes.
func (c *Controller) Off() {
	c.on = false
	c.shown = ""
	if err := c.display.TurnOff(); err != nil {
		c.logger.Warnw("Failed to turn off tubes", "error", err)
	}
}

// On reports whether the power switch was on at the last tick.
func (c *Controller) On() bool {
	return c.on
}

// Mode returns the time adjust mode.
func (c *Controller) Mode() logic.Mode {
	return c.adjuster.Mode()
}

// Shown returns the last string sent to the tubes, empty when they are off.
func (c *Controller) Shown() string {
	return c.shown
}

// Time returns the time last shown: the RTC time in normal mode, the
// candidate in adjust mode.
func (c *Controller) Time() logic.TimeOfDay {
	return c.time
}

// Divergence returns the divergence number picked by the last sweep.
func (c *Controller) Divergence() string {
	return logic.DivergenceNumbers[c.divergence]
}

// Cycles returns the extended cycle count at the last update.
func (c *Controller) Cycles() uint64 {
	return c.counter.Cycles
}

// NextSweep returns the cycle after which the next sweep starts.
func (c *Controller) NextSweep() uint64 {
	return c.schedule.ActivateAt
}
