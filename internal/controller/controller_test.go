package controller

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/sweeney/nixie-clock/internal/gpio"
	"github.com/sweeney/nixie-clock/internal/logic"
	"github.com/sweeney/nixie-clock/internal/nixie"
	"github.com/sweeney/nixie-clock/internal/rtc"
	"github.com/sweeney/nixie-clock/internal/timebase"
)

// The rig counts at 1 MHz so one cycle is one microsecond.
const testMHz = 1

var (
	testDate = rtc.Date{Year: 2026, Month: time.October, Day: 18}
	testTime = logic.TimeOfDay{Hour: 12, Minute: 34, Second: 56}
)

type rig struct {
	clock   *timebase.Fake
	power   *gpio.FakePin
	mode    *gpio.FakePin
	buttons [3]*gpio.FakePin
	bus     *nixie.FakeBus
	rtc     *rtc.Fake
	ctl     *Controller
}

func newRig(t *testing.T, sched logic.Schedule) *rig {
	t.Helper()
	r := &rig{
		clock: timebase.NewFake(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC), testMHz),
		power: &gpio.FakePin{High: true},
		mode:  &gpio.FakePin{},
		bus:   &nixie.FakeBus{},
		rtc:   rtc.NewFake(testDate, testTime),
	}
	in := Inputs{Power: r.power, Mode: r.mode}
	for i := range r.buttons {
		r.buttons[i] = &gpio.FakePin{}
		in.Buttons[i] = r.buttons[i]
	}
	logger := zaptest.NewLogger(t).Sugar()
	display, err := nixie.New(r.bus, &gpio.FakePin{}, &gpio.FakePin{}, r.clock, logger)
	if err != nil {
		t.Fatalf("nixie.New: %v", err)
	}
	cfg := Config{
		Windows:      logic.DefaultWindows(testMHz),
		Schedule:     sched,
		FrameRepeats: 4,
	}
	r.ctl = New(cfg, r.clock, r.clock, in, display, r.rtc, logger)
	return r
}

// noSweep never starts an anti-poisoning sweep.
var noSweep = logic.Schedule{ActivateAt: math.MaxUint64}

func (r *rig) step(t *testing.T, n int) []logic.Event {
	t.Helper()
	var events []logic.Event
	for i := 0; i < n; i++ {
		ev, err := r.ctl.Step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		events = append(events, ev...)
	}
	return events
}

func (r *rig) hold(buttons ...int) {
	for _, b := range r.buttons {
		b.Set(false)
	}
	for _, i := range buttons {
		r.buttons[i].Set(true)
	}
}

// frame decodes the last full pass over the tubes.
func (r *rig) frame(t *testing.T) string {
	t.Helper()
	words := r.bus.Words()
	if len(words) < nixie.Tubes {
		t.Fatalf("only %d words written", len(words))
	}
	out := make([]rune, nixie.Tubes)
	for i, w := range words[len(words)-nixie.Tubes:] {
		c, tube := nixie.Decode(w)
		if tube != i {
			t.Fatalf("word %d selects tube %d", i, tube)
		}
		out[i] = c
	}
	return string(out)
}

func eventTypes(events []logic.Event) []logic.EventType {
	var types []logic.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestNormalDisplay(t *testing.T) {
	r := newRig(t, noSweep)
	r.step(t, 1)

	if got := r.frame(t); got != "12.34.56" {
		t.Errorf("tubes: got %q, want %q", got, "12.34.56")
	}
	if got := r.ctl.Shown(); got != "12.34.56" {
		t.Errorf("Shown: got %q, want %q", got, "12.34.56")
	}
	if r.ctl.Mode() != logic.ModeNormal {
		t.Errorf("mode: got %s, want %s", r.ctl.Mode(), logic.ModeNormal)
	}
	if !r.ctl.On() {
		t.Error("controller should report on")
	}
}

func TestTickPacing(t *testing.T) {
	r := newRig(t, noSweep)
	r.power.Set(false)
	r.step(t, 5)
	// Turning off latches one word per tick, then the tick delay.
	want := 5 * (TickDelay + 2*nixie.LatchDelay)
	if got := r.clock.Slept(); got != want {
		t.Errorf("slept: got %v, want %v", got, want)
	}
}

func TestPowerOff(t *testing.T) {
	r := newRig(t, noSweep)
	r.step(t, 1)
	reads := r.rtc.ReadCount()

	r.power.Set(false)
	r.bus.Reset()
	r.step(t, 3)

	if diff := cmp.Diff([]uint32{0, 0, 0}, r.bus.Words()); diff != "" {
		t.Errorf("words while off (-want +got):\n%s", diff)
	}
	if r.ctl.Shown() != "" || r.ctl.On() {
		t.Errorf("got Shown=%q On=%v while off", r.ctl.Shown(), r.ctl.On())
	}
	if r.rtc.ReadCount() != reads {
		t.Error("RTC read while the power switch was off")
	}

	r.power.Set(true)
	r.step(t, 1)
	if got := r.frame(t); got != "12.34.56" {
		t.Errorf("after power on: got %q, want %q", got, "12.34.56")
	}
}

func TestCounterTracksWrapsWhileOff(t *testing.T) {
	r := newRig(t, noSweep)
	r.power.Set(false)
	r.step(t, 1)

	// Two samples 40 minutes apart straddle the 32-bit wrap at 1 MHz.
	r.clock.Advance(40 * time.Minute)
	r.step(t, 1)
	r.clock.Advance(40 * time.Minute)
	r.step(t, 1)

	r.power.Set(true)
	r.step(t, 1)
	if min := logic.DurationToCycles(80*time.Minute, testMHz); r.ctl.Cycles() < min {
		t.Errorf("cycles: got %d, want at least %d", r.ctl.Cycles(), min)
	}
}

func TestDivergenceMode(t *testing.T) {
	r := newRig(t, noSweep)
	r.mode.Set(true)
	r.step(t, 1)

	want := logic.DivergenceNumbers[0]
	if got := r.frame(t); got != want {
		t.Errorf("tubes: got %q, want %q", got, want)
	}
	if r.rtc.ReadCount() != 0 {
		t.Error("RTC read in divergence mode")
	}
}

func TestAdjustEnterAndExit(t *testing.T) {
	r := newRig(t, noSweep)

	// Hold all three buttons well past the long press window.
	r.hold(0, 1, 2)
	events := r.step(t, 150)
	if diff := cmp.Diff([]logic.EventType{logic.EventAdjustEnter}, eventTypes(events)); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	if events[0].Time != testTime {
		t.Errorf("candidate: got %v, want %v", events[0].Time, testTime)
	}
	if r.ctl.Mode() != logic.ModeAdjusting {
		t.Fatalf("mode: got %s, want %s", r.ctl.Mode(), logic.ModeAdjusting)
	}
	if got := r.frame(t); got != "12 34 56" {
		t.Errorf("tubes: got %q, want %q", got, "12 34 56")
	}

	// RTC reads are frozen while adjusting.
	reads := r.rtc.ReadCount()
	r.rtc.Set(logic.TimeOfDay{Hour: 1, Minute: 1, Second: 1})
	r.hold()
	r.step(t, 20)
	if r.rtc.ReadCount() != reads {
		t.Error("RTC read while adjusting")
	}
	if got := r.frame(t); got != "12 34 56" {
		t.Errorf("tubes: got %q, want %q", got, "12 34 56")
	}

	// Release then hold again to leave.
	r.hold(0, 1, 2)
	events = r.step(t, 150)
	if diff := cmp.Diff([]logic.EventType{logic.EventAdjustExit}, eventTypes(events)); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	if r.ctl.Mode() != logic.ModeNormal {
		t.Errorf("mode: got %s, want %s", r.ctl.Mode(), logic.ModeNormal)
	}
	if got := r.frame(t); got != "01.01.01" {
		t.Errorf("after exit: got %q, want the current RTC time %q", got, "01.01.01")
	}
	if len(r.rtc.Writes()) != 0 {
		t.Errorf("gesture alone wrote the RTC: %v", r.rtc.Writes())
	}
}

func TestAdjustContinuousHoldNeverRetoggles(t *testing.T) {
	r := newRig(t, noSweep)
	r.hold(0, 1, 2)
	events := r.step(t, 1000)
	if len(events) != 1 || events[0].Type != logic.EventAdjustEnter {
		t.Errorf("events: got %v, want a single ADJUST_ENTER", eventTypes(events))
	}
}

func TestAdjustSetsTime(t *testing.T) {
	r := newRig(t, noSweep)
	r.hold(0, 1, 2)
	r.step(t, 150)
	r.hold()
	r.step(t, 20)

	tap := func(button int) []logic.Event {
		r.hold(button)
		events := r.step(t, 1)
		r.hold()
		events = append(events, r.step(t, 20)...)
		return events
	}

	events := tap(0)
	if diff := cmp.Diff([]logic.EventType{logic.EventTimeSet}, eventTypes(events)); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	tap(1)
	tap(2)
	tap(2)

	want := logic.TimeOfDay{Hour: 13, Minute: 35, Second: 58}
	if got := r.frame(t); got != "13 35 58" {
		t.Errorf("tubes: got %q, want %q", got, "13 35 58")
	}
	writes := r.rtc.Writes()
	if len(writes) != 4 {
		t.Fatalf("got %d RTC writes, want 4", len(writes))
	}
	if diff := cmp.Diff(rtc.DateTime{Date: testDate, Time: want}, writes[3]); diff != "" {
		t.Errorf("last write (-want +got):\n%s", diff)
	}

	// Leaving adjust mode shows the time that was written.
	r.hold(0, 1, 2)
	r.step(t, 150)
	if r.ctl.Mode() != logic.ModeNormal {
		t.Fatalf("mode: got %s, want %s", r.ctl.Mode(), logic.ModeNormal)
	}
	if len(r.rtc.Writes()) != 4 {
		t.Errorf("exit gesture wrote the RTC")
	}
	if got := r.frame(t); got != "13.35.58" {
		t.Errorf("tubes: got %q, want %q", got, "13.35.58")
	}
}

func TestButtonsIgnoredInNormalMode(t *testing.T) {
	r := newRig(t, noSweep)
	r.hold(0)
	r.step(t, 1)
	r.hold()
	r.step(t, 1)
	if len(r.rtc.Writes()) != 0 {
		t.Error("button press wrote the RTC outside adjust mode")
	}
}

func TestSweep(t *testing.T) {
	sched := logic.Schedule{
		Interval: logic.MsToCycles(60_000, testMHz),
		Duration: logic.MsToCycles(100, testMHz),
	}
	r := newRig(t, sched)

	// The first tick reads cycle zero, which is not past the schedule.
	events := r.step(t, 1)
	if len(events) != 0 {
		t.Fatalf("events on first tick: %v", eventTypes(events))
	}

	events = r.step(t, 1)
	if diff := cmp.Diff([]logic.EventType{logic.EventSweepStart, logic.EventSweepEnd}, eventTypes(events)); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
	end := events[1]
	if end.Cycle-events[0].Cycle < sched.Duration {
		t.Errorf("sweep lasted %d cycles, want at least %d", end.Cycle-events[0].Cycle, sched.Duration)
	}
	if got, want := r.ctl.NextSweep(), end.Cycle+sched.Interval; got != want {
		t.Errorf("next sweep: got %d, want %d", got, want)
	}

	// Every frame of the sweep is drawn FrameRepeats times before the
	// time comes back.
	var stream strings.Builder
	for _, w := range r.bus.Words() {
		c, _ := nixie.Decode(w)
		stream.WriteRune(c)
	}
	if !strings.Contains(stream.String(), strings.Repeat("72516490", 4)) {
		t.Error("first sweep frame not drawn four times")
	}
	if got := r.frame(t); got != "12.34.56" {
		t.Errorf("after sweep: got %q, want the time", got)
	}

	// The mode switch shows the number the sweep picked.
	if end.Divergence != r.ctl.Divergence() {
		t.Errorf("divergence: event %q, controller %q", end.Divergence, r.ctl.Divergence())
	}
	r.mode.Set(true)
	if events := r.step(t, 1); len(events) != 0 {
		t.Errorf("second sweep started early: %v", eventTypes(events))
	}
	if got := r.frame(t); got != end.Divergence {
		t.Errorf("tubes: got %q, want %q", got, end.Divergence)
	}
}

func TestNoSweepWhileAdjusting(t *testing.T) {
	activate := logic.MsToCycles(2000, testMHz)
	sched := logic.Schedule{
		ActivateAt: activate,
		Interval:   logic.MsToCycles(60_000, testMHz),
		Duration:   logic.MsToCycles(100, testMHz),
	}
	r := newRig(t, sched)

	r.hold(0, 1, 2)
	r.step(t, 150)
	r.hold()
	if r.ctl.Mode() != logic.ModeAdjusting {
		t.Fatalf("mode: got %s, want %s", r.ctl.Mode(), logic.ModeAdjusting)
	}
	if r.ctl.Cycles() >= activate {
		t.Fatalf("entered adjust mode at cycle %d, after the sweep was due", r.ctl.Cycles())
	}

	for r.ctl.Cycles() <= activate+logic.MsToCycles(10, testMHz) {
		if events := r.step(t, 1); len(events) != 0 {
			t.Fatalf("events while adjusting: %v", eventTypes(events))
		}
	}
	if got := r.frame(t); got != "12 34 56" {
		t.Errorf("tubes: got %q, want %q", got, "12 34 56")
	}

	// The overdue sweep runs once adjust mode is left.
	r.hold(0, 1, 2)
	events := r.step(t, 150)
	want := []logic.EventType{logic.EventAdjustExit, logic.EventSweepStart, logic.EventSweepEnd}
	if diff := cmp.Diff(want, eventTypes(events)); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestDisplayErrorIsNotFatal(t *testing.T) {
	r := newRig(t, noSweep)
	r.bus.TxError = errors.New("bus fault")
	if _, err := r.ctl.Step(); err != nil {
		t.Errorf("display fault was fatal: %v", err)
	}
	if got := r.ctl.Shown(); got != "12.34.56" {
		t.Errorf("Shown: got %q", got)
	}
}

func TestInputErrorsAreNotFatal(t *testing.T) {
	r := newRig(t, noSweep)
	r.buttons[1].ReadError = errors.New("line gone")
	if _, err := r.ctl.Step(); err != nil {
		t.Errorf("button fault was fatal: %v", err)
	}
	if got := r.frame(t); got != "12.34.56" {
		t.Errorf("tubes: got %q", got)
	}

	r.power.ReadError = errors.New("line gone")
	if _, err := r.ctl.Step(); err != nil {
		t.Errorf("power switch fault was fatal: %v", err)
	}
}

func TestRTCFailureIsFatal(t *testing.T) {
	r := newRig(t, noSweep)
	r.step(t, 1)

	r.rtc.Err = errors.New("i2c nack")
	_, err := r.ctl.Step()
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, r.rtc.Err) {
		t.Errorf("error should wrap the RTC error, got %v", err)
	}
	if last, _ := r.bus.Last(); last != 0 {
		t.Errorf("tubes left showing %06x after a fatal fault", last)
	}
	if r.ctl.Shown() != "" {
		t.Errorf("Shown: got %q, want empty", r.ctl.Shown())
	}
}
