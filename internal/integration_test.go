package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"
	"periph.io/x/conn/v3/physic"

	"github.com/sweeney/nixie-clock/internal/controller"
	"github.com/sweeney/nixie-clock/internal/gpio"
	"github.com/sweeney/nixie-clock/internal/logic"
	"github.com/sweeney/nixie-clock/internal/mqtt"
	"github.com/sweeney/nixie-clock/internal/nixie"
	"github.com/sweeney/nixie-clock/internal/rtc"
	"github.com/sweeney/nixie-clock/internal/status"
	"github.com/sweeney/nixie-clock/internal/timebase"
)

// ds3231Regs simulates the DS3231 register file on an I2C bus.
type ds3231Regs struct {
	regs  [0x13]byte
	nacks int // fail this many transactions before answering
}

func (d *ds3231Regs) String() string                  { return "ds3231-sim" }
func (d *ds3231Regs) SetSpeed(physic.Frequency) error { return nil }

func (d *ds3231Regs) Tx(addr uint16, w, r []byte) error {
	if addr != rtc.DS3231Addr {
		return fmt.Errorf("no device at %#x", addr)
	}
	if d.nacks > 0 {
		d.nacks--
		return errors.New("nack")
	}
	if len(w) == 0 {
		return errors.New("no register pointer")
	}
	ptr := int(w[0])
	copy(d.regs[ptr:], w[1:])
	copy(r, d.regs[ptr:])
	return nil
}

type system struct {
	t       *testing.T
	clock   *timebase.Fake
	buttons [3]*gpio.FakePin
	bus     *nixie.FakeBus
	chip    *ds3231Regs
	ctl     *controller.Controller
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	counts  logic.EventCounts
}

func newSystem(t *testing.T) *system {
	t.Helper()
	start := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s := &system{
		t:       t,
		clock:   timebase.NewFake(start, 1),
		bus:     &nixie.FakeBus{},
		chip:    &ds3231Regs{},
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(start, status.Config{MHz: 1}),
	}
	// Sunday 2026-10-18 12:34:56, 24 hour mode.
	copy(s.chip.regs[:], []byte{0x56, 0x34, 0x12, 0x01, 0x18, 0x10, 0x26})

	logger := zaptest.NewLogger(t).Sugar()
	display, err := nixie.New(s.bus, &gpio.FakePin{}, &gpio.FakePin{}, s.clock, logger)
	if err != nil {
		t.Fatalf("nixie.New: %v", err)
	}
	clock := rtc.NewRetrying(rtc.NewDS3231(s.chip, rtc.DS3231Addr), rtc.DefaultAttempts, rtc.DefaultWait, s.clock, logger)

	in := controller.Inputs{Power: &gpio.FakePin{High: true}, Mode: &gpio.FakePin{}}
	for i := range s.buttons {
		s.buttons[i] = &gpio.FakePin{}
		in.Buttons[i] = s.buttons[i]
	}
	s.ctl = controller.New(controller.Config{
		Windows:      logic.DefaultWindows(1),
		Schedule:     logic.Schedule{ActivateAt: 1 << 62},
		FrameRepeats: 1,
	}, s.clock, s.clock, in, display, clock, logger)
	return s
}

func (s *system) hold(buttons ...int) {
	for _, b := range s.buttons {
		b.Set(false)
	}
	for _, i := range buttons {
		s.buttons[i].Set(true)
	}
}

// run mirrors the daemon loop: step, stamp, publish, track.
func (s *system) run(n int) {
	s.t.Helper()
	for i := 0; i < n; i++ {
		events, err := s.ctl.Step()
		if err != nil {
			s.t.Fatalf("step %d: %v", i, err)
		}
		for _, e := range events {
			e.Timestamp = s.clock.Now()
			s.counts.Count(e)
			if err := s.pub.Publish(e); err != nil {
				s.t.Fatalf("publish: %v", err)
			}
		}
		s.tracker.Update(status.Clock{
			On:    s.ctl.On(),
			Mode:  s.ctl.Mode(),
			Shown: s.ctl.Shown(),
			Time:  s.ctl.Time(),
		}, s.counts)
	}
}

func TestIntegrationSetTimeFromButtons(t *testing.T) {
	s := newSystem(t)

	s.run(5)
	if got := s.ctl.Shown(); got != "12.34.56" {
		t.Fatalf("normal display: got %q, want %q", got, "12.34.56")
	}

	// Enter adjust mode, bump the hour twice, leave.
	s.hold(0, 1, 2)
	s.run(150)
	s.hold()
	s.run(20)
	for i := 0; i < 2; i++ {
		s.hold(0)
		s.run(1)
		s.hold()
		s.run(20)
	}
	if got := s.ctl.Shown(); got != "14 34 56" {
		t.Errorf("adjust display: got %q, want %q", got, "14 34 56")
	}
	s.hold(0, 1, 2)
	s.run(150)
	s.hold()
	s.run(5)

	// The chip holds the new time and the unchanged date.
	wantRegs := []byte{0x56, 0x34, 0x14, 0x01, 0x18, 0x10, 0x26}
	if diff := cmp.Diff(wantRegs, s.chip.regs[:7]); diff != "" {
		t.Errorf("registers (-want +got):\n%s", diff)
	}
	if got := s.ctl.Shown(); got != "14.34.56" {
		t.Errorf("normal display after adjust: got %q, want %q", got, "14.34.56")
	}

	var types []string
	var times []string
	for _, payload := range s.pub.Payloads {
		var p mqtt.Payload
		if err := json.Unmarshal(payload, &p); err != nil {
			t.Fatalf("invalid JSON payload: %v", err)
		}
		types = append(types, p.Clock.Event)
		times = append(times, p.Clock.Time)
		if p.Clock.Timestamp == "" {
			t.Error("payload without timestamp")
		}
	}
	if diff := cmp.Diff([]string{"ADJUST_ENTER", "TIME_SET", "TIME_SET", "ADJUST_EXIT"}, types); diff != "" {
		t.Errorf("published events (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"12:34:56", "13:34:56", "14:34:56", "14:34:56"}, times); diff != "" {
		t.Errorf("published times (-want +got):\n%s", diff)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(status.FormatJSON(s.tracker.Snapshot()), &sj); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	want := status.CountsJSON{AdjustEnter: 1, AdjustExit: 1, TimeSet: 2}
	if diff := cmp.Diff(want, sj.Status.Counts); diff != "" {
		t.Errorf("status counts (-want +got):\n%s", diff)
	}
	if sj.Status.Clock.Mode != "NORMAL" || sj.Status.Clock.Display != "14.34.56" {
		t.Errorf("status clock: got %+v", sj.Status.Clock)
	}
}

func TestIntegrationTransientI2CErrorsAreRetried(t *testing.T) {
	s := newSystem(t)
	s.chip.nacks = rtc.DefaultAttempts - 1

	s.run(1)
	if got := s.ctl.Shown(); got != "12.34.56" {
		t.Errorf("display: got %q, want %q", got, "12.34.56")
	}
}

func TestIntegrationPersistentI2CErrorIsFatal(t *testing.T) {
	s := newSystem(t)
	s.run(1)
	s.chip.nacks = rtc.DefaultAttempts

	_, err := s.ctl.Step()
	if !errors.Is(err, rtc.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
	if last, _ := s.bus.Last(); last != 0 {
		t.Errorf("tubes left lit, last word %#06x", last)
	}
}
