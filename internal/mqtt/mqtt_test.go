package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/nixie-clock/internal/logic"
)

var testTime = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func TestTopics(t *testing.T) {
	if Topic != "home/nixie-clock/events" {
		t.Errorf("Topic: got %s", Topic)
	}
	if TopicSystem != "home/nixie-clock/system" {
		t.Errorf("TopicSystem: got %s", TopicSystem)
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	testData := []struct {
		name  string
		event logic.Event
		want  string
	}{
		{
			"time set",
			logic.Event{Timestamp: testTime, Cycle: 42, Type: logic.EventTimeSet, Time: logic.TimeOfDay{Hour: 7, Minute: 5, Second: 9}},
			`{"clock":{"timestamp":"2026-10-18T12:00:00Z","event":"TIME_SET","cycle":42,"time":"07:05:09"}}`,
		},
		{
			"adjust enter",
			logic.Event{Timestamp: testTime, Cycle: 1, Type: logic.EventAdjustEnter, Time: logic.TimeOfDay{Hour: 12}},
			`{"clock":{"timestamp":"2026-10-18T12:00:00Z","event":"ADJUST_ENTER","cycle":1,"time":"12:00:00"}}`,
		},
		{
			"sweep start omits time",
			logic.Event{Timestamp: testTime, Cycle: 7, Type: logic.EventSweepStart},
			`{"clock":{"timestamp":"2026-10-18T12:00:00Z","event":"SWEEP_START","cycle":7}}`,
		},
		{
			"sweep end carries divergence",
			logic.Event{Timestamp: testTime, Cycle: 9, Type: logic.EventSweepEnd, Divergence: "1.048596"},
			`{"clock":{"timestamp":"2026-10-18T12:00:00Z","event":"SWEEP_END","cycle":9,"divergence":"1.048596"}}`,
		},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			got, err := FormatPayload(test.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != test.want {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, test.want)
			}
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	event := logic.Event{Timestamp: time.Date(2026, 10, 18, 14, 0, 0, 0, loc), Type: logic.EventSweepStart}
	got, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed Payload
	if err := json.Unmarshal(got, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Clock.Timestamp != "2026-10-18T12:00:00Z" {
		t.Errorf("timestamp: got %s, want UTC", parsed.Clock.Timestamp)
	}
}

func TestFormatSystemPayload(t *testing.T) {
	got, err := FormatSystemPayload(SystemEvent{Timestamp: testTime, Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"system":{"timestamp":"2026-10-18T12:00:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`
	if string(got) != want {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, want)
	}

	got, err = FormatSystemPayload(SystemEvent{Timestamp: testTime, Event: "RECONNECTED"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = `{"system":{"timestamp":"2026-10-18T12:00:00Z","event":"RECONNECTED"}}`
	if string(got) != want {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", got, want)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{}}`)
	got, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("got %s, want the raw payload", got)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	event := logic.Event{Timestamp: testTime, Type: logic.EventTimeSet}
	if err := f.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Timestamp: testTime, Event: "HEARTBEAT"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Events) != 1 || len(f.Payloads) != 1 {
		t.Errorf("events: got %d/%d, want 1/1", len(f.Events), len(f.Payloads))
	}
	if names := f.SystemNames(); len(names) != 1 || names[0] != "HEARTBEAT" {
		t.Errorf("system events: got %v", names)
	}
	if types := f.Types(); len(types) != 1 || types[0] != logic.EventTimeSet {
		t.Errorf("event types: got %v", types)
	}

	f.PublishError = errors.New("broker down")
	if err := f.Publish(event); err == nil {
		t.Error("expected error")
	}
	if len(f.Events) != 1 {
		t.Error("failed publish was recorded")
	}

	f.Close()
	if !f.Closed {
		t.Error("Close not recorded")
	}
	f.Reset()
	if f.Closed || len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("Reset did not clear the publisher")
	}
}
