package nixie

import (
	"testing"

	"go.uber.org/zap/zaptest"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/sweeney/nixie-clock/internal/gpio"
)

func TestSPIBusPlayback(t *testing.T) {
	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops: []conntest.IO{
				{W: []byte{0x40, 0x01, 0x00}},
				{W: []byte{0x00, 0x00, 0x00}},
			},
			DontPanic: true,
		},
	}
	bus, err := ConnectSPI(port, DefaultSPIFreq)
	if err != nil {
		t.Fatalf("ConnectSPI: %v", err)
	}

	d, err := New(bus, &gpio.FakePin{}, &gpio.FakePin{}, &recordingDelay{}, zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.WriteChar('5', 3); err != nil {
		t.Fatalf("WriteChar: %v", err)
	}
	if err := d.TurnOff(); err != nil {
		t.Fatalf("TurnOff: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Errorf("playback not fully consumed: %v", err)
	}
}

func TestSPIBusUnexpectedWrite(t *testing.T) {
	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops:       []conntest.IO{{W: []byte{0x00, 0x00, 0x00}}},
			DontPanic: true,
		},
	}
	bus, err := ConnectSPI(port, DefaultSPIFreq)
	if err != nil {
		t.Fatalf("ConnectSPI: %v", err)
	}
	d, err := New(bus, &gpio.FakePin{}, &gpio.FakePin{}, &recordingDelay{}, zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.WriteChar('1', 0); err == nil {
		t.Error("expected the playback to reject an unexpected word")
	}
}
