package main

import (
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/nixie-clock/internal/controller"
	"github.com/sweeney/nixie-clock/internal/logic"
	"github.com/sweeney/nixie-clock/internal/mqtt"
	"github.com/sweeney/nixie-clock/internal/status"
)

// Shutdown reasons published on the system topic.
const (
	reasonSIGINT     = "SIGINT"
	reasonSIGTERM    = "SIGTERM"
	reasonRTCFailure = "RTC_FAILURE"
)

// freeRunning is a tick channel that is always ready. Step paces itself.
func freeRunning() <-chan time.Time {
	ch := make(chan time.Time)
	close(ch)
	return ch
}

func clockState(ctl *controller.Controller) status.Clock {
	return status.Clock{
		On:         ctl.On(),
		Mode:       ctl.Mode(),
		Shown:      ctl.Shown(),
		Time:       ctl.Time(),
		Divergence: ctl.Divergence(),
		Cycles:     ctl.Cycles(),
		NextSweep:  ctl.NextSweep(),
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return reasonSIGINT
	case syscall.SIGTERM:
		return reasonSIGTERM
	}
	return "UNKNOWN"
}

// publishSystem sends a system event carrying a full status snapshot.
func publishSystem(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, event, reason string, retained bool, logger *zap.SugaredLogger) {
	tracker.SetMQTTConnected(mqttStatus.IsConnected())
	snap := tracker.Snapshot()
	e := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(e); err != nil {
		logger.Debugw("System event not delivered", "event", event, "error", err)
	}
}

// runLoop steps the controller on every tick until a signal arrives or the
// RTC fails. Events are stamped with wall time, counted, and published.
func runLoop(ctl *controller.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal, logger *zap.SugaredLogger) error {
	hb := logic.NewHeartbeat(now())
	var counts logic.EventCounts

	ctl.Off()
	tracker.Update(clockState(ctl), counts)

	for {
		select {
		case s := <-sig:
			reason := signalName(s)
			logger.Infow("Shutting down", "signal", s.String())
			ctl.Off()
			tracker.Update(clockState(ctl), counts)
			publishSystem(publisher, mqttStatus, tracker, "SHUTDOWN", reason, true, logger)
			return nil

		case <-tick:
			events, err := ctl.Step()
			t := now()
			for _, event := range events {
				event.Timestamp = t
				counts.Count(event)
				logger.Debugw("Event", "type", event.Type, "cycle", event.Cycle)
				if err := publisher.Publish(event); err != nil {
					logger.Debugw("Event not delivered", "type", event.Type, "error", err)
				}
			}
			tracker.Update(clockState(ctl), counts)

			if err != nil {
				logger.Errorw("RTC failure, tubes off", "error", err)
				publishSystem(publisher, mqttStatus, tracker, "SHUTDOWN", reasonRTCFailure, true, logger)
				return err
			}

			if hbData := hb.Check(t, heartbeat, counts); hbData != nil {
				logger.Infow("Heartbeat",
					"uptime", hbData.Uptime,
					"time_set", hbData.Counts.TimeSet,
					"sweeps", hbData.Counts.Sweeps)
				if net := readNetworkInfo(); net != nil {
					tracker.SetNetwork(net)
				}
				publishSystem(publisher, mqttStatus, tracker, "HEARTBEAT", "", false, logger)
			}
		}
	}
}
