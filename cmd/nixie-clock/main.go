// Command nixie-clock drives an eight tube nixie clock from a DS3231 RTC and
// publishes its activity to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sweeney/nixie-clock/internal/config"
	"github.com/sweeney/nixie-clock/internal/logging"
	"github.com/sweeney/nixie-clock/internal/logic"
	"github.com/sweeney/nixie-clock/internal/mqtt"
	"github.com/sweeney/nixie-clock/internal/rtc"
	"github.com/sweeney/nixie-clock/internal/status"
	"github.com/sweeney/nixie-clock/internal/timebase"
	"github.com/sweeney/nixie-clock/internal/web"
)

const clientID = "nixie-clock"

type options struct {
	configPath string
	logLevel   string
	broker     string
	httpAddr   string
	wsBroker   string
}

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "nixie-clock",
		Short: "Nixie tube clock daemon",
		Long: `Shows the time from a DS3231 RTC on eight nixie tubes, runs a periodic
anti-poisoning sweep, and lets the time be set by holding the hour, minute
and second buttons together.

Examples:
  nixie-clock --config /etc/nixie-clock.yaml   # run the clock
  nixie-clock show-time                        # print the RTC time
  nixie-clock set-time 13:37:00                # set the RTC
  nixie-clock test-tubes                       # cycle every cathode`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runDaemon(cfg)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (defaults when empty)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.Flags().StringVar(&opts.broker, "broker", "", `MQTT broker address, e.g. "tcp://192.168.1.200:1883" (empty disables)`)
	root.Flags().StringVar(&opts.httpAddr, "http", "", "HTTP status address (empty disables)")
	root.Flags().StringVar(&opts.wsBroker, "ws-broker", "", `MQTT websocket URL for the live UI ("=broker" derives from --broker, "off" disables)`)

	root.AddCommand(newShowTimeCmd(opts), newSetTimeCmd(opts), newTestTubesCmd(opts))
	return root
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("broker") {
		cfg.MQTT.Broker = opts.broker
	}
	if flags.Changed("http") {
		cfg.HTTP.Addr = opts.httpAddr
	}
	if flags.Changed("ws-broker") {
		cfg.HTTP.WSBroker = opts.wsBroker
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// nopPublisher stands in when no broker is configured.
type nopPublisher struct{}

func (nopPublisher) Publish(logic.Event) error            { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }
func (nopPublisher) IsConnected() bool                    { return false }

func runDaemon(cfg *config.Config) (err error) {
	logger, err := logging.New(clientID, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	wsBroker, err := resolveWSBroker(cfg.HTTP.WSBroker, cfg.MQTT.Broker)
	if err != nil {
		logger.Warnw("Cannot derive websocket broker", "broker", cfg.MQTT.Broker, "error", err)
	}

	hw, err := openHardware(cfg, logger)
	if err != nil {
		return fmt.Errorf("open hardware: %w", err)
	}
	defer func() {
		err = multierr.Append(err, hw.Close())
	}()

	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = nopPublisher{}
	if cfg.MQTT.Broker != "" {
		publisher = mqtt.NewRealPublisher(cfg.MQTT.Broker, clientID, logger.Named("mqtt"))
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		MHz:             cfg.Clock.MHz,
		DebounceMs:      cfg.Clock.Debounce.Milliseconds(),
		LongPressMs:     cfg.Clock.LongPress.Milliseconds(),
		SweepIntervalMs: cfg.Clock.SweepInterval.Milliseconds(),
		HeartbeatMs:     cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:          cfg.MQTT.Broker,
		HTTPPort:        cfg.HTTP.Addr,
		WSBroker:        wsBroker,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	publishSystem(publisher, publisher, tracker, "STARTUP", "", true, logger)

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, logger.Named("web"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("HTTP server failed", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infow("HTTP status server listening", "addr", cfg.HTTP.Addr)
	}

	logger.Infow("Started",
		"mhz", cfg.Clock.MHz,
		"debounce", cfg.Clock.Debounce,
		"long_press", cfg.Clock.LongPress,
		"sweep_interval", cfg.Clock.SweepInterval,
		"broker", cfg.MQTT.Broker)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctl := hw.newController(cfg, logger)
	return runLoop(ctl, publisher, publisher, tracker, cfg.MQTT.Heartbeat, time.Now, freeRunning(), sigCh, logger)
}

func newShowTimeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show-time",
		Short: "Print the date and time held by the RTC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return withRTC(cfg, func(r rtc.RTC, _ *zap.SugaredLogger) error {
				d, err := r.ReadDate()
				if err != nil {
					return err
				}
				t, err := r.ReadTime()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", d, t)
				return nil
			})
		},
	}
}

func newSetTimeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set-time HH:MM:SS [YYYY-MM-DD]",
		Short: "Write the time, and optionally the date, to the RTC",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTimeOfDay(args[0])
			if err != nil {
				return err
			}
			var date *rtc.Date
			if len(args) == 2 {
				d, err := parseDate(args[1])
				if err != nil {
					return err
				}
				date = &d
			}
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return withRTC(cfg, func(r rtc.RTC, logger *zap.SugaredLogger) error {
				return setTime(r, date, t, logger)
			})
		},
	}
}

// setTime writes t, keeping the RTC's date when date is nil.
func setTime(r rtc.RTC, date *rtc.Date, t logic.TimeOfDay, logger *zap.SugaredLogger) error {
	var d rtc.Date
	if date != nil {
		d = *date
	} else {
		var err error
		if d, err = r.ReadDate(); err != nil {
			return err
		}
	}
	if err := r.SetDateTime(d, t); err != nil {
		return err
	}
	logger.Infow("Time set", "date", d.String(), "time", t.String())
	return nil
}

func parseTimeOfDay(s string) (logic.TimeOfDay, error) {
	parsed, err := time.Parse("15:04:05", s)
	if err != nil {
		return logic.TimeOfDay{}, fmt.Errorf("parse time %q: want HH:MM:SS", s)
	}
	return logic.TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute(), Second: parsed.Second()}, nil
}

func parseDate(s string) (rtc.Date, error) {
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		return rtc.Date{}, fmt.Errorf("parse date %q: want YYYY-MM-DD", s)
	}
	return rtc.Date{Year: parsed.Year(), Month: parsed.Month(), Day: parsed.Day()}, nil
}

func withRTC(cfg *config.Config, fn func(rtc.RTC, *zap.SugaredLogger) error) (err error) {
	logger, err := logging.New(clientID, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	r, bus, err := openRTC(cfg, timebase.New(nil, cfg.Clock.MHz), logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, bus.Close())
	}()
	return fn(r, logger)
}

func newTestTubesCmd(opts *options) *cobra.Command {
	var hold time.Duration
	cmd := &cobra.Command{
		Use:   "test-tubes",
		Short: "Show every cathode on every tube in turn",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger, err := logging.New(clientID, cfg.Log.Level)
			if err != nil {
				return err
			}
			defer logger.Sync()

			hw := &hardware{clock: timebase.New(nil, cfg.Clock.MHz)}
			defer func() {
				err = multierr.Append(err, hw.Close())
			}()
			if err := openDisplay(cfg, hw, logger); err != nil {
				return err
			}
			return testTubes(hw.display, hw.clock, hold)
		},
	}
	cmd.Flags().DurationVar(&hold, "hold", 500*time.Millisecond, "how long each cathode is lit")
	return cmd
}

// tubeDisplay is the part of the driver test-tubes needs.
type tubeDisplay interface {
	DisplayStr(s string) error
}

// testTubes lights each cathode on every tube for hold. The tubes are
// multiplexed, so the same string is rewritten until hold has passed on clk.
func testTubes(d tubeDisplay, clk interface{ Now() time.Time }, hold time.Duration) error {
	for _, c := range logic.Characters {
		s := strings.Repeat(string(c), logic.Tubes)
		deadline := clk.Now().Add(hold)
		for {
			if err := d.DisplayStr(s); err != nil {
				return fmt.Errorf("show %q: %w", c, err)
			}
			if !clk.Now().Before(deadline) {
				break
			}
		}
	}
	return nil
}
