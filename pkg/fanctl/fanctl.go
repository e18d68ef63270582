package fanctl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikesmitty/fanctl/pkg/config"
	"github.com/mikesmitty/fanctl/pkg/csvlog"
	"github.com/mikesmitty/fanctl/pkg/curve"
	"github.com/mikesmitty/fanctl/pkg/fancontrol"
	"github.com/mikesmitty/fanctl/pkg/hwmon"
	"github.com/mikesmitty/fanctl/pkg/mqtt"
	"github.com/mikesmitty/fanctl/pkg/sysload"
	"github.com/mikesmitty/fanctl/pkg/telemetry"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// restoreDisabled in a fan's restore-enable leaves the channel under manual control
// on exit.
const restoreDisabled = "none"

func Root(cfgFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		setupLogging(viper.GetBool("debug"), "")

		manual := cmd.Flags().Changed("manual-speed")
		percent, err := cmd.Flags().GetInt("manual-speed")
		if err != nil {
			return err
		}
		if manual && (percent < 0 || percent > 100) {
			return fmt.Errorf("manual speed %d%% not within 0-100: %w", percent, fancontrol.ErrInvalidArgument)
		}
		cmd.SilenceUsage = true

		fs := afero.NewOsFs()
		cfg, err := config.Load(viper.GetViper(), fs, *cfgFile)
		if err != nil {
			return err
		}
		closeLog := setupLogging(cfg.Debug, cfg.LogFile)
		defer closeLog()

		c, err := curve.New(cfg.TempMin, cfg.TempMax, cfg.FanMinRaw(), cfg.FanMaxRaw())
		if err != nil {
			return err
		}
		loopCfg := fancontrol.Config{
			Curve:         c,
			Hysteresis:    cfg.Hysteresis,
			Interval:      cfg.IntervalDuration(),
			MaxRawSpeed:   cfg.MaxRawSpeed,
			FailsafeAfter: cfg.FailsafeDuration(),
		}
		slog.Debug("control parameters",
			"tempMin", cfg.TempMin, "tempMax", cfg.TempMax,
			"fanMin", c.FanMin, "fanMax", c.FanMax,
			"hysteresis", cfg.Hysteresis, "interval", loopCfg.Interval)

		sinks, closeSinks := buildSinks(fs, cfg, manual)
		defer closeSinks()

		loop := fancontrol.New(loopCfg, buildSensors(fs, cfg.Sensors), buildChannels(fs, cfg.Fans), sinks,
			fancontrol.WithProbe(sysload.NewCPU()))

		if manual {
			return loop.Manual(cmd.Context(), percent)
		}
		return run(cmd.Context(), loop)
	}
}

func run(ctx context.Context, loop *fancontrol.Loop) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancelFunc()
		return loop.Run(ctx)
	})

	// Signal handling
	g.Go(func() error {
		chanSignal := make(chan os.Signal, 1)
		signal.Notify(chanSignal, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
		defer signal.Stop(chanSignal)

		select {
		case <-ctx.Done():
		case sig := <-chanSignal:
			slog.Info("shutting down...", "signal", sig)
		}
		cancelFunc()
		return nil
	})

	slog.Debug("waiting for goroutines to finish")
	return g.Wait()
}

func buildSensors(fs afero.Fs, cfgs []config.SensorConfig) []*hwmon.Sensor {
	sensors := make([]*hwmon.Sensor, 0, len(cfgs))
	for _, s := range cfgs {
		sensors = append(sensors, hwmon.NewSensor(fs, s.Name, s.Path, s.Scale))
	}
	return sensors
}

func buildChannels(fs afero.Fs, cfgs []config.FanConfig) []*hwmon.Channel {
	channels := make([]*hwmon.Channel, 0, len(cfgs))
	for _, f := range cfgs {
		ch := hwmon.NewChannel(fs, f.Name, f.Mode, f.Enable, f.Value)
		if f.ModeValue != "" {
			ch.ModeValue = f.ModeValue
		}
		if f.EnableValue != "" {
			ch.EnableValue = f.EnableValue
		}
		switch f.RestoreEnable {
		case "":
		case restoreDisabled:
			ch.RestoreEnable = ""
		default:
			ch.RestoreEnable = f.RestoreEnable
		}
		if ch.Inert() {
			slog.Warn("fan has no value handle, ignoring it", "channel", f.Name)
		}
		channels = append(channels, ch)
	}
	return channels
}

// buildSinks assembles the telemetry consumers. A sink that cannot be set up is
// logged and left out; it never prevents fan control.
func buildSinks(fs afero.Fs, cfg config.Config, manual bool) (telemetry.Multi, func()) {
	sinks := telemetry.Multi{telemetry.LogSink{}}
	var closers []func()

	if cfg.CSVDir != "" {
		w, err := csvlog.New(fs, cfg.CSVDir, cfg.Delimiter())
		if err != nil {
			slog.Error("csv log disabled", "dir", cfg.CSVDir, "error", err)
		} else {
			sinks = append(sinks, w)
			closers = append(closers, w.Close)
		}
	}

	if !manual && cfg.SummaryEvery > 0 {
		sinks = append(sinks, telemetry.NewSummary(cfg.SummaryEvery))
	}

	if cfg.MQTTBroker != "" {
		mqttUrl, err := url.Parse(cfg.MQTTBroker)
		if err != nil {
			slog.Error("mqtt disabled", "broker", cfg.MQTTBroker, "error", err)
		} else {
			mc := mqtt.NewClient(mqttUrl, cfg.MQTTSampleInterval)
			if err := mc.Connect(); err != nil {
				slog.Error("mqtt disabled", "broker", cfg.MQTTBroker, "error", err)
			} else {
				if err := mc.HomeAssistant(); err != nil {
					slog.Error("homeassistant status subscription failed", "error", err)
				}
				sinks = append(sinks, mc)
				closers = append(closers, mc.Disconnect)
			}
		}
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
