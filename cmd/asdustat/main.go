package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/asdustat/internal/adapters/console"
	"github.com/bft-labs/asdustat/internal/adapters/mqtt"
	"github.com/bft-labs/asdustat/internal/adapters/webhook"
	"github.com/bft-labs/asdustat/internal/cliconfig"
	"github.com/bft-labs/asdustat/internal/report"
	"github.com/bft-labs/asdustat/pkg/asdustat"
	"github.com/bft-labs/asdustat/pkg/log"
	"github.com/bft-labs/asdustat/plugins/configwatcher"
)

const helpDescription = `
Count ASDU traffic per type and information object address without slowing
the protocol receive path.

Highlights:
  - Receive callback only clones and enqueues; a full queue drops and counts.
  - A worker pool folds messages into a per-type table, reported every interval.
  - Reports go to the console and optionally to MQTT or an HTTP webhook.
  - Interactive commands: station interrogation, test frame, single commands
    and scaled set-points (type h for help).
`

var exampleUsage = strings.TrimSpace(`
  asdustat --sim-yx-num 1500 --sim-yc-num 2000 --sim-ioa-merge
  asdustat --config $HOME/.asdustat/config.toml --mqtt-broker localhost:1883
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	bootLog := log.NewZerologAdapter()

	root := &cobra.Command{
		Use:           "asdustat",
		Short:         "ASDU telemetry statistics for IEC 60870-5-104 sessions",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			loadedPath := ""
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
				loadedPath = cfgFile
			}

			// ASDUSTAT_* variables override the file but not explicit flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := cliconfig.NewLogger(cfg, os.Stderr)
			if err != nil {
				return err
			}
			logger.Info("configuration",
				log.Any("config", cfg.Masked()),
				log.String("config_file", loadedPath))

			return run(cmd.Context(), cfg, loadedPath, logger)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.asdustat/config.toml)")

	f.StringVar(&cfg.Host, "host", cfg.Host, "outstation host")
	f.IntVar(&cfg.Port, "port", cfg.Port, "outstation port")
	f.IntVar(&cfg.CommonAddress, "common-address", cfg.CommonAddress, "common address of the station")
	f.IntVar(&cfg.OriginatorAddress, "originator-address", cfg.OriginatorAddress, "originator address stamped on commands")
	f.StringVar(&cfg.Source, "source", cfg.Source, "telemetry source (sim)")
	f.DurationVar(&cfg.StartDTDelay, "startdt-delay", cfg.StartDTDelay, "pause between STARTDT and station interrogation")
	f.DurationVar(&cfg.InterrogationDelay, "interrogation-delay", cfg.InterrogationDelay, "pause between interrogation and test frame")
	f.BoolVar(&cfg.Reconnect, "reconnect", cfg.Reconnect, "reconnect after the session drops")
	f.DurationVar(&cfg.ReconnectMax, "reconnect-max", cfg.ReconnectMax, "maximum reconnect backoff")

	f.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "bounded queue capacity")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of aggregation workers")
	f.DurationVar(&cfg.DequeueWait, "dequeue-wait", cfg.DequeueWait, "how long an idle worker waits for a message")
	f.IntVar(&cfg.DropLogThreshold, "drop-log-threshold", cfg.DropLogThreshold, "drops folded into one overload log line")
	f.DurationVar(&cfg.ReportInterval, "report-interval", cfg.ReportInterval, "reporting period")
	f.IntVar(&cfg.MaxCategories, "max-categories", cfg.MaxCategories, "number of type identifiers tracked")
	f.IntVar(&cfg.MaxIdentifiers, "max-identifiers", cfg.MaxIdentifiers, "number of information object addresses tracked per type")
	f.BoolVar(&cfg.Detail, "detail", cfg.Detail, "list per-address counts in reports")

	f.IntVar(&cfg.SimYXNum, "sim-yx-num", cfg.SimYXNum, "simulated single-point count")
	f.IntVar(&cfg.SimYCNum, "sim-yc-num", cfg.SimYCNum, "simulated measured value count")
	f.BoolVar(&cfg.SimIOAMerge, "sim-ioa-merge", cfg.SimIOAMerge, "pack up to 40 addresses per simulated interrogation ASDU")
	f.DurationVar(&cfg.SimUpdateInterval, "sim-update-interval", cfg.SimUpdateInterval, "simulated spontaneous update period (0 disables)")
	f.Float64Var(&cfg.SimRate, "sim-rate", cfg.SimRate, "simulated messages per second (0 is unlimited)")
	f.IntVar(&cfg.SimBurst, "sim-burst", cfg.SimBurst, "simulated message burst")

	f.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker for reports (optional)")
	f.StringVar(&cfg.MQTTTopic, "mqtt-topic", cfg.MQTTTopic, "MQTT report topic")
	f.StringVar(&cfg.MQTTClientID, "mqtt-client-id", cfg.MQTTClientID, "MQTT client ID (default: generated)")
	f.StringVar(&cfg.MQTTFormat, "mqtt-format", cfg.MQTTFormat, "MQTT payload format (json|msgpack)")

	f.StringVar(&cfg.WebhookURL, "webhook-url", cfg.WebhookURL, "HTTP endpoint receiving reports (optional)")
	f.DurationVar(&cfg.WebhookTimeout, "webhook-timeout", cfg.WebhookTimeout, "HTTP timeout")
	f.StringVar(&cfg.WebhookAuthKey, "webhook-auth-key", cfg.WebhookAuthKey, "bearer token for the webhook")

	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (console|json)")

	root.AddCommand(newDecodeCmd())

	if err := root.Execute(); err != nil {
		bootLog.Error("asdustat", log.Err(err))
		os.Exit(1)
	}
}

func run(parent context.Context, cfg cliconfig.Config, cfgPath string, logger log.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []asdustat.Option{
		asdustat.WithLogger(logger),
		asdustat.WithSink(console.NewSink(os.Stdout)),
		configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()),
	}
	sinks, err := buildSinks(cfg, logger)
	if err != nil {
		return err
	}
	for _, s := range sinks {
		opts = append(opts, asdustat.WithSink(s))
	}

	a, err := asdustat.New(pipelineConfig(cfg, cfgPath), opts...)
	if err != nil {
		for _, s := range sinks {
			_ = s.Close()
		}
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	quitCh := make(chan struct{})
	go func() {
		if err := console.NewCommands(a, os.Stdout, logger).Run(ctx, os.Stdin); errors.Is(err, console.ErrQuit) {
			close(quitCh)
		}
	}()

	crashCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if a.Status() == asdustat.StateCrashed {
					close(crashCh)
					return
				}
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received signal, stopping")
	case <-quitCh:
		logger.Info("quit requested, stopping")
	case <-crashCh:
		return errors.New("pipeline crashed")
	}

	if err := a.Stop(); err != nil {
		return fmt.Errorf("stop pipeline: %w", err)
	}
	c := a.Counters()
	logger.Info("final counters",
		log.Uint64("received", c.Received),
		log.Uint64("dropped", c.Dropped),
		log.Uint64("processed", c.Processed))
	return nil
}

// buildSinks creates the optional network sinks.
func buildSinks(cfg cliconfig.Config, logger log.Logger) ([]asdustat.ReportSink, error) {
	var sinks []asdustat.ReportSink

	if cfg.MQTTBroker != "" {
		format, err := report.ParseFormat(cfg.MQTTFormat)
		if err != nil {
			return nil, err
		}
		s, err := mqtt.Dial(mqtt.Config{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: cfg.MQTTClientID,
			Format:   format,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("mqtt sink: %w", err)
		}
		sinks = append(sinks, s)
	}

	if cfg.WebhookURL != "" {
		s, err := webhook.New(webhook.Config{
			URL:     cfg.WebhookURL,
			AuthKey: cfg.WebhookAuthKey,
			Format:  report.FormatJSON,
			Timeout: cfg.WebhookTimeout,
		}, nil, logger)
		if err != nil {
			for _, prev := range sinks {
				_ = prev.Close()
			}
			return nil, fmt.Errorf("webhook sink: %w", err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// pipelineConfig converts the validated CLI config.
func pipelineConfig(cfg cliconfig.Config, cfgPath string) asdustat.Config {
	return asdustat.Config{
		CommonAddress:      uint16(cfg.CommonAddress),
		Originator:         uint8(cfg.OriginatorAddress),
		StartDTDelay:       cfg.StartDTDelay,
		InterrogationDelay: cfg.InterrogationDelay,
		Reconnect:          cfg.Reconnect,
		ReconnectMax:       cfg.ReconnectMax,
		QueueCapacity:      cfg.QueueCapacity,
		Workers:            cfg.Workers,
		DequeueWait:        cfg.DequeueWait,
		DropLogThreshold:   cfg.DropLogThreshold,
		ReportInterval:     cfg.ReportInterval,
		Detail:             cfg.Detail,
		MaxCategories:      cfg.MaxCategories,
		MaxIdentifiers:     cfg.MaxIdentifiers,
		Sim: asdustat.SimConfig{
			YXCount:        cfg.SimYXNum,
			YCCount:        cfg.SimYCNum,
			IOAMerge:       cfg.SimIOAMerge,
			UpdateInterval: cfg.SimUpdateInterval,
			Rate:           cfg.SimRate,
			Burst:          cfg.SimBurst,
		},
		ConfigPath: cfgPath,
	}
}
