package cliconfig

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/asdustat/internal/report"
	"github.com/bft-labs/asdustat/pkg/log"
)

// SourceSim selects the built-in simulated outstation.
const SourceSim = "sim"

// Hard bounds for the aggregation table.
const (
	MaxCategoriesLimit  = 256
	MaxIdentifiersLimit = 1 << 24
)

// Config holds CLI configuration for asdustat.
type Config struct {
	Host               string
	Port               int
	CommonAddress      int
	OriginatorAddress  int
	Source             string
	StartDTDelay       time.Duration
	InterrogationDelay time.Duration
	Reconnect          bool
	ReconnectMax       time.Duration

	QueueCapacity    int
	Workers          int
	DequeueWait      time.Duration
	DropLogThreshold int
	ReportInterval   time.Duration
	MaxCategories    int
	MaxIdentifiers   int
	Detail           bool

	SimYXNum          int
	SimYCNum          int
	SimIOAMerge       bool
	SimUpdateInterval time.Duration
	SimRate           float64
	SimBurst          int

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
	MQTTFormat   string

	WebhookURL     string
	WebhookTimeout time.Duration
	WebhookAuthKey string

	LogLevel  string
	LogFormat string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Host:               "localhost",
		Port:               2404,
		CommonAddress:      1,
		OriginatorAddress:  3,
		Source:             SourceSim,
		StartDTDelay:       2 * time.Second,
		InterrogationDelay: 5 * time.Second,
		ReconnectMax:       10 * time.Second,

		QueueCapacity:    1000,
		Workers:          10,
		DequeueWait:      100 * time.Millisecond,
		DropLogThreshold: 100,
		ReportInterval:   time.Second,
		MaxCategories:    128,
		MaxIdentifiers:   65536,

		SimYXNum:          10,
		SimYCNum:          10,
		SimUpdateInterval: time.Second,
		SimBurst:          100,

		MQTTTopic:  "asdustat/report",
		MQTTFormat: string(report.FormatJSON),

		WebhookTimeout: 10 * time.Second,

		LogLevel:  "info",
		LogFormat: log.FormatConsole,
	}
}

// Validate checks the configuration for errors and normalizes string values.
func (c *Config) Validate() error {
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	if c.Source != SourceSim {
		return fmt.Errorf("source %q is not supported (only %q)", c.Source, SourceSim)
	}
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > math.MaxUint16 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.CommonAddress <= 0 || c.CommonAddress > math.MaxUint16 {
		return fmt.Errorf("common address %d out of range 1..%d", c.CommonAddress, math.MaxUint16)
	}
	if c.OriginatorAddress < 0 || c.OriginatorAddress > math.MaxUint8 {
		return fmt.Errorf("originator address %d out of range 0..%d", c.OriginatorAddress, math.MaxUint8)
	}

	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.DequeueWait <= 0 {
		return fmt.Errorf("dequeue wait must be positive")
	}
	if c.DropLogThreshold <= 0 {
		return fmt.Errorf("drop log threshold must be positive")
	}
	if c.ReportInterval <= 0 {
		return fmt.Errorf("report interval must be positive")
	}
	if c.MaxCategories <= 0 || c.MaxCategories > MaxCategoriesLimit {
		return fmt.Errorf("max categories %d out of range 1..%d", c.MaxCategories, MaxCategoriesLimit)
	}
	if c.MaxIdentifiers <= 0 || c.MaxIdentifiers > MaxIdentifiersLimit {
		return fmt.Errorf("max identifiers %d out of range 1..%d", c.MaxIdentifiers, MaxIdentifiersLimit)
	}

	if c.SimYXNum < 0 || c.SimYCNum < 0 {
		return fmt.Errorf("simulated point counts must not be negative")
	}
	if c.SimRate < 0 {
		return fmt.Errorf("simulated rate must not be negative")
	}

	if _, err := report.ParseFormat(c.MQTTFormat); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case log.FormatConsole, log.FormatJSON, "":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}

	// Ensure no trailing slash
	c.WebhookURL = strings.TrimRight(c.WebhookURL, "/")

	return nil
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if c.WebhookAuthKey != "" {
		c.WebhookAuthKey = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if positive.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if positive.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
