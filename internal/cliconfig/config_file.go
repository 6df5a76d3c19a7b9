package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	CommonAddress      int    `toml:"common_address"`
	OriginatorAddress  int    `toml:"originator_address"`
	Source             string `toml:"source"`
	StartDTDelay       string `toml:"startdt_delay"`
	InterrogationDelay string `toml:"interrogation_delay"`
	Reconnect          *bool  `toml:"reconnect"`
	ReconnectMax       string `toml:"reconnect_max"`

	QueueCapacity    int    `toml:"queue_capacity"`
	Workers          int    `toml:"workers"`
	DequeueWait      string `toml:"dequeue_wait"`
	DropLogThreshold int    `toml:"drop_log_threshold"`
	ReportInterval   string `toml:"report_interval"`
	MaxCategories    int    `toml:"max_categories"`
	MaxIdentifiers   int    `toml:"max_identifiers"`
	Detail           *bool  `toml:"detail"`

	SimYXNum          int     `toml:"sim_yx_num"`
	SimYCNum          int     `toml:"sim_yc_num"`
	SimIOAMerge       *bool   `toml:"sim_ioa_merge"`
	SimUpdateInterval string  `toml:"sim_update_interval"`
	SimRate           float64 `toml:"sim_rate"`
	SimBurst          int     `toml:"sim_burst"`

	MQTTBroker   string `toml:"mqtt_broker"`
	MQTTTopic    string `toml:"mqtt_topic"`
	MQTTClientID string `toml:"mqtt_client_id"`
	MQTTFormat   string `toml:"mqtt_format"`

	WebhookURL     string `toml:"webhook_url"`
	WebhookTimeout string `toml:"webhook_timeout"`
	WebhookAuthKey string `toml:"webhook_auth_key"`

	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.asdustat/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".asdustat", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setString("source", fc.Source, &cfg.Source)
	s.setString("mqtt-broker", fc.MQTTBroker, &cfg.MQTTBroker)
	s.setString("mqtt-topic", fc.MQTTTopic, &cfg.MQTTTopic)
	s.setString("mqtt-client-id", fc.MQTTClientID, &cfg.MQTTClientID)
	s.setString("mqtt-format", fc.MQTTFormat, &cfg.MQTTFormat)
	s.setString("webhook-url", fc.WebhookURL, &cfg.WebhookURL)
	s.setString("webhook-auth-key", fc.WebhookAuthKey, &cfg.WebhookAuthKey)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"startdt-delay", fc.StartDTDelay, &cfg.StartDTDelay},
		{"interrogation-delay", fc.InterrogationDelay, &cfg.InterrogationDelay},
		{"reconnect-max", fc.ReconnectMax, &cfg.ReconnectMax},
		{"dequeue-wait", fc.DequeueWait, &cfg.DequeueWait},
		{"report-interval", fc.ReportInterval, &cfg.ReportInterval},
		{"sim-update-interval", fc.SimUpdateInterval, &cfg.SimUpdateInterval},
		{"webhook-timeout", fc.WebhookTimeout, &cfg.WebhookTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("common-address", fc.CommonAddress, &cfg.CommonAddress)
	s.setInt("originator-address", fc.OriginatorAddress, &cfg.OriginatorAddress)
	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)
	s.setInt("workers", fc.Workers, &cfg.Workers)
	s.setInt("drop-log-threshold", fc.DropLogThreshold, &cfg.DropLogThreshold)
	s.setInt("max-categories", fc.MaxCategories, &cfg.MaxCategories)
	s.setInt("max-identifiers", fc.MaxIdentifiers, &cfg.MaxIdentifiers)
	s.setInt("sim-yx-num", fc.SimYXNum, &cfg.SimYXNum)
	s.setInt("sim-yc-num", fc.SimYCNum, &cfg.SimYCNum)
	s.setInt("sim-burst", fc.SimBurst, &cfg.SimBurst)

	s.setFloat("sim-rate", fc.SimRate, &cfg.SimRate)

	s.setBool("reconnect", fc.Reconnect, &cfg.Reconnect)
	s.setBool("detail", fc.Detail, &cfg.Detail)
	s.setBool("sim-ioa-merge", fc.SimIOAMerge, &cfg.SimIOAMerge)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
