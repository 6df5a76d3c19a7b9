package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "ASDUSTAT_"

// ApplyEnvConfig applies configuration from environment variables (ASDUSTAT_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(key string) string { return os.Getenv(EnvPrefix + key) }

	s.setString("host", env("HOST"), &cfg.Host)
	s.setString("source", env("SOURCE"), &cfg.Source)
	s.setString("mqtt-broker", env("MQTT_BROKER"), &cfg.MQTTBroker)
	s.setString("mqtt-topic", env("MQTT_TOPIC"), &cfg.MQTTTopic)
	s.setString("mqtt-client-id", env("MQTT_CLIENT_ID"), &cfg.MQTTClientID)
	s.setString("mqtt-format", env("MQTT_FORMAT"), &cfg.MQTTFormat)
	s.setString("webhook-url", env("WEBHOOK_URL"), &cfg.WebhookURL)
	s.setString("webhook-auth-key", env("WEBHOOK_AUTH_KEY"), &cfg.WebhookAuthKey)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", env("LOG_FORMAT"), &cfg.LogFormat)

	if err := s.setDuration("startdt-delay", env("STARTDT_DELAY"), &cfg.StartDTDelay); err != nil {
		return err
	}
	if err := s.setDuration("interrogation-delay", env("INTERROGATION_DELAY"), &cfg.InterrogationDelay); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-max", env("RECONNECT_MAX"), &cfg.ReconnectMax); err != nil {
		return err
	}
	if err := s.setDuration("dequeue-wait", env("DEQUEUE_WAIT"), &cfg.DequeueWait); err != nil {
		return err
	}
	if err := s.setDuration("report-interval", env("REPORT_INTERVAL"), &cfg.ReportInterval); err != nil {
		return err
	}
	if err := s.setDuration("sim-update-interval", env("SIM_UPDATE_INTERVAL"), &cfg.SimUpdateInterval); err != nil {
		return err
	}
	if err := s.setDuration("webhook-timeout", env("WEBHOOK_TIMEOUT"), &cfg.WebhookTimeout); err != nil {
		return err
	}

	ints := []struct {
		flag string
		key  string
		dst  *int
	}{
		{"port", "PORT", &cfg.Port},
		{"common-address", "COMMON_ADDRESS", &cfg.CommonAddress},
		{"originator-address", "ORIGINATOR_ADDRESS", &cfg.OriginatorAddress},
		{"queue-capacity", "QUEUE_CAPACITY", &cfg.QueueCapacity},
		{"workers", "WORKERS", &cfg.Workers},
		{"drop-log-threshold", "DROP_LOG_THRESHOLD", &cfg.DropLogThreshold},
		{"max-categories", "MAX_CATEGORIES", &cfg.MaxCategories},
		{"max-identifiers", "MAX_IDENTIFIERS", &cfg.MaxIdentifiers},
		{"sim-yx-num", "SIM_YX_NUM", &cfg.SimYXNum},
		{"sim-yc-num", "SIM_YC_NUM", &cfg.SimYCNum},
		{"sim-burst", "SIM_BURST", &cfg.SimBurst},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, env(i.key), i.dst); err != nil {
			return err
		}
	}

	if err := s.setFloatFromString("sim-rate", env("SIM_RATE"), &cfg.SimRate); err != nil {
		return err
	}

	s.setBoolFromString("reconnect", env("RECONNECT"), &cfg.Reconnect)
	s.setBoolFromString("detail", env("DETAIL"), &cfg.Detail)
	s.setBoolFromString("sim-ioa-merge", env("SIM_IOA_MERGE"), &cfg.SimIOAMerge)

	return nil
}
