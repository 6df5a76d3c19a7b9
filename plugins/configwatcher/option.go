package configwatcher

import "github.com/bft-labs/asdustat/pkg/asdustat"

// WithConfigWatcher returns an asdustat Option that enables config file
// watching. The watched file is asdustat.Config.ConfigPath.
//
// Usage:
//
//	a, err := asdustat.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) asdustat.Option {
	return asdustat.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher returns an asdustat Option that enables config
// watching with default settings.
//
// Usage:
//
//	a, err := asdustat.New(cfg, configwatcher.WithDefaultConfigWatcher())
func WithDefaultConfigWatcher() asdustat.Option {
	return WithConfigWatcher(DefaultConfig())
}
