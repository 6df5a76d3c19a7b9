package asdustat

import (
	"context"
	"time"
)

// Plugin extends the pipeline with optional behavior tied to its lifecycle.
type Plugin interface {
	// Name identifies the plugin in logs.
	Name() string

	// Initialize is called from Start before any pipeline goroutine runs.
	// ctx is canceled when the pipeline stops. An error aborts Start.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called from Stop after the pipeline goroutines exit.
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to plugins on Initialize.
type PluginConfig struct {
	// ConfigPath is the configuration file the pipeline was started from,
	// empty when none was used.
	ConfigPath string

	Logger Logger

	// Controller exposes the settings that can change while running.
	Controller Controller
}

// Controller is the runtime control surface available to plugins.
type Controller interface {
	SetDetail(on bool)
	Detail() bool
	SetDropLogThreshold(n int)
	DropLogThreshold() int
	SetReportInterval(d time.Duration) error
	ReportInterval() time.Duration
}
