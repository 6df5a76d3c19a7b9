package asdustat

import (
	"fmt"
	"time"

	"github.com/bft-labs/asdustat/internal/adapters/sim"
	"github.com/bft-labs/asdustat/internal/app"
	"github.com/bft-labs/asdustat/internal/domain"
	"github.com/bft-labs/asdustat/internal/queue"
	"github.com/bft-labs/asdustat/internal/stats"
)

// Config holds pipeline settings. Zero values are replaced by SetDefaults.
type Config struct {
	// CommonAddress is the station address used for interrogations and
	// for commands that do not carry their own.
	CommonAddress uint16
	// Originator is the originator address stamped on commands.
	Originator uint8

	StartDTDelay       time.Duration
	InterrogationDelay time.Duration
	Reconnect          bool
	ReconnectMax       time.Duration

	QueueCapacity    int
	Workers          int
	DequeueWait      time.Duration
	DropLogThreshold int

	ReportInterval time.Duration
	// RetryDelay is the pause after a failed report cycle.
	RetryDelay time.Duration
	Detail     bool

	MaxCategories  int
	MaxIdentifiers int

	// Sim configures the built-in simulated station used when no
	// connection is supplied with WithConnection.
	Sim SimConfig

	// ConfigPath is the file plugins may watch for runtime changes.
	ConfigPath string
}

// SimConfig mirrors the simulated station settings.
type SimConfig struct {
	YXCount        int
	YCCount        int
	IOAMerge       bool
	UpdateInterval time.Duration
	// Rate caps simulated messages per second; zero is unlimited.
	Rate  float64
	Burst int
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.CommonAddress == 0 {
		c.CommonAddress = 1
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = queue.DefaultCapacity
	}
	if c.Workers == 0 {
		c.Workers = app.DefaultWorkers
	}
	if c.DequeueWait == 0 {
		c.DequeueWait = queue.DefaultWait
	}
	if c.DropLogThreshold == 0 {
		c.DropLogThreshold = queue.DefaultDropLogThreshold
	}
	if c.ReportInterval == 0 {
		c.ReportInterval = app.DefaultReportInterval
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = app.DefaultRetryDelay
	}
	if c.MaxCategories == 0 {
		c.MaxCategories = stats.DefaultMaxCategories
	}
	if c.MaxIdentifiers == 0 {
		c.MaxIdentifiers = stats.DefaultMaxIdentifiers
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = app.DefaultBackoffMax
	}
	if c.Sim.Burst == 0 {
		c.Sim.Burst = sim.DefaultBurst
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.QueueCapacity < 0:
		return fmt.Errorf("%w: queue capacity must be positive", domain.ErrInvalidConfig)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be positive", domain.ErrInvalidConfig)
	case c.DequeueWait < 0:
		return fmt.Errorf("%w: dequeue wait must be positive", domain.ErrInvalidConfig)
	case c.DropLogThreshold < 0:
		return fmt.Errorf("%w: drop log threshold must be positive", domain.ErrInvalidConfig)
	case c.ReportInterval < 0:
		return fmt.Errorf("%w: report interval must be positive", domain.ErrInvalidConfig)
	case c.StartDTDelay < 0 || c.InterrogationDelay < 0:
		return fmt.Errorf("%w: start sequence delays must not be negative", domain.ErrInvalidConfig)
	case c.Sim.YXCount < 0 || c.Sim.YCCount < 0 || c.Sim.Rate < 0:
		return fmt.Errorf("%w: simulator settings must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

func (c *Config) simConfig() sim.Config {
	return sim.Config{
		CommonAddress:  c.CommonAddress,
		YXCount:        c.Sim.YXCount,
		YCCount:        c.Sim.YCCount,
		IOAMerge:       c.Sim.IOAMerge,
		UpdateInterval: c.Sim.UpdateInterval,
		Rate:           c.Sim.Rate,
		Burst:          c.Sim.Burst,
	}
}
