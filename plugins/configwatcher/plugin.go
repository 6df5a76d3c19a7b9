// Package configwatcher provides config file monitoring for asdustat.
// When enabled, it watches the pipeline's TOML config file and applies the
// runtime-reloadable settings (detail, drop_log_threshold, report_interval)
// when it changes.
package configwatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/asdustat/internal/cliconfig"
	"github.com/bft-labs/asdustat/pkg/asdustat"
	"github.com/bft-labs/asdustat/pkg/log"
)

// Plugin watches the config file and applies changes through the
// pipeline's Controller.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	retryInterval time.Duration
	maxRetries    int
	debounceDelay time.Duration

	// Runtime state
	path     string
	logger   asdustat.Logger
	ctrl     asdustat.Controller
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
	reloads  atomic.Uint64
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// RetryInterval is the delay between attempts when the file cannot be
	// read or parsed, e.g. while an editor is still writing it.
	// Default: 500 milliseconds
	RetryInterval time.Duration

	// MaxRetries bounds the attempts per change.
	// Default: 3
	MaxRetries int

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RetryInterval: 500 * time.Millisecond,
		MaxRetries:    3,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	def := DefaultConfig()
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = def.DebounceDelay
	}

	return &Plugin{
		retryInterval: cfg.RetryInterval,
		maxRetries:    cfg.MaxRetries,
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Reloads returns how many times the file was applied successfully.
func (p *Plugin) Reloads() uint64 {
	return p.reloads.Load()
}

// Initialize starts watching cfg.ConfigPath. Without a path or a
// controller the plugin stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg asdustat.PluginConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	p.mu.Lock()
	p.path = cfg.ConfigPath
	p.logger = logger
	p.ctrl = cfg.Controller
	p.mu.Unlock()

	if cfg.ConfigPath == "" || cfg.Controller == nil {
		logger.Warn("config watcher disabled: no config file")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(cfg.ConfigPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("config watcher: watch %s: %w", filepath.Dir(cfg.ConfigPath), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	logger.Info("config watcher plugin initialized", log.String("path", cfg.ConfigPath))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)
	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// watchLoop watches the config directory and reloads on changes to the
// config file. Editors that replace the file show up as Create.
func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		p.reloadWithRetry(ctx)
	})
}

// reloadWithRetry retries until the file parses, MaxRetries is reached or
// ctx is done.
func (p *Plugin) reloadWithRetry(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		err := p.reload()
		if err == nil {
			return
		}
		if attempt >= p.maxRetries {
			p.logger.Error("config watcher: reload failed, keeping current settings",
				log.String("path", p.path),
				log.Int("attempts", attempt),
				log.Err(err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.retryInterval):
		}
	}
}

// reload reads the file and applies the reloadable settings. Settings
// absent from the file are left unchanged.
func (p *Plugin) reload() error {
	fc, err := cliconfig.LoadFileConfig(p.path)
	if err != nil {
		return err
	}
	if fc.DropLogThreshold < 0 {
		return fmt.Errorf("drop_log_threshold must be positive, got %d", fc.DropLogThreshold)
	}
	var interval time.Duration
	if fc.ReportInterval != "" {
		if interval, err = time.ParseDuration(fc.ReportInterval); err != nil {
			return fmt.Errorf("report_interval: %w", err)
		}
		if interval <= 0 {
			return fmt.Errorf("report_interval must be positive, got %s", interval)
		}
	}

	if fc.Detail != nil && *fc.Detail != p.ctrl.Detail() {
		p.ctrl.SetDetail(*fc.Detail)
	}
	if fc.DropLogThreshold > 0 && fc.DropLogThreshold != p.ctrl.DropLogThreshold() {
		p.ctrl.SetDropLogThreshold(fc.DropLogThreshold)
	}
	if interval > 0 && interval != p.ctrl.ReportInterval() {
		if err := p.ctrl.SetReportInterval(interval); err != nil {
			return err
		}
	}

	p.reloads.Add(1)
	p.logger.Info("config watcher: applied configuration",
		log.Bool("detail", p.ctrl.Detail()),
		log.Int("drop_log_threshold", p.ctrl.DropLogThreshold()),
		log.Duration("report_interval", p.ctrl.ReportInterval()))
	return nil
}

// Ensure Plugin implements asdustat.Plugin.
var _ asdustat.Plugin = (*Plugin)(nil)
