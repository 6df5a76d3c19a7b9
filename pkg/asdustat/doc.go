// Package asdustat provides an embeddable ASDU statistics pipeline for
// IEC 60870-5-104 style clients.
//
// The pipeline sits beside the protocol layer: every received ASDU is
// cloned onto a bounded, drop-on-full queue, a fixed worker pool folds the
// queue into a per-category aggregation table, and once per interval the
// table is snapshotted, reset and published as a [Report] to every
// configured [ReportSink]. It can be used through the asdustat CLI or
// embedded as a library.
//
// # Basic Usage
//
//	cfg := asdustat.Config{
//	    CommonAddress:  1,
//	    ReportInterval: time.Second,
//	}
//
//	a, err := asdustat.New(cfg, asdustat.WithSink(mySink))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := a.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := a.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//	_ = a.Close()
//
// # Connections
//
// Without [WithConnection] the pipeline attaches to a built-in simulated
// outstation configured by [Config.Sim]. A real protocol stack plugs in by
// implementing [Connection]; the pipeline registers its receive callback
// and connection event handler on it during [New].
//
// # Commands
//
// [Asdustat.Dispatch] sends a single command or a scaled set-point, either
// as direct execute or select-before-operate, on the live session.
// Confirmations arrive through the normal receive path and are counted
// like any other ASDU.
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler]) and pass it via
// [WithEventHandler] to observe lifecycle transitions, connection events
// and every published report. Events are delivered synchronously.
//
// # Lifecycle States
//
// An instance is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. A session that fails without
// reconnect moves the instance to [StateCrashed]; it may be started again.
//
// # Plugins
//
// Plugins are initialized in registration order on Start and shut down in
// reverse order on Stop. They receive a [Controller] for the settings that
// may change at runtime (detail, drop log threshold, report interval):
//
//	import "github.com/bft-labs/asdustat/plugins/configwatcher"
//
//	a, err := asdustat.New(cfg, configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()))
package asdustat
