// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Connection]: the protocol session (connect, STARTDT, interrogation, commands)
//   - [ASDUHandler]: the receive callback the protocol layer invokes per decoded ASDU
//   - [ReportSink]: a destination for interval reports (console, MQTT, webhook)
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them.
package ports
