// Package telemetry wraps OpenTelemetry SDK initialization for boardflow:
// one central place configuring the TracerProvider and MeterProvider that
// back the engine's spans. When telemetry is disabled the global providers
// stay noop and nothing connects to an external collector.
package telemetry
