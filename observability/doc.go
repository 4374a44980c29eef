// Package observability provides ready-made lifecycle extensions: an
// OpenTelemetry MetricsExtension recording system-wide delivery counters,
// and a LoggingExtension emitting a structured log line per lifecycle event.
//
// For per-attempt tracing and latency histograms, see the middleware
// package: middleware.Tracing() and middleware.Metrics().
package observability
