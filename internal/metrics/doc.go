// Package metrics provides internal Prometheus metrics collection for the
// deliberation engine. This package is internal and should not be imported by
// external projects.
//
// The Collector exposes counters, histograms and gauges covering rounds,
// decisions, votes, carry-forwards and decision store operations. Its
// Observer adapter lets a session report progress without knowing about
// Prometheus.
package metrics
