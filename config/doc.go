// Package config provides configuration management for boardflow.
//
// Configuration is loaded in layers: built-in defaults, then an optional
// YAML file, then environment variables with the BOARDFLOW prefix. The
// resulting Config feeds the deliberation engine, the decision stores and
// the telemetry bootstrap.
package config
