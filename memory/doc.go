// Package memory provides persistent decision archives for boardflow.
//
// A DecisionStore keeps the full audited Decision of every completed
// deliberation so that outcomes stay reviewable after the session is gone.
//
// Supported backends:
//   - Memory: for development and testing (default)
//   - Redis: for distributed deployments
//   - SQLite: for single-node deployments with durable history
package memory
