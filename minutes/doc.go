// Package minutes renders deliberation sessions as human-readable markdown
// minutes: the proposal, the round-by-round positions and metrics, the vote
// tally when a voting phase ran, and the final outcome.
package minutes
