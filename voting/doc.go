/*
Package voting aggregates final participant preferences into a collective
decision when deliberation ends without full convergence.

Three protocols are supported, selected once per session:

  - simple_majority    — weighted approve vs. reject, abstentions excluded,
    ties resolve to deadlocked
  - weighted_threshold — approved iff the weighted approve fraction reaches
    the configured threshold
  - delphi             — a bounded sequence of anonymous re-votes; between
    rounds participants see only the aggregate distribution, and the final
    round resolves via weighted threshold

Protocols are polymorphic over the Caster capability, which requests one vote
per participant. Duplicate votes in a non-Delphi protocol are not errors: the
first vote stands and the anomaly is recorded on the Tally.
*/
package voting
