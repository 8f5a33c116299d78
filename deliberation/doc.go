/*
Package deliberation implements the round-based consensus orchestration
engine: a committee of distinct-perspective participants deliberates a
proposal over bounded rounds until it converges, deadlocks, or exhausts the
round budget.

The Session drives the round state machine
(INITIAL -> MIDDLE* -> FINAL -> VOTING? -> TERMINATED), fanning position
requests out to participants each round, scoring agreement with the pairwise
consensus metric, watching the metric history for stalls, and handing off to
the voting package when deliberation ends without convergence. Each session
produces exactly one Decision.

Participants are external reasoning collaborators behind the Participant
interface; this package never generates arguments itself. Sessions are fully
self-contained: no global state is shared, so independent sessions may run
concurrently.
*/
package deliberation
