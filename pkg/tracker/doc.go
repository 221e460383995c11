// Package tracker records the progress of multi-stage wallet operations.
//
// Transactions on some chains pass through long, indeterminate phases
// (simulation, proof generation, sending, confirmation). A [Tracker] keeps
// one [Record] per operation with its current [Status] and timestamped
// stages, independent of the chain that produced it.
//
// Tracking never aborts the underlying operation: stage calls on unknown
// records are silently ignored, and status changes after a terminal status
// are dropped. A record reaches at most one terminal status, confirmed or
// failed. When a session ends, [Tracker.FailAllForSession] fails every
// outstanding record tied to it.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package tracker
