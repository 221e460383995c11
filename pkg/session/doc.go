// Package session holds the registry of wallet sessions.
//
// The [Registry] is the single source of truth for [Session] records. It
// owns the one "active session" slot and exposes a single mutator,
// [Registry.SwitchActive], that reassigns it atomically: observers never see
// zero or two active sessions as a result of a switch.
//
// Status changes are validated against the session state machine:
//
//	connecting   -> connected, disconnected, error
//	connected    -> reconnecting, disconnected, error
//	reconnecting -> connected, disconnected, error
//	disconnected, error: terminal
//
// Ending a session marks it disconnected, clears it from the active slot and
// notifies the configured [TerminationHook] so outstanding transactions
// bound to the session are failed. All methods are synchronous and perform
// no I/O.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package session
