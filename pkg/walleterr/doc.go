// Package walleterr defines the typed error taxonomy used across walletmesh.
//
// Every failure that leaves the connection layer is a [*ModalError]: a code
// and message for humans, a user-facing [Category], a root-cause
// [Classification], and a [RecoveryStrategy] with a retry budget. UI layers
// branch on Category and RecoveryStrategy instead of matching strings, so a
// user cancellation is distinguishable from a wallet failure.
//
// [Classify] converts any value (error, string, decoded JSON object, or an
// existing ModalError) into a ModalError. It never panics and is
// idempotent: classifying a ModalError returns it unchanged.
//
// An empty RecoveryStrategy is accepted on input and treated exactly like
// [RecoveryNone]; values produced by this package always carry an explicit
// strategy.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package walleterr
