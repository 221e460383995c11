// Package eventbus provides a minimal in-process publish/subscribe dispatcher.
//
// A Bus stands in for the page-local event target shared by a dApp and the
// wallets injected into the same context. Events carry a type discriminator
// and an opaque payload, typically the JSON encoding of a discovery message.
//
// Delivery is synchronous and at-least-once within the process: Publish
// invokes every handler subscribed to the event type, in subscription order,
// before returning. Handlers may publish further events; the bus holds no
// lock while handlers run.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package eventbus
