// Package connection drives wallet connections through their lifecycle.
//
// A [Manager] discovers the requested wallet over the discovery protocol,
// hands the wallet-specific handshake to an [Adapter], and records the
// result in a session registry. Each wallet moves through a small state
// machine:
//
//	idle -> connecting -> connected
//	connected -> reconnecting -> connected | disconnected
//	any -> error (unrecoverable failure)
//
// disconnected and error are terminal until a fresh Connect.
//
// # Basic Usage
//
//	mgr, err := connection.New(requester, factory, connection.DefaultConfig(),
//	    connection.WithLogger(logger),
//	    connection.WithStorage(storage.NewMemoryStorage()),
//	)
//	if err != nil {
//	    return err
//	}
//	defer mgr.Close()
//
//	sess, err := mgr.Connect(ctx, "io.metamask", connection.ConnectOptions{
//	    Required: discovery.CapabilityRequirement{
//	        Technologies: []discovery.Technology{{Type: "evm"}},
//	    },
//	})
//
// # Errors
//
// Every error returned by the Manager is a *walleterr.ModalError. Use
// errors.Is with the walleterr sentinels, or inspect Category and
// RecoveryStrategy to decide what to show the user.
//
// # Ordering
//
// Operations on one wallet are serialized: a second Connect or SwitchChain
// issued while another operation is in flight is rejected with
// invalid_state. Disconnect is the exception; it cancels the in-flight
// operation, which then returns a cancelled error.
//
// # Events
//
// Implement [EventHandler] (embedding [BaseEventHandler]) and pass it via
// [WithEventHandler] to observe state changes, classified errors and
// reconnect attempts. Handlers run synchronously and should return quickly.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package connection
