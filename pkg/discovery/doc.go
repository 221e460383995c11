// Package discovery implements the wallet discovery protocol.
//
// A dApp (the requester) broadcasts a capability query on a shared
// [eventbus.PubSub]; every wallet (the responder) that satisfies the query
// and passes its security gate answers with its identity and transport
// configuration. Neither side needs prior knowledge of the other.
//
// # Wire format
//
// Events are JSON objects with a "type" discriminator, a "version" string
// and a "sessionId" correlation field:
//
//	{"type":"discovery:wallet:request","version":"0.1.0","sessionId":"…",
//	 "required":{"technologies":[{"type":"evm","interfaces":["eip-1193"],"features":[]}],
//	             "features":["account-management"]},
//	 "origin":"https://app.example","initiatorInfo":{"name":"…","url":"…","icon":"…"}}
//
//	{"type":"discovery:wallet:response","version":"0.1.0","sessionId":"…",
//	 "responderId":"…","rdns":"com.example.wallet","name":"…","icon":"…",
//	 "matched":{"required":{…}},"transportConfig":{"type":"extension",…}}
//
// A response echoes only the matched subset of the requirement, never the
// responder's full capability list.
//
// # Security
//
// Before answering, a responder rejects requests whose declared origin is
// not its own page origin (localhost is accepted only when the policy allows
// it), rejects non-HTTPS origins when HTTPS is required, and silently drops
// requests once an origin exceeds the sliding-window rate limit.
//
// Discovery never fails loudly: an unqualified or rejected request simply
// produces no response. Collection windows are chosen by the caller.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
// Wire protocol version: 0.1.0
package discovery
