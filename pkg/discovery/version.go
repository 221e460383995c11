package discovery

import "strings"

// Version information for the discovery module.
const (
	// Version is the current version of the discovery module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"

	// ProtocolVersion is the wire protocol version carried in every event.
	ProtocolVersion = "0.1.0"
)

// protocolCompatible reports whether a peer's wire version shares our major version.
func protocolCompatible(v string) bool {
	return major(v) == major(ProtocolVersion)
}

func major(v string) string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexByte(v, '.'); i >= 0 {
		return v[:i]
	}
	return v
}
