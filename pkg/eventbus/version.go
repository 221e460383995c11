package eventbus

// Version information for the eventbus module.
const (
	// Version is the current version of the eventbus module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)
