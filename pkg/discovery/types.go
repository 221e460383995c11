package discovery

// Event type discriminators.
const (
	EventRequest  = "discovery:wallet:request"
	EventResponse = "discovery:wallet:response"
)

// Well-known technology identifiers.
const (
	TechnologyEVM    = "evm"
	TechnologySolana = "solana"
	TechnologyAztec  = "aztec"
)

// Technology is one technology entry, used both for requirements and for
// advertised capabilities.
type Technology struct {
	Type       string   `json:"type"`
	Interfaces []string `json:"interfaces"`
	Features   []string `json:"features"`
}

// CapabilityRequirement is the set of capabilities a requester needs.
type CapabilityRequirement struct {
	Technologies []Technology `json:"technologies"`
	Features     []string     `json:"features"`
}

// InitiatorInfo identifies the requesting dApp.
type InitiatorInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon,omitempty"`
}

// TransportConfig tells the requester how to reach the wallet. Its contents
// are opaque to discovery.
type TransportConfig struct {
	Type          string         `json:"type"`
	ExtensionID   string         `json:"extensionId,omitempty"`
	PopupURL      string         `json:"popupUrl,omitempty"`
	Origin        string         `json:"origin,omitempty"`
	WalletAdapter string         `json:"walletAdapter,omitempty"`
	AdapterConfig map[string]any `json:"adapterConfig,omitempty"`
}

// ResponderInfo describes a wallet and everything it supports.
type ResponderInfo struct {
	Name            string          `json:"name" toml:"name"`
	Icon            string          `json:"icon" toml:"icon"`
	RDNS            string          `json:"rdns" toml:"rdns"`
	UUID            string          `json:"uuid" toml:"uuid"`
	Version         string          `json:"version" toml:"version"`
	TransportConfig TransportConfig `json:"transportConfig" toml:"transport"`
	Technologies    []Technology    `json:"technologies" toml:"technologies"`
	Features        []string        `json:"features" toml:"features"`
}

// Request is the discovery query broadcast by a requester.
type Request struct {
	Type          string                `json:"type"`
	Version       string                `json:"version"`
	SessionID     string                `json:"sessionId"`
	Required      CapabilityRequirement `json:"required"`
	Origin        string                `json:"origin"`
	InitiatorInfo InitiatorInfo         `json:"initiatorInfo"`
}

// Matched carries the subset of a requirement a responder satisfied.
type Matched struct {
	Required CapabilityRequirement `json:"required"`
}

// Response is a responder's answer to a Request.
type Response struct {
	Type            string          `json:"type"`
	Version         string          `json:"version"`
	SessionID       string          `json:"sessionId"`
	ResponderID     string          `json:"responderId"`
	RDNS            string          `json:"rdns"`
	Name            string          `json:"name"`
	Icon            string          `json:"icon,omitempty"`
	Matched         Matched         `json:"matched"`
	TransportConfig TransportConfig `json:"transportConfig"`
}

// dedupeKey identifies the responder that produced r.
func (r Response) dedupeKey() string {
	if r.ResponderID != "" {
		return r.ResponderID
	}
	return r.RDNS
}
