// Capability negotiation: which protocols a server speaks is probed once,
// cached per server and school, and re-checked after an hour.
package caps

import (
	"time"

	"golang.org/x/exp/slices"
)

// Protocol names in the order code talks about them.
const (
	ProtocolREST = "rest"
	ProtocolRPC  = "rpc"
	ProtocolHTML = "html"
)

// FreshFor is how long a probe result stays authoritative.
const FreshFor = time.Hour

// ServerCapabilities is the cached probe result for one server and school.
type ServerCapabilities struct {
	Server          string
	School          string
	SupportsLegacy  bool
	SupportsREST    bool
	SupportsHTML    bool
	EnhancedMethods []string
	ServerVersion   string
	LastChecked     time.Time
}

// Fresh reports whether the probe result is still recent enough to use.
func (c ServerCapabilities) Fresh(now time.Time) bool {
	return !c.LastChecked.IsZero() && now.Sub(c.LastChecked) < FreshFor
}

// SupportsEnhanced reports whether the 2017-era method answered the probe.
func (c ServerCapabilities) SupportsEnhanced(method string) bool {
	return slices.Contains(c.EnhancedMethods, method)
}

// Supports reports support for one protocol by name.
func (c ServerCapabilities) Supports(protocol string) bool {
	switch protocol {
	case ProtocolREST:
		return c.SupportsREST
	case ProtocolRPC:
		return c.SupportsLegacy
	case ProtocolHTML:
		return c.SupportsHTML
	}

	return false
}

// TryOrder lists the supported protocols in the order authentication
// should attempt them.
func (c ServerCapabilities) TryOrder(preferREST bool) []string {
	order := []string{ProtocolRPC, ProtocolREST, ProtocolHTML}
	if preferREST {
		order = []string{ProtocolREST, ProtocolRPC, ProtocolHTML}
	}
	var out []string
	for _, p := range order {
		if c.Supports(p) {
			out = append(out, p)
		}
	}

	return out
}

// Store persists probe results between runs.
type Store interface {
	LoadCapabilities(server, school string) (ServerCapabilities, bool, error)
	SaveCapabilities(c ServerCapabilities) error
}
