package caps

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/jsonrpc"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/untis"
)

const probeTimeout = 5 * time.Second

// RPCProber is the slice of the legacy client the negotiator needs.
type RPCProber interface {
	Call(ctx context.Context, method string, params any) (any, error)
	CallIntern(ctx context.Context, method string, params any) (any, error)
}

// VersionSniffer extracts the server version from the web frontend.
type VersionSniffer interface {
	SniffVersion(ctx context.Context) (string, error)
}

// Negotiator probes one server and keeps the result in the store.
type Negotiator struct {
	Server    string
	School    string
	Store     Store
	RPC       RPCProber
	RESTBases []string
	HTTP      *http.Client
	Sniff     VersionSniffer // optional

	// Now is the clock, swappable for freshness tests.
	Now func() time.Time
}

func NewNegotiator(server, school string, store Store, rpc RPCProber) *Negotiator {
	return &Negotiator{
		Server:    server,
		School:    school,
		Store:     store,
		RPC:       rpc,
		RESTBases: untis.RESTBaseURLs(server),
		HTTP:      &http.Client{Timeout: probeTimeout},
		Now:       time.Now,
	}
}

// Ensure returns the cached capabilities while they are fresh and reprobes
// once they have aged out.
func (n *Negotiator) Ensure(ctx context.Context) (ServerCapabilities, error) {
	if n.Store != nil {
		cached, ok, err := n.Store.LoadCapabilities(n.Server, n.School)
		if err != nil {
			log.Println("capability cache read failed:", err)
		} else if ok && cached.Fresh(n.Now()) {
			return cached, nil
		}
	}

	return n.Probe(ctx)
}

// Probe checks every protocol from scratch and persists the result. The
// probe itself never fails; an unreachable server simply supports nothing
// but the HTML fallback.
func (n *Negotiator) Probe(ctx context.Context) (ServerCapabilities, error) {
	c := ServerCapabilities{
		Server:       n.Server,
		School:       n.School,
		SupportsHTML: true,
		LastChecked:  n.Now(),
	}
	c.SupportsREST = n.probeREST(ctx)
	c.SupportsLegacy, c.EnhancedMethods = n.probeRPC(ctx)
	if n.Sniff != nil {
		if version, err := n.Sniff.SniffVersion(ctx); err == nil {
			c.ServerVersion = version
		}
	}
	if n.Store != nil {
		if err := n.Store.SaveCapabilities(c); err != nil {
			log.Println("capability cache write failed:", err)
		}
	}

	return c, nil
}

// probeREST pokes an unauthenticated REST resource. A 401/403 answer still
// proves the API exists; only a server-side failure or no answer at all
// counts against it.
func (n *Negotiator) probeREST(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	for _, base := range n.RESTBases {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/view/v1/app/info", nil)
		if err != nil {
			continue
		}
		resp, err := n.HTTP.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			return false
		}

		return true
	}

	return false
}

// probeRPC issues the cheapest known method. Any answer, even an error
// object, proves the servlet is there; each enhanced method is then probed
// by name, and only an explicit method-not-found rules one out.
func (n *Negotiator) probeRPC(ctx context.Context) (bool, []string) {
	if n.RPC == nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if _, err := n.RPC.Call(ctx, "getLatestImportTime", nil); untis.IsTransport(err) {
		return false, nil
	}
	var enhanced []string
	for _, method := range jsonrpc.EnhancedMethods {
		_, err := n.RPC.CallIntern(ctx, method, []any{map[string]any{}})
		if err == nil {
			enhanced = append(enhanced, method)
			continue
		}
		if untis.IsTransport(err) {
			break
		}
		var se *untis.ServerError
		if errors.As(err, &se) && se.IsMethodNotFound() {
			continue
		}
		enhanced = append(enhanced, method)
	}

	return true, enhanced
}
