// Package resolver determines the disposable-inbox address a message was
// actually sent to.
//
// Upstream delivery funnels all disposable-domain mail through one physical
// mailbox via forwarding, so the original per-user address survives only in
// forwarding metadata. That metadata is unreliable and must be probed in
// priority order, with domain validation so mail forwarded from unrelated
// sources is not mis-attributed.
package resolver

import (
	"strings"

	"github.com/inboxd/inboxd/helpers"
)

// forwardingHeaders in probe priority order.
var forwardingHeaders = []string{"X-Original-To", "Delivered-To", "X-Forwarded-To"}

// HeaderGetter is the case-insensitive header lookup exposed by the MIME
// parser.
type HeaderGetter interface {
	Get(key string) string
}

type Resolver struct {
	domains map[string]struct{}
}

// New builds a resolver that trusts forwarding headers only for the given
// served domains.
func New(domains []string) *Resolver {
	r := &Resolver{domains: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		r.domains[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return r
}

// Resolve returns the destination address for a message. It probes the
// forwarding headers in priority order and accepts the first address token
// whose domain is served; otherwise it falls back to the standard To
// recipients (joined with ", "), then to the raw To text, then to "".
// An empty result means the message is unaddressed: it is still stored, it
// just cannot be attributed to a specific inbox.
func (r *Resolver) Resolve(header HeaderGetter, toAddresses []string, toText string) string {
	for _, name := range forwardingHeaders {
		value := header.Get(name)
		if value == "" {
			continue
		}
		addr := helpers.ExtractAddressToken(value)
		if addr == "" {
			continue
		}
		if domain, ok := helpers.AddressDomain(addr); ok && r.served(domain) {
			return addr
		}
		// Address exists but points outside the served domains; keep
		// probing the remaining headers.
	}

	if len(toAddresses) > 0 {
		return strings.Join(toAddresses, ", ")
	}
	return toText
}

func (r *Resolver) served(domain string) bool {
	_, ok := r.domains[domain]
	return ok
}

// Served reports whether addr belongs to one of the served domains.
func (r *Resolver) Served(addr string) bool {
	domain, ok := helpers.AddressDomain(addr)
	return ok && r.served(domain)
}
