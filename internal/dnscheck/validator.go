package dnscheck

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// ErrRecordNotFound is returned when a domain does not resolve to the
// expected address. Callers treat it as an ownership mismatch, not an outage.
var ErrRecordNotFound = errors.New("DNS record not found")

// Resolver abstracts DNS A-record lookups so tests can run without a network.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Validator decides whether a candidate hostname may be assigned to an app.
// Reserved prefixes are the installable template names; a subdomain of the
// platform root must not claim or shadow one of them.
type Validator struct {
	resolver   Resolver
	rootDomain string
	reserved   []string
	timeout    time.Duration
}

// NewValidator builds a validator. A nil resolver falls back to the system
// resolver; timeout bounds every lookup.
func NewValidator(resolver Resolver, rootDomain string, reservedPrefixes []string, timeout time.Duration) *Validator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reserved := make([]string, 0, len(reservedPrefixes))
	for _, p := range reservedPrefixes {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			reserved = append(reserved, p)
		}
	}
	return &Validator{
		resolver:   resolver,
		rootDomain: strings.ToLower(strings.TrimSpace(rootDomain)),
		reserved:   reserved,
		timeout:    timeout,
	}
}

// ResolveHost resolves host to its first IPv4 address. "localhost" short
// circuits to 127.0.0.1 without network I/O. Resolution failures return
// ok=false rather than an error; callers use the result as a boolean gate.
func (v *Validator) ResolveHost(ctx context.Context, host string) (string, bool) {
	if strings.EqualFold(strings.TrimSpace(host), "localhost") {
		return "127.0.0.1", true
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", false
	}
	for _, addr := range addrs {
		if ip4 := addr.IP.To4(); ip4 != nil {
			return ip4.String(), true
		}
	}
	return "", false
}

// VerifyRecord re-resolves host and compares against expectedIP. It runs
// after a user has asserted ownership of a domain, so unlike ResolveHost it
// fails loudly: any mismatch or resolution failure is ErrRecordNotFound.
// "localhost" always verifies.
func (v *Validator) VerifyRecord(ctx context.Context, host, expectedIP string) error {
	if strings.EqualFold(strings.TrimSpace(host), "localhost") {
		return nil
	}
	resolved, ok := v.ResolveHost(ctx, host)
	if !ok || resolved != expectedIP {
		return ErrRecordNotFound
	}
	return nil
}

// IsAcceptable reports whether candidate may be assigned to an app. The
// candidate must be a syntactically valid hostname. Under the platform root
// domain the left-most label must not equal, or start with, a reserved
// template name; fully custom domains skip the prefix rule.
func (v *Validator) IsAcceptable(candidate string) bool {
	host := strings.ToLower(strings.TrimSpace(candidate))
	if !ValidHostname(host) {
		return false
	}
	if v.rootDomain == "" {
		return true
	}
	if host == v.rootDomain {
		return false
	}
	if !strings.HasSuffix(host, "."+v.rootDomain) {
		return true
	}

	label := host[:strings.IndexByte(host, '.')]
	for _, prefix := range v.reserved {
		if strings.HasPrefix(label, prefix) {
			return false
		}
	}
	return true
}

// ValidHostname checks RFC 1123 hostname syntax.
func ValidHostname(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if !validLabel(label) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if label == "" || len(label) > 63 {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}
