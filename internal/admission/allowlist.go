package admission

import (
	"fmt"
	"net/netip"
	"strings"
)

// Allowlist is the fixed set of client origins allowed to attempt
// authentication. Entries are single addresses or CIDR prefixes.
// It is read-only after construction.
type Allowlist struct {
	addrs    map[netip.Addr]struct{}
	prefixes []netip.Prefix
}

// ParseAllowlist builds an Allowlist from addresses such as "192.168.50.1"
// or prefixes such as "10.0.0.0/8".
func ParseAllowlist(entries []string) (*Allowlist, error) {
	a := &Allowlist{addrs: make(map[netip.Addr]struct{}, len(entries))}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid allowed origin %q: %w", raw, err)
			}
			a.prefixes = append(a.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed origin %q: %w", raw, err)
		}
		a.addrs[normalize(addr)] = struct{}{}
	}
	return a, nil
}

// Contains reports whether origin is allowed. Anything that does not parse
// as an IP address is rejected.
func (a *Allowlist) Contains(origin string) bool {
	if a == nil {
		return false
	}
	addr, err := netip.ParseAddr(origin)
	if err != nil {
		return false
	}
	addr = normalize(addr)
	if _, ok := a.addrs[addr]; ok {
		return true
	}
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.addrs) + len(a.prefixes)
}

// normalize maps IPv4-in-IPv6 addresses to plain IPv4 and drops zones.
func normalize(addr netip.Addr) netip.Addr {
	return addr.Unmap().WithZone("")
}
