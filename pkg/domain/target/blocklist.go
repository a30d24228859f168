package target

import (
	"net/netip"
	"strings"
)

// blockedPrefixes are address ranges that must never be scanned: private,
// loopback, link-local, CGNAT, and other reserved space.
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Blocked reports whether the target value falls in reserved address space
// and must be rejected at scan creation. Domains are only blocked when they
// resolve trivially to the local host by name.
func Blocked(value string, typ Type) bool {
	switch typ {
	case TypeIP:
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return false
		}
		return addrBlocked(addr)
	case TypeCIDR:
		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return false
		}
		if addrBlocked(prefix.Addr()) {
			return true
		}
		for _, blocked := range blockedPrefixes {
			if prefix.Overlaps(blocked) {
				return true
			}
		}
		return false
	case TypeDomain:
		host := strings.ToLower(strings.TrimSuffix(value, "."))
		return host == "localhost" || strings.HasSuffix(host, ".localhost") ||
			strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal")
	}
	return false
}

func addrBlocked(addr netip.Addr) bool {
	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
