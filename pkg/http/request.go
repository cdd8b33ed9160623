package http

import (
	"net"
	"net/http"
	"strings"
)

// IPConfig declares which proxies are allowed to speak for the client.
// Forwarding headers are honored only when the direct peer falls inside one
// of these CIDR ranges; from anyone else they are attacker-controlled input.
type IPConfig struct {
	TrustedProxies []string
}

// ExtractClientIP resolves the client address that the failed-login counters
// and audit records are keyed on. When the request arrives through a trusted
// proxy, the first valid entry of X-Forwarded-For wins, then X-Real-IP;
// otherwise the socket peer address is used as-is.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer := peerAddress(r)

	if config == nil || !withinTrustedProxies(peer, config.TrustedProxies) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, candidate := range strings.Split(xff, ",") {
			candidate = strings.TrimSpace(candidate)
			if net.ParseIP(candidate) != nil {
				return candidate
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}

	return peer
}

// peerAddress strips the port from RemoteAddr when one is present.
func peerAddress(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}

func withinTrustedProxies(ip string, trustedProxies []string) bool {
	peer := net.ParseIP(ip)
	if peer == nil {
		return false
	}

	for _, cidr := range trustedProxies {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			// Malformed entries are ignored rather than widening trust.
			continue
		}
		if ipNet.Contains(peer) {
			return true
		}
	}

	return false
}
