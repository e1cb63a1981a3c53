package server

import (
	"net"
	"net/http"
	"net/netip"
)

// clientAddr derives the client IP for a request and classifies it.
//
// When the transport peer is a loopback/private address the request is
// assumed to come through a local reverse proxy, so X-Real-IP is
// trusted when present. The returned isLocal reflects the resulting
// address, not the transport peer.
func clientAddr(r *http.Request) (ip string, isLocal bool) {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}

	ip = peer
	if isPrivateAddr(peer) {
		if real := r.Header.Get("X-Real-IP"); real != "" {
			ip = real
		}
	}

	return ip, isPrivateAddr(ip)
}

// isPrivateAddr reports whether s parses as a loopback, RFC 1918 or
// link-local address.
func isPrivateAddr(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}
