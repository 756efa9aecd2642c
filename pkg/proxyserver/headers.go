package proxyserver

import "net/http"

// hopByHop lists headers meaningful only for a single transport hop;
// they are stripped before forwarding in either direction.
var hopByHop = []string{
	"Host", "Connection", "Keep-Alive", "Transfer-Encoding",
	"Proxy-Connection", "Te", "Upgrade",
}

// stripHopByHop removes hop-by-hop headers from h in place.
func stripHopByHop(h http.Header) {
	for _, name := range hopByHop {
		h.Del(name)
	}
}

// cloneHeader copies h, stripping hop-by-hop headers.
func cloneHeader(h http.Header) http.Header {
	out := h.Clone()
	stripHopByHop(out)
	return out
}
