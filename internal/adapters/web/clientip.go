package web

import (
	"net"
	"net/http"
	"strings"

	"github.com/mikey/contact-guard/internal/core"
)

// ClientIP resolves the submitter address: the first X-Forwarded-For entry
// when forwarded headers are trusted, otherwise the peer address. It returns
// "" when nothing parses as an IP.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
			first, _, _ := strings.Cut(xf, ",")
			if ip := core.NormalizeIP(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return core.NormalizeIP(host)
}
