package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may call the API and open the
// events websocket. Requests without an Origin header (CLI tools, curl) and
// same-origin requests are always allowed. With no configured origins only
// loopback hosts are trusted; "*" trusts everyone.
type OriginPolicy struct {
	any     bool
	allowed map[string]struct{}
}

// NewOriginPolicy builds a policy from exact origins such as
// "http://localhost:5173" or "https://editor.example.com".
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = normalizeOrigin(o)
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed[o] = struct{}{}
		}
	}
	return p
}

// Allow reports whether r's Origin header is trusted.
func (p *OriginPolicy) Allow(r *http.Request) bool {
	origin := normalizeOrigin(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if p == nil {
		return sameOrigin(origin, r.Host)
	}
	if p.any {
		return true
	}
	if sameOrigin(origin, r.Host) {
		return true
	}
	if _, ok := p.allowed[origin]; ok {
		return true
	}
	if len(p.allowed) == 0 {
		u, err := url.Parse(origin)
		return err == nil && isLoopback(u.Hostname())
	}
	return false
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

func sameOrigin(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, host)
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
