package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/gorilla/websocket"
)

// newUpgrader accepts same-origin, localhost and local network origins
func newUpgrader(logger logging.Logger) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowedOrigin(origin, r.Host) {
				return true
			}
			logger.Warn("Rejected WebSocket connection", logging.Fields{"origin": origin})
			return false
		},
	}
}

// allowedOrigin reports whether a browser page at origin may use the control
// socket served on host. An empty origin is a non-browser client.
func allowedOrigin(origin, host string) bool {
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if strings.EqualFold(u.Host, host) {
		return true
	}

	hostname := u.Hostname()
	if strings.EqualFold(hostname, "localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
}
