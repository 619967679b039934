package pkg

import (
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
)

// the gateway address seen from within a docker container
var dockerBridgeIpRegex = regexp.MustCompile(`^172\.\d{1,3}\.0\.1:\d{1,5}`)

// IPIsLocal reports whether the address belongs to local development,
// either directly or through the docker bridge.
func IPIsLocal(ipAddr string) bool {
	return strings.HasPrefix(ipAddr, "127.0.0.1:") || dockerBridgeIpRegex.MatchString(ipAddr)
}

// ReadUserIP resolves the caller address, preferring the proxy headers
// over the raw remote address.
func ReadUserIP(r *http.Request) (string, error) {
	ipAddr := r.Header.Get("X-Real-Ip")
	if ipAddr == "" {
		ipAddr = r.Header.Get("X-Forwarded-For")
	}
	if ipAddr == "" {
		ipAddr = r.RemoteAddr
	}

	if IPIsLocal(ipAddr) {
		return "localhost", nil
	}

	if host, _, err := net.SplitHostPort(ipAddr); err == nil {
		ipAddr = host
	}
	if net.ParseIP(ipAddr) == nil {
		return "", fmt.Errorf("ip addr %s is invalid", ipAddr)
	}

	return ipAddr, nil
}
