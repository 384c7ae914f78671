// Package util holds small helpers shared by the network-facing packages.
package util

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// NewProxyFunc creates a proxy function for the LLM clients. Hosts listed
// in noProxy (comma-separated; ".example.com" matches subdomains) bypass
// the proxy. With no proxy URLs it falls back to the environment.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	bypass := parseNoProxy(noProxy)
	return func(req *http.Request) (*url.URL, error) {
		if bypass(req.URL.Hostname()) {
			return nil, nil
		}
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}

func parseNoProxy(noProxy string) func(host string) bool {
	var entries []string
	for _, e := range strings.Split(noProxy, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			entries = append(entries, e)
		}
	}

	return func(host string) bool {
		host = strings.ToLower(host)
		for _, e := range entries {
			switch {
			case e == "*":
				return true
			case strings.HasPrefix(e, "."):
				if strings.HasSuffix(host, e) || host == e[1:] {
					return true
				}
			case strings.Contains(e, "/"):
				_, cidr, err := net.ParseCIDR(e)
				if ip := net.ParseIP(host); err == nil && ip != nil && cidr.Contains(ip) {
					return true
				}
			case host == e:
				return true
			}
		}
		return false
	}
}
