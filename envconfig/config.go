// Package envconfig reads SDK configuration from the environment.
//
// All variables share the VERTEXVISION_ prefix:
//   - VERTEXVISION_HOST: scheme://host:port of the prediction service
//   - VERTEXVISION_PROJECT: cloud project id
//   - VERTEXVISION_LOCATION: service region (default us-central1)
//   - VERTEXVISION_ACCESS_TOKEN: bearer token attached to outgoing requests
//   - VERTEXVISION_DEBUG: enable debug logging
package envconfig

import (
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Host returns the scheme and host of the prediction service.
// Configurable via VERTEXVISION_HOST.
// Default: https://aiplatform.googleapis.com:443
func Host() *url.URL {
	defaultPort := "443"

	s := strings.TrimSpace(Var("VERTEXVISION_HOST"))
	if s == "" {
		return &url.URL{Scheme: "https", Host: "aiplatform.googleapis.com:443"}
	}

	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "https", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = hostport, defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// Project returns the cloud project id requests are billed against.
// Configurable via VERTEXVISION_PROJECT.
func Project() string {
	return Var("VERTEXVISION_PROJECT")
}

// Location returns the service region.
// Configurable via VERTEXVISION_LOCATION. Default: us-central1
func Location() string {
	if s := Var("VERTEXVISION_LOCATION"); s != "" {
		return s
	}
	return "us-central1"
}

// AccessToken returns the bearer token attached to outgoing requests, if
// any. Credential acquisition itself is out of scope; callers supply a
// ready token via VERTEXVISION_ACCESS_TOKEN.
func AccessToken() string {
	return Var("VERTEXVISION_ACCESS_TOKEN")
}

// LogLevel returns the log level based on VERTEXVISION_DEBUG.
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("VERTEXVISION_DEBUG"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil && b {
			level = slog.LevelDebug
		} else if i, err := strconv.ParseInt(s, 10, 64); err == nil && i < 0 {
			level = slog.Level(i)
		}
	}
	return level
}

// Var returns an environment variable stripped of whitespace and
// surrounding quotes.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
