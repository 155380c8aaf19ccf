package configtypes

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseListenAddress splits a TCP listen address. "8888", ":8888" and
// "127.0.0.1:8888" are accepted; an empty host means all interfaces.
func ParseListenAddress(listen string) (host string, port int, err error) {
	switch {
	case listen == "":
		return "", 0, fmt.Errorf("listen address is empty")
	case !strings.Contains(listen, ":"):
		listen = ":" + listen
	}

	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	if port, err = strconv.Atoi(portStr); err != nil {
		return "", 0, fmt.Errorf("invalid port %q in listen address", portStr)
	}
	return host, port, nil
}

// ValidateListenAddress also requires a bindable port in 1..65535.
func ValidateListenAddress(listen string) error {
	_, port, err := ParseListenAddress(listen)
	if err != nil {
		return err
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ListenTarget returns the network and address the public server binds.
// A unix socket takes precedence over the TCP address.
func (s ServerConfig) ListenTarget() (network, address string, err error) {
	if s.UnixSocket != "" {
		return "unix", s.UnixSocket, nil
	}

	host, port, err := ParseListenAddress(s.Listen)
	if err != nil {
		return "", "", err
	}
	return "tcp", net.JoinHostPort(host, strconv.Itoa(port)), nil
}
