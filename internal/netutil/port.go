// Package netutil resolves the bind address for the naming service's HTTP
// listener.
package netutil

import (
	"errors"
	"fmt"
	"net"
)

// SelectBindAddr returns the preferred address when it is free. When it is
// taken and autoFallback is set, the candidates are tried in order; otherwise
// a taken preferred address is an error.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		ok, err := IsAddrAvailable(preferred)
		if err != nil {
			return "", err
		}
		if ok {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("preferred bind address in use: %s", preferred)
		}
	}

	for _, addr := range candidates {
		ok, err := IsAddrAvailable(addr)
		if err != nil {
			return "", err
		}
		if ok {
			return addr, nil
		}
	}

	return "", errors.New("no free bind address for the naming service")
}

// IsAddrAvailable reports whether addr can be listened on right now. The
// check is a bind-and-close, so another process can still win the port
// between the check and the real listen.
func IsAddrAvailable(addr string) (bool, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false, nil
	}
	if closeErr := ln.Close(); closeErr != nil {
		return false, closeErr
	}
	return true, nil
}
