package netmon

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// Endpoint is an immutable description of something that can be
// connected to: a hostname or IP literal plus a port. The monitor never
// holds on to an Endpoint beyond the duration of a call.
type Endpoint struct {
	Host string
	Port int

	// IP is set when the host was an IP literal, or after resolution.
	IP net.IP
}

// ParseEndpoint builds an Endpoint from a "host:port" target string.
func ParseEndpoint(target string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return Endpoint{}, &InvalidEndpointError{Target: target, Reason: "expected host:port"}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, &InvalidEndpointError{Target: target, Reason: "port is not a number"}
	}

	ep := Endpoint{Host: host, Port: port}
	if ip := net.ParseIP(host); ip != nil {
		ep.IP = ip
	}

	return ep, ep.Validate()
}

// NewEndpoint builds an Endpoint from an already-split host and port.
func NewEndpoint(host string, port int) (Endpoint, error) {
	ep := Endpoint{Host: host, Port: port}
	if ip := net.ParseIP(host); ip != nil {
		ep.IP = ip
	}
	return ep, ep.Validate()
}

// Validate checks the descriptor without touching the network.
func (e Endpoint) Validate() error {
	if e.Host == "" {
		return &InvalidEndpointError{Target: e.String(), Reason: "empty host"}
	}
	if e.Port < 0 || e.Port > 65535 {
		return &InvalidEndpointError{Target: e.String(), Reason: "port out of range"}
	}
	return nil
}

// Resolved reports whether the endpoint already carries an IP address.
func (e Endpoint) Resolved() bool {
	return e.IP != nil
}

// Loopback reports whether the endpoint targets the local host.
func (e Endpoint) Loopback() bool {
	if e.IP != nil {
		return e.IP.IsLoopback()
	}
	return e.Host == "localhost"
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// resolveIP returns the endpoint's IP, resolving the hostname if
// needed. Resolution failure is a confident negative: a host that does
// not resolve cannot be reached. Caller cancellation maps to
// ErrCancelled.
func resolveIP(ctx context.Context, ep Endpoint) (net.IP, error) {
	if ep.IP != nil {
		return ep.IP, nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, ep.Host)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelErr(ctx.Err())
		}
		return nil, fmt.Errorf("%w: resolving %s: %w", ErrUnreachable, ep.Host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s has no addresses", ErrUnreachable, ep.Host)
	}
	return addrs[0].IP, nil
}

// cacheKey identifies the endpoint for probe result caching.
func (e Endpoint) cacheKey() string {
	if e.IP != nil {
		return fmt.Sprintf("%s/%d", e.IP.String(), e.Port)
	}
	return e.String()
}
