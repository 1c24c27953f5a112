//go:build darwin

package netmon

import (
	"context"
	"fmt"
	"net"

	"github.com/jackpal/gateway"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Routing message types we care about
const (
	rtmNewAddr = 0x0c // RTM_NEWADDR - address added
	rtmDelAddr = 0x0d // RTM_DELADDR - address removed
	rtmIfInfo  = 0x0e // RTM_IFINFO - interface up/down
)

// darwinBackend listens on an AF_ROUTE raw socket for interface and
// address changes, and uses default-gateway discovery for route-level
// reachability answers.
type darwinBackend struct{}

// newPlatformBackend creates the macOS backend. Opening a route socket
// up front verifies the facility is usable; the watcher opens its own.
func newPlatformBackend() (Backend, error) {
	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_UNSPEC)
	if err != nil {
		return nil, fmt.Errorf("route socket: %w", err)
	}
	unix.Close(fd)
	return &darwinBackend{}, nil
}

func (b *darwinBackend) Name() string { return "route-socket" }

func (b *darwinBackend) Available() (bool, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPlatformUnavailable, err)
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if hasUsableAddress(&iface) {
			return true, nil
		}
	}

	return false, nil
}

func (b *darwinBackend) Watch(ctx context.Context, callback func(available bool)) error {
	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_UNSPEC)
	if err != nil {
		return fmt.Errorf("%w: route socket: %w", ErrPlatformUnavailable, err)
	}

	// Close socket when context is cancelled to unblock the read.
	go func() {
		<-ctx.Done()
		unix.Close(fd)
	}()

	b.publish(callback)
	log.Debug("Darwin route socket watcher initialized")

	buf := make([]byte, 4096)

	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.WithError(err).Warn("Error reading from route socket")
				continue
			}
		}

		if n < 14 {
			continue
		}

		// if_msghdr / ifa_msghdr layout: byte 3 is the message type.
		msgType := buf[3]
		if msgType != rtmIfInfo && msgType != rtmNewAddr && msgType != rtmDelAddr {
			continue
		}

		log.WithField("msgType", msgType).Trace("Received route socket event")
		b.publish(callback)
	}
}

func (b *darwinBackend) publish(callback func(available bool)) {
	available, err := b.Available()
	if err != nil {
		log.WithError(err).Trace("Skipping availability publish after failed snapshot")
		return
	}
	callback(available)
}

// CanReach checks that a default gateway exists for non-local targets.
// Loopback and link-local endpoints are reachable without one.
func (b *darwinBackend) CanReach(ctx context.Context, ep Endpoint) error {
	ip, err := resolveIP(ctx, ep)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return cancelErr(err)
	}

	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return nil
	}

	gw, err := gateway.DiscoverGateway()
	if err != nil {
		// Private targets may still be on-link even without a default
		// route; globals are not.
		if ip.IsPrivate() {
			return fmt.Errorf("%w: gateway discovery: %w", ErrPlatformUnavailable, err)
		}
		return fmt.Errorf("%w: no default gateway for %s", ErrUnreachable, ip)
	}
	if gw == nil {
		return fmt.Errorf("%w: no default gateway for %s", ErrUnreachable, ip)
	}

	return nil
}

func hasUsableAddress(iface *net.Interface) bool {
	addrs, err := iface.Addrs()
	if err != nil {
		return false
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			if ipNet.IP.IsGlobalUnicast() || ipNet.IP.IsPrivate() {
				return true
			}
		}
	}
	return false
}
