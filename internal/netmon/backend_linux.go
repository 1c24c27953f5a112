//go:build linux

package netmon

import (
	"context"
	"errors"
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// linuxBackend watches netlink for link, address, and route updates and
// answers reachability queries from the kernel routing table.
type linuxBackend struct{}

// newPlatformBackend creates the Linux backend. The initial LinkList
// call doubles as a probe that netlink is actually usable.
func newPlatformBackend() (Backend, error) {
	if _, err := netlink.LinkList(); err != nil {
		return nil, fmt.Errorf("netlink unusable: %w", err)
	}
	return &linuxBackend{}, nil
}

func (b *linuxBackend) Name() string { return "netlink" }

func (b *linuxBackend) Available() (bool, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrPlatformUnavailable, err)
	}

	for _, link := range links {
		attrs := link.Attrs()
		if attrs.Flags&net.FlagLoopback != 0 {
			continue
		}
		if attrs.Flags&net.FlagUp == 0 || attrs.OperState == netlink.OperDown {
			continue
		}

		addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if addr.IP.IsGlobalUnicast() || addr.IP.IsPrivate() {
				return true, nil
			}
		}
	}

	return false, nil
}

func (b *linuxBackend) Watch(ctx context.Context, callback func(available bool)) error {
	linkCh := make(chan netlink.LinkUpdate)
	linkDone := make(chan struct{})

	addrCh := make(chan netlink.AddrUpdate)
	addrDone := make(chan struct{})

	routeCh := make(chan netlink.RouteUpdate)
	routeDone := make(chan struct{})

	if err := netlink.LinkSubscribe(linkCh, linkDone); err != nil {
		return fmt.Errorf("%w: link subscribe: %w", ErrPlatformUnavailable, err)
	}

	if err := netlink.AddrSubscribe(addrCh, addrDone); err != nil {
		close(linkDone)
		return fmt.Errorf("%w: addr subscribe: %w", ErrPlatformUnavailable, err)
	}

	if err := netlink.RouteSubscribe(routeCh, routeDone); err != nil {
		close(linkDone)
		close(addrDone)
		return fmt.Errorf("%w: route subscribe: %w", ErrPlatformUnavailable, err)
	}

	defer close(linkDone)
	defer close(addrDone)
	defer close(routeDone)

	// Publish the starting point so the tracker converges immediately.
	b.publish(callback)

	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-linkCh:
			if !ok {
				return fmt.Errorf("%w: link subscription closed", ErrPlatformUnavailable)
			}
			b.publish(callback)

		case _, ok := <-addrCh:
			if !ok {
				return fmt.Errorf("%w: addr subscription closed", ErrPlatformUnavailable)
			}
			b.publish(callback)

		case _, ok := <-routeCh:
			if !ok {
				return fmt.Errorf("%w: route subscription closed", ErrPlatformUnavailable)
			}
			b.publish(callback)
		}
	}
}

func (b *linuxBackend) publish(callback func(available bool)) {
	available, err := b.Available()
	if err != nil {
		log.WithError(err).Trace("Skipping availability publish after failed snapshot")
		return
	}
	callback(available)
}

// CanReach asks the kernel for a route to the endpoint. No packet is
// sent: RouteGet only consults the routing table.
func (b *linuxBackend) CanReach(ctx context.Context, ep Endpoint) error {
	ip, err := resolveIP(ctx, ep)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return cancelErr(err)
	}

	routes, err := netlink.RouteGet(ip)
	if err != nil {
		if errors.Is(err, unix.ENETUNREACH) || errors.Is(err, unix.EHOSTUNREACH) {
			return fmt.Errorf("%w: no route to %s", ErrUnreachable, ip)
		}
		return fmt.Errorf("%w: route lookup: %w", ErrPlatformUnavailable, err)
	}
	if len(routes) == 0 {
		return fmt.Errorf("%w: no route to %s", ErrUnreachable, ip)
	}

	return nil
}
