package netmon

import (
	"context"

	"github.com/jackpal/gateway"
	log "github.com/sirupsen/logrus"
)

// fallbackBackend is used on platforms without a native watcher and as
// the degraded mode when platform init fails. It reports the network as
// available and answers reachability optimistically, so dependent
// application logic is never locked out by a false negative.
type fallbackBackend struct{}

func newFallbackBackend() Backend { return &fallbackBackend{} }

func (b *fallbackBackend) Name() string { return "fallback" }

func (b *fallbackBackend) Available() (bool, error) { return true, nil }

func (b *fallbackBackend) Watch(ctx context.Context, callback func(available bool)) error {
	callback(true)
	<-ctx.Done()
	return nil
}

func (b *fallbackBackend) CanReach(ctx context.Context, ep Endpoint) error {
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

	// Gateway discovery is the only cross-platform route signal we
	// have here. Its absence is not trusted enough for a negative.
	if gw, err := gateway.DiscoverGateway(); err == nil && gw != nil {
		log.WithField("gateway", gw.String()).Trace("Default gateway present")
	}
	return nil
}
