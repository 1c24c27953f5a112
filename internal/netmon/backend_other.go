//go:build !linux && !darwin

package netmon

// Platforms without a native watcher get the optimistic fallback.
func newPlatformBackend() (Backend, error) {
	return newFallbackBackend(), nil
}
