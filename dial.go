package fcgx

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

// DialConfig configures the convenience dial helpers below. It has nothing
// to do with the protocol core: it only controls how a net.Conn gets
// opened before being handed to NewKeepAlive/NewShortLived.
type DialConfig struct {
	// ConnectTimeout bounds how long dialing may take. Zero means no
	// timeout beyond whatever the OS/network imposes.
	ConnectTimeout time.Duration
}

// DefaultDialConfig returns sensible defaults for dialing a local PHP-FPM
// style responder.
func DefaultDialConfig() *DialConfig {
	return &DialConfig{ConnectTimeout: 5 * time.Second}
}

// DialTimeout opens network to address (e.g. "tcp" to "127.0.0.1:9000", or
// "unix" to a socket path) using DefaultDialConfig.
func DialTimeout(network, address string) (net.Conn, error) {
	return DialTimeoutWithConfig(network, address, DefaultDialConfig())
}

// DialTimeoutWithConfig is DialTimeout with an explicit DialConfig.
func DialTimeoutWithConfig(network, address string, cfg *DialConfig) (net.Conn, error) {
	if cfg == nil {
		cfg = DefaultDialConfig()
	}
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := d.Dial(network, address)
	if err != nil {
		return nil, errors.Wrap(err, "fcgx: dial")
	}
	return conn, nil
}

// DialContext opens network to address honoring ctx for cancellation and
// deadline. DefaultDialConfig's timeout applies as well, so the dial is
// bounded by whichever of ctx's deadline and that timeout comes first.
func DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return DialContextWithConfig(ctx, network, address, DefaultDialConfig())
}

// DialContextWithConfig is DialContext with an explicit DialConfig.
func DialContextWithConfig(ctx context.Context, network, address string, cfg *DialConfig) (net.Conn, error) {
	if cfg == nil {
		cfg = DefaultDialConfig()
	}
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, errors.Wrap(err, "fcgx: dial with context")
	}
	return conn, nil
}
