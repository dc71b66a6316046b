package tor

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// defaultBootstrapTimeout is generous because a cold Tor daemon must
// fetch directory information and build circuits before its SOCKS port
// is usable. Expect one to three minutes on a fresh data directory.
const defaultBootstrapTimeout = 3 * time.Minute

// EmbeddedTor launches and owns a Tor daemon via tornago, for crawling
// without an external Tor installation. The daemon's SOCKS endpoint can
// be wrapped into a single-endpoint ProxyPool once started.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	controlAddr    string
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout overrides the bootstrap timeout.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		e.startupTimeout = timeout
	}
}

// NewEmbeddedTor creates an embedded Tor manager. The daemon is not
// launched until Start is called.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: defaultBootstrapTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the Tor daemon and blocks until it bootstraps or the
// startup timeout expires. Ports are OS-assigned so multiple instances
// can coexist.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("tor: create launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("tor: start embedded daemon: %w", err)
	}

	// StartTorDaemon blocks without taking a context; honor cancellation
	// that arrived while it was bootstrapping.
	select {
	case <-ctx.Done():
		_ = process.Stop() //nolint:errcheck // best effort cleanup
		return ctx.Err()
	default:
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	e.controlAddr = process.ControlAddr()
	return nil
}

// Stop shuts the daemon down. Safe to call repeatedly and on an
// unstarted instance.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	return err
}

// IsRunning reports whether the daemon is up.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// SocksAddr returns the daemon's SOCKS5 address ("host:port"), or empty
// if the daemon is not running.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// ControlAddr returns the daemon's control port address, or empty if the
// daemon is not running.
func (e *EmbeddedTor) ControlAddr() string {
	return e.controlAddr
}

// NewProxyPool wraps the running daemon's SOCKS endpoint into a
// single-endpoint pool usable by the crawler.
func (e *EmbeddedTor) NewProxyPool(timeout time.Duration) (*ProxyPool, error) {
	if !e.IsRunning() {
		return nil, ErrTorNotRunning
	}
	return NewProxyPool([]string{e.socksAddr}, timeout)
}
