package tor

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout is how long Start waits for Tor to bootstrap.
const DefaultStartupTimeout = 3 * time.Minute

// Daemon runs an embedded Tor process for the duration of a crawl.
// Its SOCKS5 address is passed to httpclient.WithProxy.
//
// Bootstrapping takes one to three minutes: Tor has to fetch the
// directory and build its first circuits before it accepts connections.
type Daemon struct {
	// process is the running Tor process, nil until Start succeeds.
	process *tornago.TorProcess

	// socksAddr is the SOCKS5 listener of the running process.
	socksAddr string

	// startupTimeout bounds the bootstrap.
	startupTimeout time.Duration
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithStartupTimeout sets the bootstrap timeout. Non-positive values are ignored.
func WithStartupTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) {
		if timeout > 0 {
			d.startupTimeout = timeout
		}
	}
}

// NewDaemon creates a Daemon. Call Start to launch Tor.
func NewDaemon(opts ...DaemonOption) *Daemon {
	d := &Daemon{startupTimeout: DefaultStartupTimeout}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor on OS-assigned ports and blocks until it has
// bootstrapped or the startup timeout expires. If ctx is cancelled while
// Tor starts, the process is stopped again and ctx.Err() is returned.
func (d *Daemon) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort cleanup
		return err
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts Tor down. It is safe to call on a Daemon that never started
// and to call more than once.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	return err
}

// IsRunning reports whether Start succeeded and Stop was not called.
func (d *Daemon) IsRunning() bool {
	return d.process != nil
}

// ProxyAddress returns the SOCKS5 address of the running daemon in
// "host:port" form.
func (d *Daemon) ProxyAddress() (string, error) {
	if !d.IsRunning() {
		return "", ErrDaemonNotRunning
	}
	return d.socksAddr, nil
}
