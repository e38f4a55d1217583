package adb

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"jordanella.com/profile-swiper/internal/apperr"
	"jordanella.com/profile-swiper/internal/logging"
)

// DefaultTimeout bounds a single adb invocation
const DefaultTimeout = 10 * time.Second

// Runner executes the adb binary and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// execRunner runs adb through os/exec
func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ADB controller type and lifecycle
type Controller struct {
	path      string
	serial    string // Device serial or "host:port"; empty selects the only device
	mu        sync.Mutex
	connected bool
	network   bool // Use `adb connect` for host:port serials
	timeout   time.Duration
	run       Runner
	seq       int // Frames captured so far
	logger    *logging.Logger
}

// NewController creates a new ADB controller
func NewController(adbPath, serial string) *Controller {
	return &Controller{
		path:    adbPath,
		serial:  serial,
		network: true,
		timeout: DefaultTimeout,
		run:     execRunner,
		logger:  logging.NewLogger("adb"),
	}
}

// WithTimeout sets the per-command timeout
func (c *Controller) WithTimeout(d time.Duration) *Controller {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// WithRunner replaces the process runner
func (c *Controller) WithRunner(r Runner) *Controller {
	c.run = r
	return c
}

// WithNetworkConnect controls whether Connect runs `adb connect` for
// host:port serials. Disabled, they are checked like USB devices.
func (c *Controller) WithNetworkConnect(enabled bool) *Controller {
	c.network = enabled
	return c
}

// Serial returns the device the controller addresses
func (c *Controller) Serial() string {
	return c.serial
}

// Connect attaches to a network device. Serials without a port (USB devices)
// only need to appear in `adb devices`.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.network && strings.Contains(c.serial, ":") {
		output, err := c.exec(ctx, "connect", c.serial)
		if err != nil {
			return apperr.Wrapf(err, apperr.KindDevice, "adb.Connect", "connect to %s", c.serial)
		}
		out := string(output)
		if !strings.Contains(out, "connected") {
			return apperr.Device("adb.Connect", "unexpected connect output: %s", strings.TrimSpace(out))
		}
	} else {
		if _, err := c.exec(ctx, c.args("get-state")...); err != nil {
			return apperr.Wrapf(err, apperr.KindDevice, "adb.Connect", "device %q not ready", c.serial)
		}
	}

	c.connected = true
	c.logger.InfoWithContext("Connected to device", map[string]interface{}{"serial": c.serial})
	return nil
}

// Disconnect drops a network device connection
func (c *Controller) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	if c.network && strings.Contains(c.serial, ":") {
		if _, err := c.exec(ctx, "disconnect", c.serial); err != nil {
			return apperr.Wrapf(err, apperr.KindDevice, "adb.Disconnect", "disconnect %s", c.serial)
		}
	}
	return nil
}

// IsConnected returns whether the controller is connected
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// args prefixes a device selector when a serial is configured
func (c *Controller) args(rest ...string) []string {
	if c.serial == "" {
		return rest
	}
	return append([]string{"-s", c.serial}, rest...)
}

// exec runs adb with the controller timeout. Caller holds c.mu.
// A hung adb that hits the controller timeout is a device failure; only the
// caller's own cancellation comes back as a context error.
func (c *Controller) exec(ctx context.Context, args ...string) ([]byte, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	output, err := c.run(cmdCtx, c.path, args...)
	if err != nil {
		if ctx.Err() != nil {
			return output, ctx.Err()
		}
		if cmdCtx.Err() != nil {
			return output, apperr.Device("adb", "%s timed out after %v", strings.Join(args, " "), c.timeout)
		}
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return output, apperr.Wrapf(err, apperr.KindDevice, "adb", "%s", strings.TrimSpace(string(ee.Stderr)))
		}
		return output, err
	}
	return output, nil
}
