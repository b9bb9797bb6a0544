// Package skillctx provides the execution context shared by skills and the
// manifest executor: base path, settings, device inventory, device service
// and the skill registry.
package skillctx

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/dhwoox/Final-RAG/pkg/config"
	"github.com/dhwoox/Final-RAG/pkg/device"
	"github.com/dhwoox/Final-RAG/pkg/device/simulator"
	"github.com/dhwoox/Final-RAG/pkg/logger"
	"github.com/dhwoox/Final-RAG/pkg/skills"
	skilltypes "github.com/dhwoox/Final-RAG/pkg/types/skills"
)

// BackendSimulator is the only device service backend bundled with skillrun.
const BackendSimulator = "simulator"

// Context is the default skills.Context. The inventory and the device
// service are loaded on first use.
type Context struct {
	settings *config.Settings
	registry *skills.Registry

	invOnce sync.Once
	inv     *device.Inventory
	invErr  error

	svcMu sync.Mutex
	svc   device.Service
}

var _ skilltypes.Context = (*Context)(nil)

// Option configures a Context.
type Option func(*Context)

// WithRegistry sets the skill registry.
func WithRegistry(r *skills.Registry) Option {
	return func(c *Context) {
		c.registry = r
	}
}

// WithService injects the device service instead of building one from the
// service configuration file.
func WithService(svc device.Service) Option {
	return func(c *Context) {
		c.svc = svc
	}
}

// WithInventory injects the device inventory instead of reading the environ
// file.
func WithInventory(inv *device.Inventory) Option {
	return func(c *Context) {
		c.invOnce.Do(func() {
			c.inv = inv
		})
	}
}

// New creates a Context. Nil settings fall back to the defaults.
func New(settings *config.Settings, opts ...Option) *Context {
	if settings == nil {
		settings = config.Default()
	}
	c := &Context{settings: settings}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = skills.NewRegistry()
	}
	return c
}

func (c *Context) BasePath() string {
	return c.settings.BasePath
}

func (c *Context) Settings() *config.Settings {
	return c.settings
}

// Registry returns the skill registry carried by the context.
func (c *Context) Registry() *skills.Registry {
	return c.registry
}

// ConfigPath is the resolved device service configuration path.
func (c *Context) ConfigPath() string {
	return c.settings.Resolve(c.settings.ConfigPath)
}

// EnvironPath is the resolved device inventory path.
func (c *Context) EnvironPath() string {
	return c.settings.Resolve(c.settings.EnvironPath)
}

// DataDir is the resolved test data directory.
func (c *Context) DataDir() string {
	return c.settings.Resolve(c.settings.DataDir)
}

// Inventory loads the device inventory once and returns it.
func (c *Context) Inventory() (*device.Inventory, error) {
	c.invOnce.Do(func() {
		c.inv, c.invErr = config.LoadInventory(c.EnvironPath())
	})
	return c.inv, c.invErr
}

// Service returns the device service, creating it on first use.
func (c *Context) Service(ctx context.Context) (device.Service, error) {
	c.svcMu.Lock()
	defer c.svcMu.Unlock()

	if c.svc != nil {
		return c.svc, nil
	}

	cfg, err := config.LoadServiceConfig(c.ConfigPath())
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendSimulator, "":
		inv, err := c.Inventory()
		if err != nil {
			logger.G(ctx).WithError(err).Debug("no device inventory for the simulator")
			inv = nil
		}
		c.svc = simulator.New(cfg.Simulator, inv)
	default:
		return nil, errors.Errorf("unsupported device service backend %q", cfg.Backend)
	}

	logger.G(ctx).WithField("backend", cfg.Backend).Debug("device service ready")
	return c.svc, nil
}
