// control/controller.go
// Author: momentics <momentics@gmail.com>
//
// Controller composes ConfigStore, MetricsRegistry, and DebugProbes
// behind the single api.Control surface, for callers that want one
// handle instead of three.

package control

import "github.com/sorenvik/respool/api"

// Ensure compile-time interface compliance.
var _ api.Control = (*Controller)(nil)

// Controller is the unified control-plane facade for one pool: live
// config, metrics, and debug probes.
type Controller struct {
	config  *ConfigStore
	metrics *MetricsRegistry
	debug   *DebugProbes
}

// NewController wires a Controller around an existing config/metrics/
// debug triple, as produced by driver.Open.
func NewController(config *ConfigStore, metrics *MetricsRegistry, debug *DebugProbes) *Controller {
	return &Controller{config: config, metrics: metrics, debug: debug}
}

// GetConfig returns the current live-tunable configuration snapshot.
func (c *Controller) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

// SetConfig merges newCfg into the live config and notifies OnReload
// listeners. It never fails itself; the error return exists to satisfy
// api.Control for implementations that validate before applying.
func (c *Controller) SetConfig(cfg map[string]any) error {
	c.config.SetConfig(cfg)
	return nil
}

// Stats returns the pool's metrics snapshot.
func (c *Controller) Stats() map[string]any {
	return c.metrics.GetSnapshot()
}

// OnReload registers fn to run whenever SetConfig applies a change.
func (c *Controller) OnReload(fn func()) {
	c.config.OnReload(fn)
}

// RegisterDebugProbe adds a named debug hook to the probe registry.
func (c *Controller) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}
