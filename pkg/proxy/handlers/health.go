package handlers

import (
	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/telemetry/health"
)

// Readiness check names.
const (
	CheckTaskStore      = "task_store"
	CheckUpstreamConfig = "upstream_config"
)

// RegisterHealthChecks adds the relay's readiness checks to c. store may be
// nil when async tasks are disabled.
func RegisterHealthChecks(c *health.Checker, store health.Pinger, current func() *config.Config) {
	c.RegisterCheck(CheckUpstreamConfig, health.ConfigCheck(current))
	if store != nil {
		c.RegisterCheck(CheckTaskStore, health.PingCheck(store))
	}
}
