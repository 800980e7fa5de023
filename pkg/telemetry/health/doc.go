// Package health provides the liveness and readiness endpoints of the
// chat relay.
//
// Liveness answers 200 while the process is serving HTTP. Readiness runs
// every registered component check concurrently, each bounded by the
// configured timeout, and answers 503 if any fails:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("task_store", health.PingCheck(store))
//	checker.RegisterCheck("upstream_config", health.ConfigCheck(config.GetConfig))
//
//	r.Get(cfg.Telemetry.Health.LivenessPath, checker.LivenessHandler())
//	r.Get(cfg.Telemetry.Health.ReadinessPath, checker.ReadinessHandler())
package health
