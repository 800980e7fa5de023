// Package metrics provides Prometheus metrics for the chat relay.
//
// # Metrics
//
// Agent runs (the Collector implements agent.Observer):
//
//   - chatrelay_agent_runs_total{mode,status}
//   - chatrelay_agent_run_duration_seconds{mode}
//   - chatrelay_agent_run_attempts{mode}
//   - chatrelay_agent_retry_errors_total{mode}
//   - chatrelay_agent_runs_in_flight{mode}
//   - chatrelay_agent_stream_chunks_total
//
// Async tasks (the Collector implements tasks.Observer):
//
//   - chatrelay_tasks_submitted_total
//   - chatrelay_tasks_finished_total{status}
//   - chatrelay_task_duration_seconds
//   - chatrelay_task_callbacks_total{result}
//   - chatrelay_task_queue_depth
//
// HTTP:
//
//   - chatrelay_http_requests_total{route,method,code}
//   - chatrelay_http_request_duration_seconds{route,method}
//
// # Usage
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	a, _ := agent.Create(agent.KindChat, agentCfg, agent.WithObserver(collector))
//	router.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// A disabled collector accepts every call and records nothing.
package metrics
