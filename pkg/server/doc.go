// Package server runs the chat relay's HTTP server.
//
// It builds the chi router, installs the middleware chain and serves until
// the context is cancelled or the process receives SIGINT or SIGTERM:
//
//	srv := server.NewServer(server.Options{
//	    Config:  config.GetConfig,
//	    Factory: factory,
//	    Tasks:   manager,
//	    Health:  checker,
//	    Metrics: collector,
//	    Logger:  logger,
//	})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Shutdown drains in-flight requests, including open streams, for at most
// server.shutdown_timeout. The async task manager is drained separately by
// the caller after Start returns.
//
// # Routes
//
//	POST /chat/completions
//	POST /chat/stream
//	POST /chat/async
//	GET  /chat/tasks/{taskID}
//	GET  /chat/ws
//	GET  /health, /ready, /version
//	GET  /metrics (when enabled)
package server
