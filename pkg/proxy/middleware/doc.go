// Package middleware provides the HTTP middleware of the relay.
//
// The server installs them in this order, outermost first:
//
//	r.Use(chimw.RealIP)
//	r.Use(middleware.RequestID)
//	r.Use(tracing.HTTPMiddleware)
//	r.Use(middleware.AccessLog(logger, collector))
//	r.Use(middleware.Recovery(logger))
//	r.Use(middleware.CORS(cfg.Server.CORS))
//
// RequestID runs before AccessLog so every log line of the request,
// including the access log itself, carries request_id. Recovery sits inside
// AccessLog so a recovered panic is logged and counted as a 500.
package middleware
