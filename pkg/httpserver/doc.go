// Package httpserver runs the notifyhub HTTP surface: the WebSocket endpoint
// of live sessions and the health probe.
//
// Server wraps http.Server with context-driven graceful shutdown and fits an
// errgroup through Run. Health builds a readiness handler from named
// dependency checks, and RequestID tags every request with an id that the
// logger picks up through LoggerExtractor.
//
//	srv := httpserver.New(cfg, router, httpserver.WithLogger(log))
//	g.Go(srv.Run(ctx))
package httpserver
