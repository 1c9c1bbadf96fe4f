// Package api serves the status API of a long-running modcheck process
// (modcheck watch).
//
// # Overview
//
// The server exposes the workspace's project graph, the recorded run history
// and a trigger for an on-demand run. It is built on gorilla/mux; every
// request is traced through otelhttp and counted by the Prometheus HTTP
// metrics.
//
// # Routes
//
//	GET  /healthz                   liveness
//	GET  /readyz                    readiness (history database, cache)
//	GET  /metrics                   Prometheus exposition
//	GET  /v1/runs?limit=N           recent runs, newest first
//	GET  /v1/runs/latest            the latest run with its findings
//	GET  /v1/runs/{id}              one run with its findings
//	POST /v1/runs                   start a run; 202, or 409 while one is active
//	GET  /v1/modules                modules with their depths
//	GET  /v1/modules/dependencies   ?module=:app&transitive=true
//	GET  /v1/modules/dependents     ?module=:core
//	GET  /v1/modules/impact         ?module=:core
//	GET  /v1/graph                  Cytoscape graph of the workspace
//
// # Usage
//
//	srv := api.NewServer(
//		api.WithHistory(store),
//		api.WithTrigger(func(ctx context.Context) *finding.Outcome { return r.Run(ctx) }),
//		api.WithGraphSource(source),
//		api.WithMetrics(metrics, registry),
//		api.WithLogger(log),
//	)
//	http.ListenAndServe(":9090", srv.Handler())
package api
