// Package httputil holds the JSON response helpers, query parsing and
// middleware shared by the status API.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, run)
//	httputil.WriteNotFoundError(w, "no runs recorded")
//	httputil.WriteServiceUnavailable(w, "a run is already in progress")
//
// # Request Parsing
//
//	limit, err := httputil.ParseQueryInt(r, "limit", 20)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(log),
//		httputil.LoggingMiddleware(log),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil
