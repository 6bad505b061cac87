// Package api implements the HTTP REST API for the motortwin server.
//
// New(store, ingester, alerts, cfg) returns an http.Handler that serves:
//
//	GET  /                          plain-text banner
//	POST /api/v1/readings           ingest one reading (write-guarded)
//	GET  /api/v1/readings           recent readings, newest first (?limit=N)
//	GET  /api/v1/readings/latest    latest reading with diagnostics; 404 if empty
//	GET  /api/v1/health             trend classification over the history window
//	POST /api/v1/classify           instantaneous score of the posted reading
//	GET  /api/v1/forecast           linear forecast (?steps=N); 422 with < 2 readings
//	POST /api/v1/simulate           what-if simulation from the latest reading
//	GET  /api/v1/alerts             firing and recently resolved alerts
//	GET  /api/v1/snapshot           dashboard snapshot
//
// /data, /simulate and /predict/future are kept as aliases for older
// dashboards and simulators.
//
// All JSON endpoints respond with Content-Type: application/json and return
// 405 for unsupported methods. CORS is applied by wrapping the handler with a
// CORS value. JSON types are defined in types.go. No external HTTP framework
// is used.
package api
