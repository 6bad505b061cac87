// Package shipper delivers readings to motortwin-server.
//
// Shipper.Ship() is non-blocking: readings are placed in an in-memory channel
// (default capacity 1000). When the buffer is full the oldest entry is
// evicted so the latest telemetry is always preserved.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff (1s→60s, ±25% jitter) on connection or send errors.
// Readings the server refuses outright (400, 401, 403, 413, 422) are
// discarded rather than retried.
//
// Transports: HTTP POST to /api/v1/readings (API key header or mTLS, with
// optional mDNS discovery of the server) or AMQP publish to the server's
// ingest exchange.
//
// The dialFn field is injectable for testing.
package shipper
