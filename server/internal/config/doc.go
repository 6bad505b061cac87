// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort       : port for the REST API, WebSocket stream and /metrics (default 5001)
//   - MotorID        : motor id assigned to readings that carry none (default "motor-1")
//   - Auth           : "apikey" or "none"; the key is read from Auth.KeyEnv
//   - RateLimit      : Redis fixed-window limiter for the ingest endpoint
//   - CORS           : allowed browser origins (default "*")
//   - Storage        : memory | sqlite | redis | dynamodb reading store
//   - Analytics      : history window (default 30), dashboard limit (50), forecast steps (10)
//   - Ingest.Clamp   : clamp readings to physical ranges before analysis (default true)
//   - Ingest.Queue   : optional AMQP consumer feeding the ingestion pipeline
//   - Stream.Interval: WebSocket broadcast interval (default 2s)
//   - Discovery      : mDNS advertisement of the HTTP endpoint
//   - Alerts         : reading rules and webhook targets
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) reloads the file on change; the server applies new
// alert rules and CORS origins without a restart.
package config
