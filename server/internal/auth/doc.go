// Package auth provides HTTP middleware guarding the motortwin write paths.
//
// APIKey(mode, header, key) validates an API key taken from the named request
// header. When mode != "apikey" or key == "", all requests pass through
// (useful for local development with auth disabled). When the key is incorrect
// or absent, the middleware answers 401 immediately.
//
// RateLimit throttles requests per client address using a fixed-window
// counter. RedisCounter backs the counter with INCR/EXPIRE so that limits are
// shared across server replicas.
package auth
