// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent}: the `agent:` section parsed from YAML
//   - AgentConfig: server_endpoint, discovery, transport (http|amqp), amqp,
//     interval, buffer_size, server_auth, source
//   - Source: type (synthetic|prometheus), motor_id, seed, endpoint, metric
//     names, label selector, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, password_env; Key(), Token() and Password()
//     resolve from environment variables
//
// Load(path) reads the YAML file, applies defaults (2s interval, 1000 buffer,
// http transport, synthetic source), then validates required fields and enums.
//
// Watch(ctx, path, onChange) reloads the file through pkg/filewatch and calls
// onChange with the newly parsed Config; the agent applies a new interval.
package config
