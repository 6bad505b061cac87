// Package types defines the Go types shared by the agent and the server.
// Reading is both the in-memory representation and the JSON wire format
// used on the HTTP API and the AMQP ingest queue.
package types
