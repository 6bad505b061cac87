// Package metrics exposes the motor's latest state in the Prometheus text
// format at /metrics, so an existing Prometheus can scrape the twin.
//
// Families are built per request from the store; nothing is cached.
package metrics
