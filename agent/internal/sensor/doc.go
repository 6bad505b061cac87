// Package sensor provides the reading sources the agent polls.
//
// Synthetic (synthetic.go) simulates a motor whose load wanders and whose
// temperature and vibration follow it. The Prometheus source (prometheus.go)
// scrapes an exporter and maps four configured metric names onto a reading,
// optionally narrowed to the series carrying a label set.
//
// Authentication to the exporter (mTLS, API key, bearer token, basic) is
// applied by the shared client built in base.go. New(config.Source)
// returns the configured Source.
package sensor
