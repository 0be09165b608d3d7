// Package prometheus serves goMFA engine metrics in the Prometheus text
// exposition format. Counters are named gomfa_*_total and the one histogram
// is gomfa_validate_latency_seconds. Mount [Exporter.Handler] on your own mux;
// nothing is registered globally.
package prometheus
