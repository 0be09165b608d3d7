// Package otel publishes goMFA engine metrics through an OpenTelemetry
// metric.Meter supplied by the caller.
//
// Each engine counter becomes an Int64ObservableCounter. The validate latency
// histogram is published as cumulative bucket gauges keyed by an "le"
// attribute, plus a count gauge. One registered callback reads
// Engine.MetricsSnapshot per collection cycle.
package otel
