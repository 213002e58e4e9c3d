// Package otel bridges secguard metrics into OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine
// counter and Int64ObservableGauge per histogram bucket. A single
// callback reads the engine snapshot on each collection cycle. Callers
// own the MeterProvider; this package never mutates engine state.
package otel
