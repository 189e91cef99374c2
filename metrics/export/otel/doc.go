// Package otel bridges chatauth metric snapshots into an OpenTelemetry
// meter via observable instruments.
package otel
