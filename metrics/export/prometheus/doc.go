// Package prometheus renders chatauth metric snapshots in Prometheus text
// exposition format without pulling in the client library.
package prometheus
