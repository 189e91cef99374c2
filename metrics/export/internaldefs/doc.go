// Package internaldefs holds the shared metric definition tables consumed by
// the Prometheus and OTel exporters so the two stay in lockstep.
package internaldefs
