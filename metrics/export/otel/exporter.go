package otel

import (
	"context"
	"errors"
	"fmt"

	chatauth "github.com/MrEthical07/chatauth"
	"github.com/MrEthical07/chatauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() chatauth.MetricsSnapshot
	AuditDropped() uint64
}

// OTelExporter registers observable instruments that report the engine's
// snapshot on every collection. Instruments are observable rather than
// synchronous: the engine keeps counting lock-free and the meter pulls.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counterIDs  []chatauth.MetricID
	counters    []metric.Int64ObservableCounter
	histogramID chatauth.MetricID
	buckets     [8]metric.Int64ObservableGauge
	bucketCount metric.Int64ObservableGauge
	dropped     metric.Int64ObservableCounter
}

// NewOTelExporter creates an exporter reading from the given [chatauth.Engine].
func NewOTelExporter(meter metric.Meter, engine *chatauth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource creates an exporter from a custom source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}

	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		e.counterIDs = append(e.counterIDs, def.ID)
		e.counters = append(e.counters, ins)
		observables = append(observables, ins)
	}

	// One histogram in the core today; exported as per-bucket cumulative
	// gauges because observable OTel instruments have no histogram kind.
	for _, def := range internaldefs.HistogramDefs {
		e.histogramID = def.ID
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			name := def.Name + "_bucket_le_" + suffix
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			e.buckets[i] = ins
			observables = append(observables, ins)
		}

		countIns, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s_count: %w", def.Name, err)
		}
		e.bucketCount = countIns
		observables = append(observables, countIns)
	}

	dropped, err := meter.Int64ObservableCounter(
		"chatauth_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.dropped = dropped
	observables = append(observables, dropped)

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration

	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for i, id := range e.counterIDs {
		observer.ObserveInt64(e.counters[i], int64(snapshot.Counters[id]))
	}

	if e.bucketCount != nil {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[e.histogramID]))
		for i := range cumulative {
			observer.ObserveInt64(e.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(e.bucketCount, int64(cumulative[len(cumulative)-1]))
	}

	observer.ObserveInt64(e.dropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
