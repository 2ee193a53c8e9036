// Package metrics exposes ring transport and object table health as
// Prometheus metrics. Grounded on the client_golang custom-Collector
// pattern (pull counters from a live struct on each scrape rather than
// threading prometheus types through the hot dispatch path), the style
// the wider example pack's storage services use for their own internal
// Stats structs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/venus-hv/gpucore/objtable"
	"github.com/venus-hv/gpucore/ring"
)

var (
	commandsProcessedDesc = prometheus.NewDesc(
		"gpucore_ring_commands_processed_total",
		"Commands successfully dispatched on this ring.",
		[]string{"ring"}, nil)
	bytesReadDesc = prometheus.NewDesc(
		"gpucore_ring_bytes_read_total",
		"Bytes read off this ring's buffer.",
		[]string{"ring"}, nil)
	errorsDesc = prometheus.NewDesc(
		"gpucore_ring_errors_total",
		"Frames that failed decode or handler dispatch on this ring.",
		[]string{"ring"}, nil)
	waitsDesc = prometheus.NewDesc(
		"gpucore_ring_consumer_waits_total",
		"Times the threaded consumer blocked waiting for new frames.",
		[]string{"ring"}, nil)

	objectsInUseDesc = prometheus.NewDesc(
		"gpucore_objects_in_use",
		"Live entries in the object table.",
		nil, nil)
	objectsCreatedDesc = prometheus.NewDesc(
		"gpucore_objects_created_total",
		"Objects ever added to the object table.",
		nil, nil)
	objectsDestroyedDesc = prometheus.NewDesc(
		"gpucore_objects_destroyed_total",
		"Objects ever removed from the object table.",
		nil, nil)
)

// RingCollector reports a ring's Stats snapshot on every scrape.
type RingCollector struct {
	name string
	ring *ring.Ring
}

// NewRingCollector returns a Collector for r, labeled name.
func NewRingCollector(name string, r *ring.Ring) *RingCollector {
	return &RingCollector{name: name, ring: r}
}

func (c *RingCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- commandsProcessedDesc
	ch <- bytesReadDesc
	ch <- errorsDesc
	ch <- waitsDesc
}

func (c *RingCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.ring.Stats()
	ch <- prometheus.MustNewConstMetric(commandsProcessedDesc, prometheus.CounterValue, float64(s.CommandsProcessed), c.name)
	ch <- prometheus.MustNewConstMetric(bytesReadDesc, prometheus.CounterValue, float64(s.BytesRead), c.name)
	ch <- prometheus.MustNewConstMetric(errorsDesc, prometheus.CounterValue, float64(s.Errors), c.name)
	ch <- prometheus.MustNewConstMetric(waitsDesc, prometheus.CounterValue, float64(s.Waits), c.name)
}

// ObjectTableCollector reports the object table's live entry count.
type ObjectTableCollector struct {
	table *objtable.Table
}

// NewObjectTableCollector returns a Collector for t.
func NewObjectTableCollector(t *objtable.Table) *ObjectTableCollector {
	return &ObjectTableCollector{table: t}
}

func (c *ObjectTableCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- objectsInUseDesc
	ch <- objectsCreatedDesc
	ch <- objectsDestroyedDesc
}

func (c *ObjectTableCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(objectsInUseDesc, prometheus.GaugeValue, float64(c.table.Count()))
	ch <- prometheus.MustNewConstMetric(objectsCreatedDesc, prometheus.CounterValue, float64(c.table.Created()))
	ch <- prometheus.MustNewConstMetric(objectsDestroyedDesc, prometheus.CounterValue, float64(c.table.Destroyed()))
}

var (
	_ prometheus.Collector = (*RingCollector)(nil)
	_ prometheus.Collector = (*ObjectTableCollector)(nil)
)
