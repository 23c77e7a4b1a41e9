package report

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/weiihann/hostbench/bench"
)

const namespace = "hostbench"

// metrics holds the gauges a run is exported through.
type metrics struct {
	info          *prometheus.GaugeVec
	cpuDuration   *prometheus.GaugeVec
	cpuPi         *prometheus.GaugeVec
	cpuWorkers    prometheus.Gauge
	memBandwidth  *prometheus.GaugeVec
	memLatency    prometheus.Gauge
	diskBandwidth *prometheus.GaugeVec
	diskIOPS      *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_info",
			Help:      "Identifies the run the other series belong to.",
		}, []string{"run_id", "cpu"}),
		cpuDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cpu",
			Name:      "duration_seconds",
			Help:      "Wall time of a CPU workload.",
		}, []string{"workload", "mode"}),
		cpuPi: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cpu",
			Name:      "pi_estimate",
			Help:      "Monte Carlo estimate of pi.",
		}, []string{"mode"}),
		cpuWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cpu",
			Name:      "workers",
			Help:      "Workers used by the parallel CPU workloads.",
		}),
		memBandwidth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "bandwidth_bytes_per_second",
			Help:      "Memory bandwidth by access pattern and direction.",
		}, []string{"pattern", "op"}),
		memLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "latency_seconds",
			Help:      "Average pointer-chase access latency.",
		}),
		diskBandwidth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "disk",
			Name:      "bandwidth_bytes_per_second",
			Help:      "Large-block sequential disk throughput.",
		}, []string{"op"}),
		diskIOPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "disk",
			Name:      "iops",
			Help:      "Small-block disk operations per second.",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.info,
		m.cpuDuration,
		m.cpuPi,
		m.cpuWorkers,
		m.memBandwidth,
		m.memLatency,
		m.diskBandwidth,
		m.diskIOPS,
	)

	return m
}

// observe sets a gauge for every figure of the probes that ran.
func (m *metrics) observe(results *bench.Results) {
	m.info.WithLabelValues(results.RunID, results.Host.CPU).Set(1)

	if r := results.CPU; r != nil {
		m.cpuDuration.WithLabelValues("monte_carlo", "single").Set(r.SingleElapsed.Seconds())
		m.cpuDuration.WithLabelValues("monte_carlo", "multi").Set(r.MultiElapsed.Seconds())
		m.cpuDuration.WithLabelValues("primes", "single").Set(r.SinglePrimesElapsed.Seconds())
		m.cpuDuration.WithLabelValues("primes", "multi").Set(r.MultiPrimesElapsed.Seconds())
		m.cpuPi.WithLabelValues("single").Set(r.SinglePi)
		m.cpuPi.WithLabelValues("multi").Set(r.MultiPi)
		m.cpuWorkers.Set(float64(r.Workers))
	}

	if r := results.Memory; r != nil {
		m.memBandwidth.WithLabelValues("sequential", "read").Set(r.SequentialRead)
		m.memBandwidth.WithLabelValues("sequential", "write").Set(r.SequentialWrite)
		m.memBandwidth.WithLabelValues("random", "read").Set(r.RandomRead)
		m.memBandwidth.WithLabelValues("random", "write").Set(r.RandomWrite)
		m.memLatency.Set(r.LatencyNs / 1e9)
	}

	if r := results.Disk; r != nil {
		m.diskBandwidth.WithLabelValues("read").Set(r.LargeRead)
		m.diskBandwidth.WithLabelValues("write").Set(r.LargeWrite)
		m.diskIOPS.WithLabelValues("read").Set(r.SmallReadIOPS)
		m.diskIOPS.WithLabelValues("write").Set(r.SmallWriteIOPS)
	}
}

// WriteMetrics writes the results to path in the Prometheus text format,
// ready for the node_exporter textfile collector.
func WriteMetrics(path string, results *bench.Results) error {
	if results == nil {
		return fmt.Errorf("no results to export")
	}

	reg := prometheus.NewRegistry()
	newMetrics(reg).observe(results)

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}

	return nil
}
