package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type RegistryMetrics struct {
	operations  *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	holderCount prometheus.Gauge
	totalSupply prometheus.Gauge
	journalSize prometheus.Gauge
}

var (
	registryOnce     sync.Once
	registryRegistry *RegistryMetrics
)

// Registry returns the lazily-initialised metrics for the share register.
func Registry() *RegistryMetrics {
	registryOnce.Do(func() {
		registryRegistry = &RegistryMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "registry_operations_total",
				Help: "Count of successful register mutations by operation.",
			}, []string{"op"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "registry_rejections_total",
				Help: "Count of rejected register mutations by operation.",
			}, []string{"op"}),
			holderCount: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "registry_holder_count",
				Help: "Number of addresses currently holding a non-zero balance.",
			}),
			totalSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "registry_total_supply",
				Help: "Issued, unburned units currently on the register.",
			}),
			journalSize: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "registry_audit_entries",
				Help: "Number of entries in the audit journal.",
			}),
		}
		prometheus.MustRegister(
			registryRegistry.operations,
			registryRegistry.rejections,
			registryRegistry.holderCount,
			registryRegistry.totalSupply,
			registryRegistry.journalSize,
		)
	})
	return registryRegistry
}

// ObserveOperation records the outcome of one register mutation.
func (m *RegistryMetrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	if err != nil {
		m.rejections.WithLabelValues(op).Inc()
		return
	}
	m.operations.WithLabelValues(op).Inc()
}

// SetHolderCount publishes the current shareholder count.
func (m *RegistryMetrics) SetHolderCount(count int) {
	if m == nil {
		return
	}
	m.holderCount.Set(float64(count))
}

// SetTotalSupply publishes the current supply, clamping values beyond float
// range to +Inf rather than reporting a wrong finite number.
func (m *RegistryMetrics) SetTotalSupply(supply *big.Int) {
	if m == nil || supply == nil {
		return
	}
	value, accuracy := new(big.Float).SetInt(supply).Float64()
	if accuracy != big.Exact && math.IsInf(value, 0) {
		value = math.Inf(1)
	}
	m.totalSupply.Set(value)
}

// SetJournalSize publishes the audit journal length.
func (m *RegistryMetrics) SetJournalSize(entries uint64) {
	if m == nil {
		return
	}
	m.journalSize.Set(float64(entries))
}
