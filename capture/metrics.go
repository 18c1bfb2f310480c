package capture

import "github.com/prometheus/client_golang/prometheus"

// Capture paths, used as the "path" label.
const (
	PathKey    = "key"
	PathClick  = "click"
	PathInsert = "insert"
	PathAuthor = "authored"
)

// Metrics counts engine outcomes. A nil *Metrics records nothing.
type Metrics struct {
	captures    *prometheus.CounterVec
	duplicates  prometheus.Counter
	relocations *prometheus.CounterVec
}

// NewMetrics creates the engine counters and registers them on reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gjump_captures_total",
			Help: "Entries appended to the log, by detection path.",
		}, []string{"path"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gjump_duplicates_total",
			Help: "Captures dropped as adjacent duplicates.",
		}),
		relocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gjump_relocations_total",
			Help: "Relocation attempts, by result (identity, fuzzy, not_found).",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.captures, m.duplicates, m.relocations)
	}
	return m
}

func (m *Metrics) captured(path string) {
	if m != nil {
		m.captures.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) duplicate() {
	if m != nil {
		m.duplicates.Inc()
	}
}

func (m *Metrics) relocated(result string) {
	if m != nil {
		m.relocations.WithLabelValues(result).Inc()
	}
}
