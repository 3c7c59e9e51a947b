// Package metric provides Prometheus metrics for the page server.
package metric

import "github.com/prometheus/client_golang/prometheus"

// RepositoryState is a point-in-time view of the active repository.
type RepositoryState struct {
	Kind         string
	ID           string
	LastValidLSN uint64
}

// StateFunc reports the active repository, or ok=false before one exists.
type StateFunc func() (state RepositoryState, ok bool)

// RepositoryCollector exports the active repository's identity and last
// valid LSN, read at scrape time.
type RepositoryCollector struct {
	state StateFunc

	infoDesc *prometheus.Desc
	lsnDesc  *prometheus.Desc
}

// NewRepositoryCollector creates a collector backed by state.
func NewRepositoryCollector(state StateFunc) *RepositoryCollector {
	return &RepositoryCollector{
		state: state,
		infoDesc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "repository", "info"),
			"Active repository; always 1, labelled with kind and instance id.",
			[]string{"kind", "id"}, nil,
		),
		lsnDesc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "repository", "last_valid_lsn"),
			"Last valid LSN of the active repository.",
			[]string{"kind"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *RepositoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.infoDesc
	ch <- c.lsnDesc
}

// Collect implements prometheus.Collector.
func (c *RepositoryCollector) Collect(ch chan<- prometheus.Metric) {
	st, ok := c.state()
	if !ok {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.infoDesc, prometheus.GaugeValue, 1, st.Kind, st.ID)
	ch <- prometheus.MustNewConstMetric(c.lsnDesc, prometheus.GaugeValue, float64(st.LastValidLSN), st.Kind)
}
