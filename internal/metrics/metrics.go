// Package metrics holds the process-wide analysis counters. They are
// registered on a private Registry rather than the global default so that
// importing this package never leaks collectors into a host program.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry collects every wixlint metric.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// CacheRequests counts analysis cache lookups.
	// Labels: result (hit, miss, stale, corrupt)
	CacheRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wixlint",
		Name:      "cache_requests_total",
		Help:      "Analysis cache lookups by result",
	}, []string{"result"})

	// FilesAnalyzed counts files whose rules were actually evaluated.
	FilesAnalyzed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "wixlint",
		Name:      "files_analyzed_total",
		Help:      "Files evaluated by the rule engine",
	})

	// Diagnostics counts emitted diagnostics.
	// Labels: severity
	Diagnostics = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wixlint",
		Name:      "diagnostics_total",
		Help:      "Diagnostics emitted after suppression",
	}, []string{"severity"})

	// ParseFailures counts files that could not be parsed.
	ParseFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "wixlint",
		Name:      "parse_failures_total",
		Help:      "Files rejected by the XML parser",
	})

	// FileAnalysisSeconds measures per-file evaluation time.
	FileAnalysisSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wixlint",
		Name:      "file_analysis_seconds",
		Help:      "Time spent evaluating one file",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Dump writes one line per sample, sorted by name, in a compact text form:
//
//	wixlint_cache_requests_total{result="hit"} 12
//	wixlint_file_analysis_seconds_count 40
func Dump(w io.Writer) error {
	families, err := Registry.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	var lines []string
	for _, mf := range families {
		name := mf.GetName()
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			ls := ""
			if len(labels) > 0 {
				ls = "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("%s%s %g", name, ls, m.GetCounter().GetValue()))
			case m.GetGauge() != nil:
				lines = append(lines, fmt.Sprintf("%s%s %g", name, ls, m.GetGauge().GetValue()))
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				lines = append(lines,
					fmt.Sprintf("%s_count%s %d", name, ls, h.GetSampleCount()),
					fmt.Sprintf("%s_sum%s %g", name, ls, h.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
