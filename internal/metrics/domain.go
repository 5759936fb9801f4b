package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cvbuilder"

var (
	renderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "documents_total",
			Help:      "渲染的简历文档数量。",
		},
		[]string{"format"},
	)

	layoutIssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "layout_issues_total",
			Help:      "编辑时发现的布局问题数量。",
		},
		[]string{"code"},
	)

	snapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "capture_duration_seconds",
			Help:      "模板缩略图截图耗时（秒）。",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30},
		},
	)
)

// ObserveRender 记录一次渲染，format 为 json 或 html。
func ObserveRender(format string) {
	renderTotal.WithLabelValues(format).Inc()
}

// ObserveLayoutIssue 记录一条布局提示。
func ObserveLayoutIssue(code string) {
	layoutIssuesTotal.WithLabelValues(code).Inc()
}

// ObserveSnapshot 记录一次截图耗时。
func ObserveSnapshot(d time.Duration) {
	snapshotDuration.Observe(d.Seconds())
}
