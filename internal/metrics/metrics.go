// Package metrics exports relay telemetry to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/uploadee/relay/internal/session"
	"github.com/uploadee/relay/internal/uploadee"
)

// Observer captures telemetry for relayed uploads.
type Observer interface {
	RecordRelay(duration time.Duration, sizeBytes int64, err error)
}

// PrometheusObserver exports relay metrics to Prometheus.
type PrometheusObserver struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
	bytes    prometheus.Counter
}

// NewPrometheusObserver registers the relay metrics on reg.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "uploadee"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_duration_seconds",
			Help:      "Time taken to relay one file to upload.ee.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_failures_total",
			Help:      "Relays that did not produce a link, by failure kind.",
		}, []string{"kind"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_bytes_total",
			Help:      "Cumulative size of files successfully relayed.",
		}),
	}
	for _, c := range []prometheus.Collector{o.duration, o.failures, o.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register relay metric: %w", err)
		}
	}
	return o, nil
}

// RecordRelay tracks relay duration, size and failures.
func (o *PrometheusObserver) RecordRelay(duration time.Duration, sizeBytes int64, err error) {
	if o == nil {
		return
	}
	if err != nil {
		o.duration.WithLabelValues("failure").Observe(duration.Seconds())
		o.failures.WithLabelValues(FailureKind(err)).Inc()
		return
	}
	o.duration.WithLabelValues("success").Observe(duration.Seconds())
	o.bytes.Add(float64(sizeBytes))
}

// FailureKind classifies err into a low-cardinality label.
func FailureKind(err error) string {
	var statusErr *session.StatusError
	switch {
	case errors.Is(err, uploadee.ErrNoUploadID):
		return "no_upload_id"
	case errors.Is(err, uploadee.ErrUploadRejected):
		return "rejected"
	case errors.Is(err, uploadee.ErrLinkNotFound):
		return "no_link"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case session.IsTimeout(err):
		return "timeout"
	case errors.As(err, &statusErr):
		return "http_status"
	case errors.Is(err, uploadee.ErrInvalidArgument), errors.Is(err, uploadee.ErrFileNotFound):
		return "input"
	default:
		return "other"
	}
}

// Nop returns an Observer that records nothing.
func Nop() Observer { return nopObserver{} }

type nopObserver struct{}

func (nopObserver) RecordRelay(time.Duration, int64, error) {}
