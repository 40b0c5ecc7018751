// Package metrics holds the Prometheus collectors of the recognizer and the
// HTTP service.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asl_predictions_total",
			Help: "Predictions by sign, including no_hand and error",
		},
		[]string{"sign"},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asl_recognition_errors_total",
			Help: "Recognition failures by kind",
		},
		[]string{"kind"},
	)

	RecognitionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asl_recognition_seconds",
			Help:    "Time spent per recognition stage",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"stage"},
	)

	ModelLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "asl_model_loaded",
		Help: "1 when a trained classifier is serving predictions",
	})

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asl_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

// Error kinds.
const (
	KindDecode     = "decode"
	KindDetect     = "detect"
	KindClassifier = "classifier"
)

// ObserveStage records the time since start for a recognition stage.
func ObserveStage(stage string, start time.Time) {
	RecognitionDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// SetModelLoaded updates the model gauge.
func SetModelLoaded(loaded bool) {
	if loaded {
		ModelLoaded.Set(1)
		return
	}
	ModelLoaded.Set(0)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Middleware counts requests per matched route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	})
}
