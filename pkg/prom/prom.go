package prom

import (
	"sync"

	xhttp "github.com/orderstack/pos-ledger/pkg/http"
	"github.com/orderstack/pos-ledger/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemSync = "sync"
)

const (
	MetricSyncRuns         = "runs_total"
	MetricSyncPushed       = "pushed_total"
	MetricSyncPushErrors   = "push_errors_total"
	MetricSyncPending      = "pending"
	MetricSyncPushDuration = "push_duration_seconds"
)

// MetricSystemEnabled gates every recording call. When Create was never
// invoked all helpers are no-ops, so instrumented code paths need no
// enabled-check of their own.
var MetricSystemEnabled = false

var (
	registerMu sync.Mutex
	namespace  = "none"
	constants  prometheus.Labels

	counters   = make(map[string]prometheus.Counter)
	gaugeVecs  = make(map[string]*prometheus.GaugeVec)
	histograms = make(map[string]prometheus.Histogram)
)

// Create registers the fixed metric set and turns the recording helpers on.
// Host and env become const labels on every series.
func Create(host string, env string, nameSpace string) error {
	constants = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace
	MetricSystemEnabled = true

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(createCounter(SystemSync, MetricSyncRuns))
	hasError(createCounter(SystemSync, MetricSyncPushed))
	hasError(createCounter(SystemSync, MetricSyncPushErrors))
	hasError(createGaugeVec(SystemSync, MetricSyncPending, []string{"tenant"}))
	hasError(createHistogram(SystemSync, MetricSyncPushDuration))

	return err
}

// ListenAndServer exposes the prometheus handler on its own fasthttp server.
// Blocks, so run it in a goroutine.
func ListenAndServer(port string, url string) {
	hh := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s := xhttp.CreateServer()
	s.GET(url, hh)
	logger.Info("[metrics-server] listening...", "url", url)
	if err := s.ListenAndServe(port); err != nil {
		logger.Panic("[metrics-server] http listen error", "error", err)
	}
}

func createCounter(subsystem, name string) error {
	registerMu.Lock()
	defer registerMu.Unlock()
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: constants,
	})
	counters[subsystem+name] = c
	return prometheus.Register(c)
}

func createGaugeVec(subsystem, name string, labels []string) error {
	registerMu.Lock()
	defer registerMu.Unlock()
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: constants,
	}, labels)
	gaugeVecs[subsystem+name] = g
	return prometheus.Register(g)
}

func createHistogram(subsystem, name string) error {
	registerMu.Lock()
	defer registerMu.Unlock()
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        name,
		ConstLabels: constants,
		Buckets:     prometheus.DefBuckets,
	})
	histograms[subsystem+name] = h
	return prometheus.Register(h)
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := counters[subsystem+name]; ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func SetGaugeVec(subsystem, name string, num float64, labelValues ...string) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := gaugeVecs[subsystem+name]; ok {
		v.WithLabelValues(labelValues...).Set(num)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddHistogram(subsystem, name string, number float64) {
	if !MetricSystemEnabled {
		return
	}
	if v, ok := histograms[subsystem+name]; ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}
