// Package metrics holds the shell's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch results recorded on camshell_view_fetches_total.
const (
	FetchOK     = "ok"
	FetchFailed = "error"
)

// Metrics records view, proxy and discovery measurements on one registry.
type Metrics struct {
	registry *prometheus.Registry

	viewMounts    *prometheus.CounterVec
	viewFetches   *prometheus.CounterVec
	proxyRequests *prometheus.CounterVec
	proxyUpgrades *prometheus.CounterVec
	devices       prometheus.Gauge
}

// New creates the collectors and registers them on reg. When reg is nil a
// fresh registry with the Go and process collectors is used.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		viewMounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camshell_view_mounts_total",
			Help: "Total number of views mounted, by route",
		}, []string{"route"}),
		viewFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camshell_view_fetches_total",
			Help: "Total number of lazy view fetches, by route and result",
		}, []string{"route", "result"}),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camshell_proxy_requests_total",
			Help: "Total number of requests forwarded by the dev proxy",
		}, []string{"prefix", "code"}),
		proxyUpgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camshell_proxy_upgrades_total",
			Help: "Total number of protocol upgrades forwarded by the dev proxy",
		}, []string{"prefix"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camshell_devices_discovered",
			Help: "Number of camera devices found by the last discovery run",
		}),
	}

	reg.MustRegister(m.viewMounts, m.viewFetches, m.proxyRequests, m.proxyUpgrades, m.devices)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ViewMounted counts a rendered view.
func (m *Metrics) ViewMounted(route string) {
	m.viewMounts.WithLabelValues(route).Inc()
}

// ViewFetched counts a lazy fetch attempt. It has the routes.FetchHook shape.
func (m *Metrics) ViewFetched(route string, err error) {
	result := FetchOK
	if err != nil {
		result = FetchFailed
	}
	m.viewFetches.WithLabelValues(route, result).Inc()
}

// ProxyRequest counts a proxied request by its response status.
func (m *Metrics) ProxyRequest(prefix string, code int) {
	m.proxyRequests.WithLabelValues(prefix, strconv.Itoa(code)).Inc()
}

// ProxyUpgrade counts a forwarded protocol upgrade.
func (m *Metrics) ProxyUpgrade(prefix string) {
	m.proxyUpgrades.WithLabelValues(prefix).Inc()
}

// DevicesDiscovered sets the number of devices seen by the last browse.
func (m *Metrics) DevicesDiscovered(n int) {
	m.devices.Set(float64(n))
}
