package telemetry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/sisbarc/camshell/internal/telemetry"
)

func TestInstrument_RecordsSpanAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	spans := tracetest.NewSpanRecorder()
	p, err := telemetry.New(reg, sdktrace.WithSpanProcessor(spans))
	require.NoError(t, err)
	defer p.Shutdown(context.Background()) //nolint:errcheck

	h := p.Instrument(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), "camshell")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitor", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	require.Len(t, spans.Ended(), 1)

	scrape := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), "http_server_")
}

func TestProviders(t *testing.T) {
	p, err := telemetry.New(prometheus.NewRegistry())
	require.NoError(t, err)
	assert.NotNil(t, p.TracerProvider())
	assert.NotNil(t, p.MeterProvider())
	assert.NoError(t, p.Shutdown(context.Background()))
}
