package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/plexuslabs/plexus/engine/adapter"
	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/ingest"
	"github.com/plexuslabs/plexus/engine/query"
	"github.com/plexuslabs/plexus/engine/store"
	"github.com/plexuslabs/plexus/engine/telemetry"
)

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	handleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "ok", resp["status"])
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	eng := graph.NewEngine(st, logger)
	require.NoError(t, eng.Load(t.Context()))

	registry := ingest.NewRegistry()
	registry.RegisterAdapter(&adapter.FragmentAdapter{})
	registry.RegisterAdapter(&adapter.AnnotateAdapter{})

	pipeline := ingest.NewPipeline(eng, registry, logger)
	facade := query.NewFacade(eng)

	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { mp.Shutdown(t.Context()) })
	metrics, err := telemetry.NewMetrics(mp)
	require.NoError(t, err)

	mux := http.NewServeMux()
	registerRoutes(mux, eng, pipeline, facade, metrics, eventPublisher{}, logger)
	return mux
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func TestIngestAndQueryEndToEnd(t *testing.T) {
	mux := newTestServer(t)

	createBody := `{"id":"journal"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/contexts", strings.NewReader(createBody)))
	require.Equal(t, http.StatusCreated, rec.Code)

	ingestBody := `{"text":"Planning a trip to Avignon","tags":["Travel"]}`
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/contexts/journal/ingest?input_kind=fragment", strings.NewReader(ingestBody)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/contexts/journal/tags", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var tagsResp map[string][]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tagsResp))
	require.Contains(t, tagsResp["tags"], "travel")
}

func TestIngestUnknownContextReturnsNotFound(t *testing.T) {
	mux := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/contexts/missing/ingest?input_kind=fragment", strings.NewReader(`{"text":"x","tags":[]}`)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestMissingInputKindReturnsBadRequest(t *testing.T) {
	mux := newTestServer(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/contexts/journal/ingest", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
