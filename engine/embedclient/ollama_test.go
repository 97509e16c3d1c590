package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOllamaClientEmbedParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "nomic-embed-text", req.Model)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ollamaEmbedResp{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "nomic-embed-text")
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllamaClientEmbedSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "m")
	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
}

type countingEmbedder struct {
	calls atomic.Int32
	vec   []float32
}

func (c *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	c.calls.Add(1)
	return c.vec, nil
}

func TestDedupedConcurrentIdenticalCallsNeverExceedCallerCount(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{1, 2, 3}}
	d := NewDeduped(inner)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			_, err := d.Embed(context.Background(), "same text")
			require.NoError(t, err)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	require.LessOrEqual(t, inner.calls.Load(), int32(10))
}
