package ensemble

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	require.NoError(t, err)
	srv.Start()
	require.True(t, srv.ReadyForConnections(3*time.Second))

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})
	return nc
}

func TestNATSEnsembleInvokeRoundTrips(t *testing.T) {
	nc := startTestNATS(t)

	sub, err := nc.Subscribe(subjectPrefix+"summarize", func(msg *nats.Msg) {
		var req request
		require.NoError(t, json.Unmarshal(msg.Data, &req))
		require.Equal(t, "summarize", req.Name)
		reply, err := json.Marshal(response{Result: map[string]any{"summary": "ok: " + req.Payload["text"].(string)}})
		require.NoError(t, err)
		require.NoError(t, nc.Publish(msg.Reply, reply))
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	e := New(nc, time.Second)
	result, err := e.Invoke(context.Background(), "summarize", map[string]any{"text": "hello"})
	require.NoError(t, err)
	require.Equal(t, "ok: hello", result["summary"])
}

func TestNATSEnsembleInvokeTimesOutWithNoResponder(t *testing.T) {
	nc := startTestNATS(t)
	e := New(nc, 50*time.Millisecond)

	_, err := e.Invoke(context.Background(), "nobody_home", map[string]any{})
	require.Error(t, err)
}
