package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classd/pkg/types"
)

// wsPair upgrades one client/server websocket pair for direct Connection
// tests.
func wsPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	serverCh := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverCh <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server := <-serverCh
	t.Cleanup(func() { server.Close() })
	return client, server
}

func TestConnectionWriteReachesPeer(t *testing.T) {
	client, server := wsPair(t)
	conn := NewConnection(server, 4, time.Second)
	defer conn.Close()

	env, err := types.NewEnvelope(types.ActionSyncData, map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteEnvelope(env))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got types.Envelope
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, types.ActionSyncData, got.Action)
	assert.Empty(t, got.UserID)
}

func TestConnectionWriteAfterClose(t *testing.T) {
	_, server := wsPair(t)
	conn := NewConnection(server, 4, time.Second)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close()) // idempotent

	env, err := types.NewEnvelope(types.ActionLeave, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, conn.WriteEnvelope(env), ErrConnectionClosed)
}

func TestConnectionWriterDeathFailsSendsFast(t *testing.T) {
	client, server := wsPair(t)
	conn := NewConnection(server, 2, 500*time.Millisecond)
	defer conn.Close()

	// Kill the transport out from under the writer goroutine.
	require.NoError(t, client.Close())
	require.NoError(t, server.Close())

	env, err := types.NewEnvelope(types.ActionSyncData, nil)
	require.NoError(t, err)

	// The first sends may still queue; once the writer hits the dead
	// socket the connection must report closed.
	require.Eventually(t, func() bool {
		return errors.Is(conn.WriteEnvelope(env), ErrConnectionClosed)
	}, 2*time.Second, 10*time.Millisecond)

	// And closed means immediate, not a write-timeout stall with a full
	// buffer.
	start := time.Now()
	assert.ErrorIs(t, conn.WriteEnvelope(env), ErrConnectionClosed)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestConnectionBindIdentity(t *testing.T) {
	_, server := wsPair(t)
	conn := NewConnection(server, 4, time.Second)
	defer conn.Close()

	conn.bind("C1", "alice", types.RoleStudent)
	assert.Equal(t, "C1", conn.ClassroomID())
	assert.Equal(t, "alice", conn.UserID())
	assert.Equal(t, types.RoleStudent, conn.Role())
}

func TestConnectionConcurrentWriters(t *testing.T) {
	client, server := wsPair(t)
	conn := NewConnection(server, 64, time.Second)
	defer conn.Close()

	const writers = 10
	for i := 0; i < writers; i++ {
		go func() {
			env, _ := types.NewEnvelope(types.ActionCodeChange, types.CodeChangeData{
				Scope: types.ScopePublic, Content: "c",
			})
			_ = conn.WriteEnvelope(env)
		}()
	}

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < writers; i++ {
		var got types.Envelope
		require.NoError(t, client.ReadJSON(&got))
		assert.Equal(t, types.ActionCodeChange, got.Action)
	}
}
