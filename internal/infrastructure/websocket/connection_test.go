package websocket

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDropsWhenQueueIsFull(t *testing.T) {
	conn := newWebSocketConnection(nil, "bidder", "a-1", domain.RoleBuyer, 2, logger.NewNop())

	require.NoError(t, conn.Send("first"))
	require.NoError(t, conn.Send("second"))

	start := time.Now()
	assert.ErrorIs(t, conn.Send("third"), ErrSendQueueFull)
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, conn.send, 2)

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send("late"), ErrConnectionClosed)
}

// A client that never reads must not hold up delivery to anyone else.
func TestStalledClientDoesNotBlockBroadcast(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	stalled := newWebSocketConnection(nil, "slow", "a-1", domain.RoleBuyer, 1, logger.NewNop())
	healthy := newFakeConn("fast", "a-1", domain.RoleBuyer)
	require.NoError(t, cm.RegisterConnection(stalled))
	require.NoError(t, cm.RegisterConnection(healthy))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = cm.Deliver(cm.GetConnectionsForAuction("a-1"), map[string]int{"seq": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a stalled connection")
	}
	assert.Equal(t, 5, healthy.messageCount())
	assert.Len(t, stalled.send, 1)
}

func TestCloseFlushesQueuedMessages(t *testing.T) {
	serverConn := make(chan *WebSocketConnection, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConn <- NewWebSocketConnection(c, "bidder", "a-1", domain.RoleBuyer, logger.NewNop())
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/"), nil)
	require.NoError(t, err)
	defer client.Close()

	conn := <-serverConn
	require.NoError(t, conn.Send(map[string]int{"seq": 1}))
	require.NoError(t, conn.Send(map[string]int{"seq": 2}))
	require.NoError(t, conn.Close())

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	for want := 1; want <= 2; want++ {
		var msg map[string]int
		require.NoError(t, client.ReadJSON(&msg))
		assert.Equal(t, want, msg["seq"])
	}
	_, _, err = client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
