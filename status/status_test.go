package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T) *websocket.Conn {
	srv := httptest.NewServer(http.HandlerFunc(ServeWs))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, conn *websocket.Conn, message string) status {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var s status
		require.NoError(t, json.Unmarshal(data, &s))
		if s.Message == message {
			return s
		}
	}
}

func TestBroadcast(t *testing.T) {
	conn := dial(t)
	// registration happens in the handler, give it a moment before publishing
	time.Sleep(50 * time.Millisecond)

	Info("loaded %s", "avatar.vrm")
	s := waitFor(t, conn, "loaded avatar.vrm")
	assert.Equal(t, INFO, s.Type)

	Error("broken %d", 1)
	s = waitFor(t, conn, "broken 1")
	assert.Equal(t, ERROR, s.Type)
}

func TestStepProgress(t *testing.T) {
	conn := dial(t)
	time.Sleep(50 * time.Millisecond)

	hook := StepProgress("avatar.vrm")
	hook(1, 4, "weights")
	s := waitFor(t, conn, "avatar.vrm: weights (2/4)")
	assert.Equal(t, PROGRESS, s.Type)
	assert.InDelta(t, 0.25, s.Progress, 1e-6)
}

func TestLastMessageOnConnect(t *testing.T) {
	first := dial(t)
	time.Sleep(50 * time.Millisecond)
	zero := float32(0)
	Progress(zero/zero, "halfway")
	s := waitFor(t, first, "halfway")
	assert.Equal(t, float32(0), s.Progress)

	late := dial(t)
	waitFor(t, late, "halfway")
}
