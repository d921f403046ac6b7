package conns

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushDropsOldestWhenFull(t *testing.T) {
	// Writer goroutine intentionally not running so the outbox fills up.
	s := &Sender{
		outbox: make(chan []byte, 3),
		done:   make(chan struct{}),
	}

	s.Push([]byte("a"))
	s.Push([]byte("b"))
	s.Push([]byte("c"))
	s.Push([]byte("d"))

	var got []string
	for len(s.outbox) > 0 {
		got = append(got, string(<-s.outbox))
	}
	assert.Equal(t, []string{"b", "c", "d"}, got)
}

func TestPushAfterStopIsNoop(t *testing.T) {
	s := &Sender{
		outbox: make(chan []byte, 3),
		done:   make(chan struct{}),
	}
	close(s.done)

	s.Push([]byte("a"))
	assert.Empty(t, s.outbox)
}

func TestSenderDeliversFrames(t *testing.T) {
	server, client := newSocketPair(t)
	defer server.Close()
	defer client.Close()

	s := NewSender(server, clockwork.NewRealClock())
	defer s.Stop()

	s.Send(map[string]string{"op_code": "OK"})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var frame map[string]string
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, "OK", frame["op_code"])
}

func TestPingFollowsInjectedClock(t *testing.T) {
	server, client := newSocketPair(t)
	defer client.Close()

	clock := clockwork.NewFakeClockAt(time.Now())
	s := NewSender(server, clock)
	defer s.Stop()

	pings := make(chan struct{}, 1)
	client.SetPingHandler(func(string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Wait for the writer's ticker to register before advancing.
	clock.BlockUntil(1)
	clock.Advance(pingInterval)

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping after advancing the clock past the ping interval")
	}
}

func TestStopGracefulSendsCloseFrame(t *testing.T) {
	server, client := newSocketPair(t)
	defer client.Close()

	s := NewSender(server, clockwork.NewRealClock())
	s.StopGraceful("all done")

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
	assert.Equal(t, "all done", closeErr.Text)
}

// newSocketPair dials a throwaway httptest server and hands back both ends
// of an upgraded websocket connection.
func newSocketPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return <-serverConns, client
}
