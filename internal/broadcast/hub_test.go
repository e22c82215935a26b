package broadcast

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suar-net/suar-playground/internal/model"
	"go.uber.org/zap/zaptest"
)

func receive(t *testing.T, c *Client) model.Event {
	t.Helper()
	select {
	case frame, ok := <-c.Send():
		require.True(t, ok, "channel closed")
		var e model.Event
		require.NoError(t, json.Unmarshal(frame, &e))
		return e
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return model.Event{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame := <-c.Send():
		t.Fatalf("unexpected frame %s", frame)
	default:
	}
}

func TestLogEventsReachOnlySubscribers(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	watcher := h.Register()
	bystander := h.Register()
	h.SubscribeLogs(watcher, true)

	h.Publish(model.Event{Type: model.EventRequestNew, Data: map[string]string{"id": "tx-1"}})
	h.Publish(model.Event{Type: model.EventEndpointsSync, Data: []string{}})

	assert.Equal(t, model.EventRequestNew, receive(t, watcher).Type)
	assert.Equal(t, model.EventEndpointsSync, receive(t, watcher).Type)
	assert.Equal(t, model.EventEndpointsSync, receive(t, bystander).Type)
	assertEmpty(t, bystander)

	h.SubscribeLogs(watcher, false)
	h.Publish(model.Event{Type: model.EventRequestComplete})
	assertEmpty(t, watcher)
}

func TestPublishNeverBlocksOnSlowObserver(t *testing.T) {
	h := NewHub(nil)
	slow := h.Register()

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer+10; i++ {
			h.Publish(model.Event{Type: model.EventEndpointsSync})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full observer")
	}
	assert.Equal(t, int64(10), h.Dropped())
	assert.Len(t, slow.Send(), clientBuffer)
}

func TestUnregisterClosesChannelOnce(t *testing.T) {
	h := NewHub(nil)
	c := h.Register()
	require.Equal(t, 1, h.Len())

	h.Unregister(c)
	h.Unregister(c)
	assert.Equal(t, 0, h.Len())

	_, ok := <-c.Send()
	assert.False(t, ok)
	assert.NotPanics(t, func() { h.Publish(model.Event{Type: model.EventEndpointsSync}) })
}

func TestCloseDisconnectsEveryone(t *testing.T) {
	h := NewHub(nil)
	a, b := h.Register(), h.Register()
	h.Close()

	_, okA := <-a.Send()
	_, okB := <-b.Send()
	assert.False(t, okA)
	assert.False(t, okB)
	assert.Equal(t, 0, h.Len())
}

func subscribedCount(h *Hub) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.Subscribed() {
			n++
		}
	}
	return n
}

func TestWebsocketObserverSubscribes(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	srv := httptest.NewServer(NewWSHandler(h, nil, zaptest.NewLogger(t)))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 10*time.Millisecond)
	h.Publish(model.Event{Type: model.EventRequestNew})

	require.NoError(t, conn.WriteJSON(model.Event{Type: model.EventSubscribeLogs}))
	require.Eventually(t, func() bool { return subscribedCount(h) == 1 }, time.Second, 10*time.Millisecond)

	h.Publish(model.Event{Type: model.EventRequestComplete, Data: map[string]string{"id": "tx-9"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Event model.EventType `json:"event"`
		Data  struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, model.EventRequestComplete, got.Event, "the intake sent before subscribing is not replayed")
	assert.Equal(t, "tx-9", got.Data.ID)

	conn.Close()
	require.Eventually(t, func() bool { return h.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketRejectsUnknownOrigin(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(NewWSHandler(h, []string{"http://allowed.test"}, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := map[string][]string{"Origin": {"http://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Equal(t, 0, h.Len())
}
