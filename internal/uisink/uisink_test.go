package uisink

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainstate/pkg/observable"
)

func TestBindPostsInitialAndChanges(t *testing.T) {
	rec := &Recorder{}
	store := observable.New(1)
	stop := Bind(rec, "counter", store, nil)
	store.Set(2)
	stop()
	store.Set(3)

	msgs := rec.For("counter")
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `1`, string(msgs[0].Payload))
	assert.JSONEq(t, `2`, string(msgs[1].Payload))
	last, ok := rec.Last("counter")
	require.True(t, ok)
	assert.JSONEq(t, `2`, string(last))
}

func TestBindLogsUnencodableValues(t *testing.T) {
	rec := &Recorder{}
	logger, hook := logrustest.NewNullLogger()
	store := observable.New[any](1)
	stop := Bind(rec, "odd", store, logrus.NewEntry(logger))
	defer stop()

	store.Set(func() {})
	store.Set(2)

	msgs := rec.For("odd")
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `2`, string(msgs[1].Payload))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "odd", hook.LastEntry().Data["state"])
}

func TestMultiAndPostErrors(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, nil, b, Discard{}}
	require.NoError(t, Post(m, "x", map[string]int{"n": 1}))
	assert.Len(t, a.Messages(), 1)
	assert.Len(t, b.Messages(), 1)

	assert.Error(t, Post(m, "x", func() {}))
	assert.Len(t, a.Messages(), 1)
	a.Reset()
	assert.Empty(t, a.Messages())
}

func TestNotifierPostsLevels(t *testing.T) {
	rec := &Recorder{}
	n := NewNotifier(rec, nil)
	n.Warn("Failed to restore 1 chain(s): Broken")
	n.Error(errors.New("disk full"))
	n.Error(nil)
	n.Info("saved")

	msgs := rec.For(NotificationStateID)
	require.Len(t, msgs, 3)
	var got []Notification
	for _, m := range msgs {
		var note Notification
		require.NoError(t, json.Unmarshal(m.Payload, &note))
		got = append(got, note)
	}
	assert.Equal(t, []Notification{
		{Level: "warning", Message: "Failed to restore 1 chain(s): Broken"},
		{Level: "error", Message: "disk full"},
		{Level: "info", Message: "saved"},
	}, got)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubReplaysLatestPerState(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	hub.Post(Message{StateID: "accounts", Payload: json.RawMessage(`[1]`)})
	hub.Post(Message{StateID: "history", Payload: json.RawMessage(`[]`)})
	hub.Post(Message{StateID: "accounts", Payload: json.RawMessage(`[1,2]`)})

	conn := dial(t, srv)
	first := read(t, conn)
	second := read(t, conn)
	assert.Equal(t, "accounts", first.StateID)
	assert.JSONEq(t, `[1,2]`, string(first.Payload))
	assert.Equal(t, "history", second.StateID)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	hub.Post(Message{StateID: "connection", Payload: json.RawMessage(`true`)})
	live := read(t, conn)
	assert.Equal(t, "connection", live.StateID)
}

func TestHubFansOutAndForgetsClosedClients(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	hub.Post(Message{StateID: "chains", Payload: json.RawMessage(`["A"]`)})
	assert.Equal(t, "chains", read(t, a).StateID)
	assert.Equal(t, "chains", read(t, b).StateID)

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())
	hub.Post(Message{StateID: "ignored"})
}

func TestHubCoalescesForSlowClient(t *testing.T) {
	hub := NewHub(nil)
	c := newClient(nil)
	hub.mu.Lock()
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()

	for i := 0; i <= 200; i++ {
		payload, err := json.Marshal(i)
		require.NoError(t, err)
		hub.Post(Message{StateID: "accounts", Payload: payload})
		if i == 100 {
			hub.Post(Message{StateID: "history", Payload: json.RawMessage(`[]`)})
		}
	}

	select {
	case <-c.wake:
	default:
		t.Fatal("client was not woken")
	}
	got := c.take()
	require.Len(t, got, 2)
	assert.Equal(t, "accounts", got[0].StateID)
	assert.JSONEq(t, `200`, string(got[0].Payload))
	assert.Equal(t, "history", got[1].StateID)
	assert.Empty(t, c.take())

	hub.Post(Message{StateID: "accounts", Payload: json.RawMessage(`201`)})
	got = c.take()
	require.Len(t, got, 1)
	assert.JSONEq(t, `201`, string(got[0].Payload))
}

func TestHubDeliversNewestAfterBurst(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	for i := 0; i < 500; i++ {
		payload, err := json.Marshal(i)
		require.NoError(t, err)
		hub.Post(Message{StateID: "accounts", Payload: payload})
	}

	var last Message
	for string(last.Payload) != "499" {
		last = read(t, conn)
		require.Equal(t, "accounts", last.StateID)
	}
}
