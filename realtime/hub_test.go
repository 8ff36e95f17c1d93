package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(h *Hub, userID uint) *Client {
	c := newClient(h, nil)
	c.userID = userID
	h.register(c)
	return c
}

func drain(c *Client) []Envelope {
	var out []Envelope
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return out
			}
			var e Envelope
			_ = json.Unmarshal(frame, &e)
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestNotifyUserReachesEveryConnectionOfThatUser(t *testing.T) {
	h := NewHub()
	a1, a2, b := connect(h, 1), connect(h, 1), connect(h, 2)

	h.NotifyUser(1, "newNotification", map[string]string{"message": "hi"})

	assert.Len(t, drain(a1), 1)
	assert.Len(t, drain(a2), 1)
	assert.Empty(t, drain(b))
	assert.Equal(t, 2, h.Connections(1))
}

func TestBroadcastTaskSkipsExcludedUser(t *testing.T) {
	h := NewHub()
	owner, worker, sender := connect(h, 1), connect(h, 2), connect(h, 3)
	for _, c := range []*Client{owner, worker, sender} {
		h.join(c, 10)
	}

	h.BroadcastTask(10, "newMessage", "hello", 3)

	got := drain(owner)
	require.Len(t, got, 1)
	assert.Equal(t, "newMessage", got[0].Event)
	assert.Len(t, drain(worker), 1)
	assert.Empty(t, drain(sender))
}

func TestLeaveAndUnregisterStopDelivery(t *testing.T) {
	h := NewHub()
	c := connect(h, 1)
	h.join(c, 10)
	h.leave(c, 10)

	h.BroadcastTask(10, "newMessage", "x", 0)
	assert.Empty(t, drain(c))

	h.join(c, 11)
	h.unregister(c)
	h.NotifyUser(1, "newNotification", "x")
	h.BroadcastTask(11, "newMessage", "x", 0)
	assert.Zero(t, h.Connections(1))
	assert.Empty(t, h.tasks)

	_, open := <-c.send
	assert.False(t, open)
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	h := NewHub()
	c := connect(h, 1)
	for i := 0; i < sendQueueDepth+10; i++ {
		h.NotifyUser(1, "newNotification", i)
	}
	assert.Len(t, c.send, sendQueueDepth)
}

type brokenBroker struct{ published int }

func (b *brokenBroker) Publish(ctx context.Context, _ string, _ interface{}) *redis.IntCmd {
	b.published++
	return redis.NewIntResult(0, errors.New("connection refused"))
}

func (b *brokenBroker) Subscribe(context.Context, ...string) *redis.PubSub { return nil }

func TestRedisBridgeFallsBackToLocalDelivery(t *testing.T) {
	h := NewHub()
	c := connect(h, 5)
	broker := &brokenBroker{}
	bridge := NewRedisBridge(h, broker, "kazi:test")

	bridge.NotifyUser(5, "newNotification", "payload")
	assert.Equal(t, 1, broker.published)
	assert.Len(t, drain(c), 1)
}

func TestRedisBridgeDispatchesBusMessages(t *testing.T) {
	h := NewHub()
	a, b := connect(h, 1), connect(h, 2)
	h.join(a, 7)
	h.join(b, 7)
	bridge := NewRedisBridge(h, &brokenBroker{}, "kazi:test")

	bridge.handlePayload([]byte(`{"target":"task","id":7,"except":2,"frame":{"event":"newMessage","data":"x"}}`))
	bridge.handlePayload([]byte(`not json`))

	got := drain(a)
	require.Len(t, got, 1)
	assert.Equal(t, "newMessage", got[0].Event)
	assert.Empty(t, drain(b))
}

type participants map[uint][]uint

func (p participants) IsParticipant(_ context.Context, taskID, userID uint) (bool, error) {
	for _, id := range p[taskID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func fakeAuth(token string) (uint, error) {
	switch token {
	case "tok-1":
		return 1, nil
	case "tok-2":
		return 2, nil
	}
	return 0, errors.New("bad token")
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e Envelope
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestHandlerAuthenticatesAndJoinsRooms(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(NewHandler(h, participants{9: {1}}, fakeAuth, nil))
	defer srv.Close()

	conn := dial(t, srv, "")
	require.NoError(t, conn.WriteJSON(inbound{Event: eventJoinTask, TaskID: 9}))
	assert.Equal(t, eventError, readEvent(t, conn).Event)

	require.NoError(t, conn.WriteJSON(inbound{Event: eventAuthenticate, Token: "nope"}))
	assert.Equal(t, eventError, readEvent(t, conn).Event)

	require.NoError(t, conn.WriteJSON(inbound{Event: eventAuthenticate, Token: "tok-1"}))
	assert.Equal(t, eventAuthenticated, readEvent(t, conn).Event)

	require.NoError(t, conn.WriteJSON(inbound{Event: eventJoinTask, TaskID: 9}))
	assert.Equal(t, eventJoined, readEvent(t, conn).Event)

	h.BroadcastTask(9, "newMessage", "hello", 0)
	assert.Equal(t, "newMessage", readEvent(t, conn).Event)
}

func TestHandlerRejectsNonParticipants(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(NewHandler(h, participants{9: {1}}, fakeAuth, nil))
	defer srv.Close()

	conn := dial(t, srv, "?token=tok-2")
	assert.Equal(t, eventAuthenticated, readEvent(t, conn).Event)

	require.NoError(t, conn.WriteJSON(inbound{Event: eventJoinTask, TaskID: 9}))
	assert.Equal(t, eventError, readEvent(t, conn).Event)

	h.NotifyUser(2, "newNotification", "direct")
	assert.Equal(t, "newNotification", readEvent(t, conn).Event)
}
