package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/flack-chat/flack-server/internal/database"
	"github.com/flack-chat/flack-server/internal/stats"
	"github.com/flack-chat/flack-server/internal/testutil"
	"github.com/flack-chat/flack-server/internal/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNewChatServer(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	for _, name := range []string{
		metricActiveConnections,
		metricMessagesCreated,
		metricRoomsCreated,
		metricNotificationsSent,
		metricBacklogFrames,
	} {
		su.On("RegisterMetric", name).Return().Once()
	}

	logger := testutil.TestLogger(t)
	cs, err := NewChatServer(logger, &database.MockFlackRepository{}, nil, NewGroupRegistry(logger), su)
	assert.NoError(t, err)
	assert.NotNil(t, cs)
	su.AssertExpectations(t)
}

func TestChatServer_Authenticate(t *testing.T) {
	t.Run("empty token is rejected", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockFlackRepository{}, newMockStats())

		_, err := cs.authenticate(context.Background(), "")
		assert.ErrorIs(t, err, errInvalidToken)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("TokenExists", mock.Anything, "bogus").Return(false, nil)
		cs := newTestChatServer(t, db, newMockStats())

		_, err := cs.authenticate(context.Background(), "bogus")
		assert.ErrorIs(t, err, errInvalidToken)
		db.AssertExpectations(t)
	})

	t.Run("valid token resolves the account", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("TokenExists", mock.Anything, "goodtoken").Return(true, nil)
		db.On("GetAccountByToken", mock.Anything, "goodtoken").
			Return(database.User{Id: 1, Username: "alice", Email: "alice@example.com"}, nil)
		cs := newTestChatServer(t, db, newMockStats())

		user, err := cs.authenticate(context.Background(), "goodtoken")
		assert.NoError(t, err)
		assert.Equal(t, types.User{Id: 1, Username: "alice", Email: "alice@example.com"}, user)
		db.AssertExpectations(t)
	})

	t.Run("lookup failure propagates", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("TokenExists", mock.Anything, "goodtoken").Return(false, errors.New("connection refused"))
		cs := newTestChatServer(t, db, newMockStats())

		_, err := cs.authenticate(context.Background(), "goodtoken")
		assert.EqualError(t, err, "connection refused")
	})
}

// dialChatServer upgrades a real socket and hands it to Connect with the
// given token, returning the client side of the connection.
func dialChatServer(t *testing.T, cs *ChatServer, token string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cs.Connect(conn, token, Checkpoint{RoomId: NoCheckpoint, MessageId: NoCheckpoint})
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestChatServer_Connect(t *testing.T) {
	t.Run("invalid token closes the socket and never joins", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("TokenExists", mock.Anything, "bogus").Return(false, nil)
		cs := newTestChatServer(t, db, newMockStats())

		conn := dialChatServer(t, cs, "bogus")

		// the server closes with no payload; the read must fail
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, _, err := conn.ReadMessage()
		assert.Error(t, err)
		assert.Equal(t, 0, cs.registry.Size(DefaultGroup), "rejected session must not reach the group")
		db.AssertExpectations(t)
	})

	t.Run("valid token joins the group", func(t *testing.T) {
		db := &database.MockFlackRepository{}
		db.On("TokenExists", mock.Anything, "goodtoken").Return(true, nil)
		db.On("GetAccountByToken", mock.Anything, "goodtoken").
			Return(database.User{Id: 1, Username: "alice"}, nil)
		db.On("ListRoomsByParticipant", mock.Anything, 1, (*time.Time)(nil), false).
			Return([]database.Room{}, nil)
		db.On("ListMessagesByParticipant", mock.Anything, 1, (*time.Time)(nil), false).
			Return([]database.MessageWithRefs{}, nil)
		cs := newTestChatServer(t, db, newMockStats())

		dialChatServer(t, cs, "goodtoken")

		assert.Eventually(t, func() bool {
			return cs.registry.Size(DefaultGroup) == 1
		}, time.Second, 10*time.Millisecond)
		db.AssertExpectations(t)
	})
}

func TestChatServer_Disconnect(t *testing.T) {
	su := newMockStats()
	cs := newTestChatServer(t, &database.MockFlackRepository{}, su)
	c := newTestClient(t, 1)
	c.chatServer = cs
	c.user = types.User{Id: 1, Username: "alice"}

	cs.addClient(c)
	cs.registry.Join(DefaultGroup, c)
	assert.Equal(t, 1, cs.registry.Size(DefaultGroup))

	cs.disconnect(c)
	assert.Equal(t, 0, cs.registry.Size(DefaultGroup))

	// a second disconnect must not decrement the gauge again
	cs.disconnect(c)
	su.AssertNumberOfCalls(t, "Decr", 1)
}

func TestChatServer_BroadcastCountsDelivery(t *testing.T) {
	cs := newTestChatServer(t, &database.MockFlackRepository{}, newMockStats())

	a := attachedTestClient(t, cs, types.User{Id: 1, Username: "alice"})
	b := attachedTestClient(t, cs, types.User{Id: 2, Username: "bob"})

	n := cs.broadcast(notificationFrame(MessageAttr{MessageId: 1}))
	assert.Equal(t, 2, n)
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 1)
}
