package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/flack-chat/flack-server/internal/cache"
	"github.com/flack-chat/flack-server/internal/database"
	"github.com/flack-chat/flack-server/internal/stats"
	"github.com/flack-chat/flack-server/internal/types"
	"github.com/gorilla/websocket"
)

// authTimeout bounds the identity resolution at connect so a client that
// opens a socket and stalls cannot hold resources forever.
const authTimeout = 5 * time.Second

const (
	metricActiveConnections = "ActiveConnections"
	metricMessagesCreated   = "MessagesCreated"
	metricRoomsCreated      = "RoomsCreated"
	metricNotificationsSent = "NotificationsSent"
	metricBacklogFrames     = "BacklogFrames"
)

var errInvalidToken = errors.New("invalid or missing token")

type ChatServer struct {
	log         *log.Logger
	db          database.FlackRepository
	tokens      *cache.TokenCache
	registry    *GroupRegistry
	stats       stats.StatsProvider
	clients     map[*Client]struct{}
	clientsLock sync.Mutex
}

func NewChatServer(logger *log.Logger, db database.FlackRepository, tokens *cache.TokenCache,
	registry *GroupRegistry, su stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:      logger,
		db:       db,
		tokens:   tokens,
		registry: registry,
		stats:    su,
		clients:  make(map[*Client]struct{}),
	}

	for _, name := range []string{
		metricActiveConnections,
		metricMessagesCreated,
		metricRoomsCreated,
		metricNotificationsSent,
		metricBacklogFrames,
	} {
		su.RegisterMetric(name)
	}

	return cs, nil
}

// Connect drives one connection's lifecycle after the WebSocket upgrade:
// authenticate, join the broadcast group, replay the backlog, then start the
// pumps. An invalid token closes the socket with no payload and the session
// never touches the registry.
func (cs *ChatServer) Connect(conn *websocket.Conn, token string, checkpoint Checkpoint) {
	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()

	user, err := cs.authenticate(ctx, token)
	if err != nil {
		cs.log.Println("rejecting connection:", err)
		conn.Close()
		return
	}

	c := NewClient(user, checkpoint, conn, cs, cs.log)
	cs.addClient(c)
	cs.registry.Join(DefaultGroup, c)
	cs.stats.Incr(metricActiveConnections)
	cs.log.Printf("accepted connection from %q", user.Username)

	// write pump first so replay frames drain, backlog before any inbound
	// frame is read
	go c.Write()

	if err := cs.syncBacklog(context.Background(), c); err != nil {
		cs.log.Println("backlog sync:", err)
	}

	go c.Read()
}

func (cs *ChatServer) authenticate(ctx context.Context, token string) (types.User, error) {
	if token == "" {
		return types.User{}, errInvalidToken
	}

	if user, err := cs.tokens.GetUser(ctx, token); err == nil && user != nil {
		return *user, nil
	}

	exists, err := cs.db.TokenExists(ctx, token)
	if err != nil {
		return types.User{}, err
	}
	if !exists {
		return types.User{}, errInvalidToken
	}

	dbUser, err := cs.db.GetAccountByToken(ctx, token)
	if err != nil {
		return types.User{}, err
	}

	user := types.User{
		Id:       dbUser.Id,
		Username: dbUser.Username,
		Email:    dbUser.Email,
	}

	if err := cs.tokens.SetUser(ctx, token, user); err != nil {
		cs.log.Println("token cache set:", err)
	}

	return user, nil
}

func (cs *ChatServer) broadcast(frame *ServerFrame) int {
	n := cs.registry.Broadcast(DefaultGroup, frame)
	cs.stats.Incr(metricNotificationsSent)
	return n
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	cs.clients[c] = struct{}{}
}

// disconnect runs on every session exit path; calling it twice is harmless.
func (cs *ChatServer) disconnect(c *Client) {
	cs.registry.Leave(DefaultGroup, c)

	cs.clientsLock.Lock()
	_, present := cs.clients[c]
	delete(cs.clients, c)
	cs.clientsLock.Unlock()

	if present {
		cs.stats.Decr(metricActiveConnections)
		cs.log.Printf("removed connection from %q", c.user.Username)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("shutting down chat server")

	cs.clientsLock.Lock()
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.clientsLock.Unlock()

	for _, c := range clients {
		c.stopClient()
		c.conn.Close()
		cs.disconnect(c)
	}

	return ctx.Err()
}
