package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/flack-chat/flack-server/internal/database"
	"github.com/flack-chat/flack-server/internal/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// NoCheckpoint is the wire sentinel for an absent cursor.
const NoCheckpoint = -1

// Checkpoint carries the client-supplied since cursors from the connect
// address. The room cursor takes precedence when both are set.
type Checkpoint struct {
	RoomId    int
	MessageId int
}

// Client is one connection session: it owns the socket, the resolved user
// identity and the checkpoint, and is the only entry and exit point for that
// client's frames.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	checkpoint Checkpoint
	send       chan *ServerFrame
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, checkpoint Checkpoint, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		checkpoint: checkpoint,
		send:       make(chan *ServerFrame, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(frame)
			if err != nil {
				c.log.Println("failed to serialize frame:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

// Read processes inbound frames strictly in arrival order. It returns when
// the connection drops; cleanup runs on every exit path.
func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		req, err := parseClientFrame(raw)
		if err != nil {
			c.log.Println("dropping malformed frame:", err)
			continue
		}

		switch {
		case req.Message != nil:
			c.handleMessageCreate(req.Message)
		case req.Room != nil:
			c.handleRoomCreate(req.Room)
		default:
			// unknown type or object kind, ignored without a reply
		}
	}
}

func (c *Client) handleMessageCreate(req *MessageCreate) {
	ctx := context.Background()
	cs := c.chatServer

	// a file id that resolves to nothing yields a null reference, not an error
	var fileId *int
	var fileAttr *FileAttr
	if req.File != nil {
		file, err := cs.db.GetFileById(ctx, *req.File)
		switch {
		case err == nil:
			fileId = &file.Id
			fileAttr = &FileAttr{Id: file.Id, Name: file.Name, Hash: file.Hash, Url: file.Url}
		case errors.Is(err, sql.ErrNoRows):
			c.log.Printf("message create references unknown file %d", *req.File)
		default:
			c.log.Println("GetFileById:", err)
			c.queueMessage(failureResponse(objectMessage, req.SenderUnique))
			return
		}
	}

	// same policy for the room reference
	var roomId *int
	var roomName string
	var roomParticipants []int
	room, err := cs.db.GetRoomById(ctx, req.RoomId)
	switch {
	case err == nil:
		roomId = &room.Id
		roomName = room.Name
		roomParticipants = room.Participants
	case errors.Is(err, sql.ErrNoRows):
		c.log.Printf("message create references unknown room %d", req.RoomId)
	default:
		c.log.Println("GetRoomById:", err)
		c.queueMessage(failureResponse(objectMessage, req.SenderUnique))
		return
	}

	var locationId *int
	if req.Location != nil {
		loc, err := cs.db.CreateLocation(ctx, req.Location.Latitude, req.Location.Longitude)
		if err != nil {
			c.log.Println("CreateLocation:", err)
			c.queueMessage(failureResponse(objectMessage, req.SenderUnique))
			return
		}
		locationId = &loc.Id
	}

	msg, err := cs.db.CreateMessage(ctx, database.CreateMessageParams{
		Content:    req.Content,
		FileId:     fileId,
		RoomId:     roomId,
		SenderId:   c.user.Id,
		LocationId: locationId,
	})
	if err != nil {
		c.log.Println("CreateMessage:", err)
		c.queueMessage(failureResponse(objectMessage, req.SenderUnique))
		return
	}

	attr := MessageAttr{
		Object:           objectMessage,
		SenderUnique:     req.SenderUnique,
		MessageId:        msg.Id,
		Content:          msg.Content,
		File:             fileAttr,
		RoomId:           req.RoomId,
		RoomName:         roomName,
		RoomParticipants: roomParticipants,
		Sender:           c.user.Username,
		SenderId:         c.user.Id,
		Location:         req.Location,
		Time:             epochMillis(msg.CreatedAt),
	}

	c.queueMessage(responseFrame(attr))
	cs.broadcast(notificationFrame(attr))
	cs.stats.Incr(metricMessagesCreated)
}

func (c *Client) handleRoomCreate(req *RoomCreate) {
	ctx := context.Background()
	cs := c.chatServer

	room, err := cs.db.CreateRoom(ctx, database.CreateRoomParams{
		Name:         req.Name,
		CreatorId:    c.user.Id,
		Participants: req.Participants,
	})
	if err != nil {
		c.log.Println("CreateRoom:", err)
		c.queueMessage(failureResponse(objectRoom, req.SenderUnique))
		return
	}

	// compact reply to the requester
	c.queueMessage(responseFrame(RoomAttr{
		Object:       objectRoom,
		SenderUnique: req.SenderUnique,
		Id:           room.Id,
		Name:         room.Name,
		Time:         epochMillis(room.CreatedAt),
	}))

	// fuller record for the group, including membership and sender identity
	cs.broadcast(notificationFrame(RoomAttr{
		Object:       objectRoom,
		SenderUnique: req.SenderUnique,
		Id:           room.Id,
		Name:         room.Name,
		Participants: room.Participants,
		Sender:       c.user.Username,
		SenderId:     c.user.Id,
		Time:         epochMillis(room.CreatedAt),
	}))
	cs.stats.Incr(metricRoomsCreated)
}

// deliverBacklog queues a replay frame, waiting for buffer space instead of
// dropping. Blocking is safe during catch-up: the write pump is already
// draining and the read pump has not started. Returns false once the session
// is stopped.
func (c *Client) deliverBacklog(frame *ServerFrame) bool {
	select {
	case c.send <- frame:
		return true
	case <-c.stop:
		return false
	}
}

func (c *Client) queueMessage(frame *ServerFrame) bool {
	select {
	case c.send <- frame:
	default:
		c.log.Println("failed to send frame to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.disconnect(c)
	c.stopClient()
}
