package server

import (
	"encoding/json"
	"time"

	"github.com/flack-chat/flack-server/internal/types"
)

const (
	frameTypeCreate       = "create"
	frameTypeResponse     = "response"
	frameTypeNotification = "notification"

	objectMessage = "message"
	objectRoom    = "room"

	// ReplaySenderUnique marks backlog replay frames so clients can tell
	// history apart from live traffic.
	ReplaySenderUnique = "server-notification-repeat"
)

type ClientFrame struct {
	Type string          `json:"type"`
	Attr json.RawMessage `json:"attr"`
}

type ServerFrame struct {
	Type string `json:"type"`
	Attr any    `json:"attr"`
}

// Request is the parsed form of an inbound frame. At most one of Message and
// Room is set; both nil means the frame was well-formed but of an unknown
// type or object kind, which the protocol ignores without error.
type Request struct {
	Message *MessageCreate
	Room    *RoomCreate
}

type MessageCreate struct {
	SenderUnique string          `json:"sender_unique"`
	Content      string          `json:"content"`
	File         *int            `json:"file"`
	RoomId       int             `json:"room"`
	Location     *types.Location `json:"location"`
}

type RoomCreate struct {
	SenderUnique string `json:"sender_unique"`
	Name         string `json:"name"`
	Participants []int  `json:"participants"`
}

// parseClientFrame parses an inbound frame once at the boundary. Malformed
// JSON is an error; recognized-shape frames of an unknown kind come back as
// an empty Request.
func parseClientFrame(raw []byte) (*Request, error) {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}

	if frame.Type != frameTypeCreate || len(frame.Attr) == 0 {
		return &Request{}, nil
	}

	var kind struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(frame.Attr, &kind); err != nil {
		return nil, err
	}

	switch kind.Object {
	case objectMessage:
		var mc MessageCreate
		if err := json.Unmarshal(frame.Attr, &mc); err != nil {
			return nil, err
		}
		return &Request{Message: &mc}, nil
	case objectRoom:
		var rc RoomCreate
		if err := json.Unmarshal(frame.Attr, &rc); err != nil {
			return nil, err
		}
		return &Request{Room: &rc}, nil
	default:
		return &Request{}, nil
	}
}

type FileAttr struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
	Hash string `json:"hash"`
	Url  string `json:"url"`
}

type MessageAttr struct {
	Object           string          `json:"object"`
	SenderUnique     string          `json:"sender_unique"`
	MessageId        int             `json:"message_id"`
	Content          string          `json:"content"`
	File             *FileAttr       `json:"file"`
	RoomId           int             `json:"room"`
	RoomName         string          `json:"room_name"`
	RoomParticipants []int           `json:"room_participants"`
	Sender           string          `json:"sender"`
	SenderId         int             `json:"sender_id"`
	Location         *types.Location `json:"location"`
	Time             int64           `json:"time"`
}

type RoomAttr struct {
	Object       string `json:"object"`
	SenderUnique string `json:"sender_unique"`
	Id           int    `json:"id"`
	Name         string `json:"name"`
	Participants []int  `json:"participants,omitempty"`
	Sender       string `json:"sender,omitempty"`
	SenderId     int    `json:"sender_id,omitempty"`
	Time         int64  `json:"time"`
}

type ErrorAttr struct {
	Object       string `json:"object"`
	SenderUnique string `json:"sender_unique"`
	Error        string `json:"error"`
}

func responseFrame(attr any) *ServerFrame {
	return &ServerFrame{Type: frameTypeResponse, Attr: attr}
}

func notificationFrame(attr any) *ServerFrame {
	return &ServerFrame{Type: frameTypeNotification, Attr: attr}
}

func failureResponse(object, senderUnique string) *ServerFrame {
	return responseFrame(ErrorAttr{
		Object:       object,
		SenderUnique: senderUnique,
		Error:        "internal server error",
	})
}

func epochMillis(t time.Time) int64 {
	return t.UnixMilli()
}
