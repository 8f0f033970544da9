package server

import (
	"context"
	"time"

	"github.com/flack-chat/flack-server/internal/types"
)

// syncBacklog replays everything the client missed since its checkpoint:
// first one notification per room, then one per message, so a client can
// build room containers before messages reference them. Replay frames carry
// the ReplaySenderUnique sentinel and are delivered with backpressure, so a
// backlog larger than the send buffer is streamed in full rather than
// truncated.
func (cs *ChatServer) syncBacklog(ctx context.Context, c *Client) error {
	since := cs.resolveAnchor(ctx, c.checkpoint)

	rooms, err := cs.db.ListRoomsByParticipant(ctx, c.user.Id, since, false)
	if err != nil {
		return err
	}

	usernames := make(map[int]string)
	for _, room := range rooms {
		if !c.deliverBacklog(notificationFrame(RoomAttr{
			Object:       objectRoom,
			SenderUnique: ReplaySenderUnique,
			Id:           room.Id,
			Name:         room.Name,
			Participants: room.Participants,
			Sender:       cs.lookupUsername(ctx, usernames, room.CreatorId),
			SenderId:     room.CreatorId,
			Time:         epochMillis(room.CreatedAt),
		})) {
			return nil
		}
		cs.stats.Incr(metricBacklogFrames)
	}

	msgs, err := cs.db.ListMessagesByParticipant(ctx, c.user.Id, since, false)
	if err != nil {
		return err
	}

	participants := make(map[int][]int)
	for _, room := range rooms {
		participants[room.Id] = room.Participants
	}

	for _, msg := range msgs {
		attr := MessageAttr{
			Object:       objectMessage,
			SenderUnique: ReplaySenderUnique,
			MessageId:    msg.Id,
			Content:      msg.Content,
			Sender:       msg.SenderName,
			SenderId:     msg.SenderId,
			RoomName:     msg.RoomName,
			Time:         epochMillis(msg.CreatedAt),
		}
		if msg.File != nil {
			attr.File = &FileAttr{Id: msg.File.Id, Name: msg.File.Name, Hash: msg.File.Hash, Url: msg.File.Url}
		}
		if msg.Location != nil {
			attr.Location = &types.Location{Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude}
		}
		if msg.RoomId != nil {
			attr.RoomId = *msg.RoomId
			attr.RoomParticipants = cs.lookupParticipants(ctx, participants, *msg.RoomId)
		}

		if !c.deliverBacklog(notificationFrame(attr)) {
			return nil
		}
		cs.stats.Incr(metricBacklogFrames)
	}

	return nil
}

// resolveAnchor turns the checkpoint into a since-time. The room cursor wins
// when both are set; an anchor id that resolves to nothing silently degrades
// to an unfiltered backlog.
func (cs *ChatServer) resolveAnchor(ctx context.Context, cp Checkpoint) *time.Time {
	if cp.RoomId != NoCheckpoint {
		room, err := cs.db.GetRoomById(ctx, cp.RoomId)
		if err != nil {
			cs.log.Printf("room anchor %d did not resolve, replaying full backlog", cp.RoomId)
			return nil
		}
		t := room.CreatedAt
		return &t
	}

	if cp.MessageId != NoCheckpoint {
		msg, err := cs.db.GetMessageById(ctx, cp.MessageId)
		if err != nil {
			cs.log.Printf("message anchor %d did not resolve, replaying full backlog", cp.MessageId)
			return nil
		}
		t := msg.CreatedAt
		return &t
	}

	return nil
}

func (cs *ChatServer) lookupUsername(ctx context.Context, memo map[int]string, accountId int) string {
	if name, ok := memo[accountId]; ok {
		return name
	}

	user, err := cs.db.GetAccountById(ctx, accountId)
	if err != nil {
		cs.log.Println("GetAccountById:", err)
		memo[accountId] = ""
		return ""
	}

	memo[accountId] = user.Username
	return user.Username
}

func (cs *ChatServer) lookupParticipants(ctx context.Context, memo map[int][]int, roomId int) []int {
	if ids, ok := memo[roomId]; ok {
		return ids
	}

	room, err := cs.db.GetRoomById(ctx, roomId)
	if err != nil {
		memo[roomId] = nil
		return nil
	}

	memo[roomId] = room.Participants
	return room.Participants
}
