package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/flack-chat/flack-server/internal/database"
	"github.com/flack-chat/flack-server/internal/server"
	"github.com/flack-chat/flack-server/internal/types"
	"github.com/gorilla/websocket"
)

// timeSinceLayout is the wire format for the time_since query filter.
const timeSinceLayout = "20060102-1504"

func (s *FlackApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// parseTimeSince parses the optional time_since query parameter. The second
// return value reports whether a filter was supplied.
func parseTimeSince(r *http.Request) (*time.Time, bool, error) {
	raw := r.URL.Query().Get("time_since")
	if raw == "" {
		return nil, true, nil
	}

	t, err := time.Parse(timeSinceLayout, raw)
	if err != nil {
		return nil, false, err
	}

	return &t, true, nil
}

func (s *FlackApp) listUsers(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUsers, err := s.db.ListAccounts(r.Context(), user.Id, r.URL.Query().Get("q"))
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := make([]types.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, types.User{Id: u.Id, Username: u.Username})
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *FlackApp) listRooms(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	since, ok, err := parseTimeSince(r)
	if !ok {
		s.log.Println("invalid time_since:", err)
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbRooms, err := s.db.ListRoomsByParticipant(r.Context(), user.Id, since, true)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, room := range dbRooms {
		rooms = append(rooms, types.Room{
			Id:           room.Id,
			Name:         room.Name,
			CreatorId:    room.CreatorId,
			Participants: room.Participants,
			CreatedAt:    room.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *FlackApp) listMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	since, ok, err := parseTimeSince(r)
	if !ok {
		s.log.Println("invalid time_since:", err)
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbMsgs, err := s.db.ListMessagesByParticipant(r.Context(), user.Id, since, true)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msgs := make([]types.Message, 0, len(dbMsgs))
	for _, m := range dbMsgs {
		msg := types.Message{
			Id:        m.Id,
			Content:   m.Content,
			Sender:    m.SenderName,
			SenderId:  m.SenderId,
			Timestamp: m.CreatedAt,
		}
		if m.RoomId != nil {
			msg.RoomId = *m.RoomId
		}
		if m.File != nil {
			msg.File = &types.File{Id: m.File.Id, Name: m.File.Name, Hash: m.File.Hash, Url: m.File.Url}
		}
		if m.Location != nil {
			msg.Location = &types.Location{Latitude: m.Location.Latitude, Longitude: m.Location.Longitude}
		}
		msgs = append(msgs, msg)
	}

	s.writeJson(w, http.StatusOK, msgs)
}

func (s *FlackApp) listFiles(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbFiles, err := s.db.ListFilesByOwner(r.Context(), user.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	files := make([]types.File, 0, len(dbFiles))
	for _, f := range dbFiles {
		files = append(files, types.File{
			Id:      f.Id,
			Name:    f.Name,
			Hash:    f.Hash,
			Url:     f.Url,
			OwnerId: f.OwnerId,
		})
	}

	s.writeJson(w, http.StatusOK, files)
}

func (s *FlackApp) uploadFile(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	defer file.Close()

	stored, err := s.store.Put(r.Context(), file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		s.log.Println("file store put:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbFile, err := s.db.CreateFile(r.Context(), database.CreateFileParams{
		Name:    header.Filename,
		Hash:    stored.Hash,
		Url:     stored.Url,
		OwnerId: user.Id,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{
		"message": "success",
		"file": map[string]any{
			"id":   dbFile.Id,
			"name": dbFile.Name,
			"url":  dbFile.Url,
		},
	})
}

// checkpointParam reads an integer cursor from the query string; absence and
// the -1 sentinel both mean "no checkpoint".
func checkpointParam(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return server.NoCheckpoint
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return server.NoCheckpoint
	}

	return id
}

func (s *FlackApp) serveWs(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	checkpoint := server.Checkpoint{
		RoomId:    checkpointParam(r, "room"),
		MessageId: checkpointParam(r, "message"),
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	// authentication, registration and backlog replay happen inside Connect;
	// an invalid token closes the socket with no payload
	s.cs.Connect(conn, token, checkpoint)
}
