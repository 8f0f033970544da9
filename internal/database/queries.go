package database

import (
	"context"
	"database/sql"
	"time"
)

func (db *PgFlackRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email, created_at",
		params.Username,
		params.Email,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.Email,
		&u.CreatedAt,
	)

	return u, err
}

func (db *PgFlackRepository) GetAccountById(ctx context.Context, id int) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.Email,
	)

	return user, err
}

func (db *PgFlackRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash FROM accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
	)

	return user, err
}

func (db *PgFlackRepository) ListAccounts(ctx context.Context, excludeId int, query string) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, username, email FROM accounts "+
			"WHERE id != $1 AND ($2 = '' OR username ILIKE '%' || $2 || '%') "+
			"ORDER BY username",
		excludeId,
		query,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Id, &u.Username, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgFlackRepository) GetOrCreateToken(ctx context.Context, accountId int, key string) (Token, error) {
	// the dummy update makes the insert return the existing row's key
	// when the account already has a token
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO tokens (key, account_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (account_id) DO UPDATE SET key = tokens.key "+
			"RETURNING key, account_id, created_at",
		key,
		accountId,
		time.Now().UTC(),
	)

	var t Token
	err := row.Scan(&t.Key, &t.AccountId, &t.CreatedAt)

	return t, err
}

func (db *PgFlackRepository) TokenExists(ctx context.Context, key string) (bool, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM tokens WHERE key = $1)",
		key,
	)

	var exists bool
	err := row.Scan(&exists)

	return exists, err
}

func (db *PgFlackRepository) GetAccountByToken(ctx context.Context, key string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT a.id, a.username, a.email FROM accounts a "+
			"JOIN tokens t ON t.account_id = a.id "+
			"WHERE t.key = $1 LIMIT 1",
		key,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.Email,
	)

	return user, err
}

func (db *PgFlackRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	if len(params.Participants) < 2 {
		return Room{}, ErrTooFewParticipants
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Room{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"INSERT INTO rooms (name, creator_id, created_at) "+
			"VALUES ($1, $2, $3) RETURNING id, name, creator_id, created_at",
		params.Name,
		params.CreatorId,
		time.Now().UTC(),
	)

	var room Room
	if err := row.Scan(&room.Id, &room.Name, &room.CreatorId, &room.CreatedAt); err != nil {
		return Room{}, err
	}

	for _, accountId := range params.Participants {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO room_participants (room_id, account_id) VALUES ($1, $2) "+
				"ON CONFLICT DO NOTHING",
			room.Id,
			accountId,
		); err != nil {
			return Room{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Room{}, err
	}

	room.Participants = params.Participants
	return room, nil
}

func (db *PgFlackRepository) GetRoomById(ctx context.Context, id int) (Room, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT r.id, r.name, r.creator_id, r.created_at, rp.account_id "+
			"FROM rooms r "+
			"JOIN room_participants rp ON rp.room_id = r.id "+
			"WHERE r.id = $1",
		id,
	)
	if err != nil {
		return Room{}, err
	}
	defer rows.Close()

	var room Room
	found := false
	for rows.Next() {
		var accountId int
		if err := rows.Scan(&room.Id, &room.Name, &room.CreatorId, &room.CreatedAt, &accountId); err != nil {
			return Room{}, err
		}
		room.Participants = append(room.Participants, accountId)
		found = true
	}
	if err := rows.Err(); err != nil {
		return Room{}, err
	}
	if !found {
		return Room{}, sql.ErrNoRows
	}

	return room, nil
}

func (db *PgFlackRepository) ListRoomsByParticipant(ctx context.Context, accountId int, since *time.Time, inclusive bool) ([]Room, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT r.id, r.name, r.creator_id, r.created_at, rp.account_id "+
			"FROM rooms r "+
			"JOIN room_participants me ON me.room_id = r.id AND me.account_id = $1 "+
			"JOIN room_participants rp ON rp.room_id = r.id "+
			"WHERE $2::timestamptz IS NULL OR r.created_at "+sinceOp(inclusive)+" $2 "+
			"ORDER BY r.created_at, r.id",
		accountId,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	index := make(map[int]int)
	for rows.Next() {
		var r Room
		var participantId int
		if err := rows.Scan(&r.Id, &r.Name, &r.CreatorId, &r.CreatedAt, &participantId); err != nil {
			return nil, err
		}

		if i, ok := index[r.Id]; ok {
			rooms[i].Participants = append(rooms[i].Participants, participantId)
			continue
		}

		r.Participants = []int{participantId}
		index[r.Id] = len(rooms)
		rooms = append(rooms, r)
	}

	return rooms, rows.Err()
}

func (db *PgFlackRepository) CreateLocation(ctx context.Context, latitude, longitude float64) (Location, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO locations (latitude, longitude) "+
			"VALUES ($1, $2) RETURNING id, latitude, longitude",
		latitude,
		longitude,
	)

	var loc Location
	err := row.Scan(&loc.Id, &loc.Latitude, &loc.Longitude)

	return loc, err
}

func (db *PgFlackRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (content, file_id, room_id, sender_id, location_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at",
		params.Content,
		params.FileId,
		params.RoomId,
		params.SenderId,
		params.LocationId,
		time.Now().UTC(),
	)

	msg := Message{
		Content:    params.Content,
		FileId:     params.FileId,
		RoomId:     params.RoomId,
		SenderId:   params.SenderId,
		LocationId: params.LocationId,
	}
	err := row.Scan(&msg.Id, &msg.CreatedAt)

	return msg, err
}

func (db *PgFlackRepository) GetMessageById(ctx context.Context, id int) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, content, file_id, room_id, sender_id, location_id, created_at "+
			"FROM messages WHERE id = $1 LIMIT 1",
		id,
	)

	var msg Message
	var fileId, roomId, locationId sql.NullInt64
	err := row.Scan(&msg.Id, &msg.Content, &fileId, &roomId, &msg.SenderId, &locationId, &msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}

	msg.FileId = nullableInt(fileId)
	msg.RoomId = nullableInt(roomId)
	msg.LocationId = nullableInt(locationId)

	return msg, nil
}

func (db *PgFlackRepository) ListMessagesByParticipant(ctx context.Context, accountId int, since *time.Time, inclusive bool) ([]MessageWithRefs, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT m.id, m.content, m.room_id, m.sender_id, m.created_at, a.username, "+
			"r.name, f.id, f.name, f.hash, f.url, l.latitude, l.longitude "+
			"FROM messages m "+
			"JOIN accounts a ON a.id = m.sender_id "+
			"LEFT JOIN rooms r ON r.id = m.room_id "+
			"LEFT JOIN files f ON f.id = m.file_id "+
			"LEFT JOIN locations l ON l.id = m.location_id "+
			"WHERE m.room_id IN (SELECT room_id FROM room_participants WHERE account_id = $1) "+
			"AND ($2::timestamptz IS NULL OR m.created_at "+sinceOp(inclusive)+" $2) "+
			"ORDER BY m.created_at, m.id",
		accountId,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []MessageWithRefs
	for rows.Next() {
		var m MessageWithRefs
		var roomId, fileId sql.NullInt64
		var roomName, fileName, fileHash, fileUrl sql.NullString
		var lat, lon sql.NullFloat64
		if err := rows.Scan(
			&m.Id,
			&m.Content,
			&roomId,
			&m.SenderId,
			&m.CreatedAt,
			&m.SenderName,
			&roomName,
			&fileId,
			&fileName,
			&fileHash,
			&fileUrl,
			&lat,
			&lon,
		); err != nil {
			return nil, err
		}

		m.RoomId = nullableInt(roomId)
		m.RoomName = roomName.String
		if fileId.Valid {
			m.File = &File{
				Id:   int(fileId.Int64),
				Name: fileName.String,
				Hash: fileHash.String,
				Url:  fileUrl.String,
			}
		}
		if lat.Valid && lon.Valid {
			m.Location = &Location{Latitude: lat.Float64, Longitude: lon.Float64}
		}

		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}

func (db *PgFlackRepository) CreateFile(ctx context.Context, params CreateFileParams) (File, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO files (name, hash, url, owner_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, name, hash, url, owner_id, created_at",
		params.Name,
		params.Hash,
		params.Url,
		params.OwnerId,
		time.Now().UTC(),
	)

	var f File
	err := row.Scan(&f.Id, &f.Name, &f.Hash, &f.Url, &f.OwnerId, &f.CreatedAt)

	return f, err
}

func (db *PgFlackRepository) GetFileById(ctx context.Context, id int) (File, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, name, hash, url, owner_id FROM files "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var f File
	err := row.Scan(&f.Id, &f.Name, &f.Hash, &f.Url, &f.OwnerId)

	return f, err
}

func (db *PgFlackRepository) ListFilesByOwner(ctx context.Context, ownerId int) ([]File, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, name, hash, url, owner_id FROM files "+
			"WHERE owner_id = $1 ORDER BY name",
		ownerId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Id, &f.Name, &f.Hash, &f.Url, &f.OwnerId); err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// sinceOp picks the comparison for a since filter: inclusive for the
// minute-granularity time_since endpoints, strict for checkpoint anchors.
func sinceOp(inclusive bool) string {
	if inclusive {
		return ">="
	}
	return ">"
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
