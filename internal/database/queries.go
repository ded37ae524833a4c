package database

import (
	"time"
)

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	now := time.Now().UTC()
	res := db.conn.QueryRow(
		"INSERT INTO accounts (external_id, display_name, email, password_hash, avatar_url, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id, external_id, display_name, email, avatar_url, created_at",
		params.ExternalId,
		params.DisplayName,
		params.Email,
		params.PasswordHash,
		params.AvatarURL,
		now,
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.ExternalId,
		&a.DisplayName,
		&a.Email,
		&a.AvatarURL,
		&a.CreatedAt,
	)

	return a, err
}

func (db *PgChatRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, display_name, email, password_hash, avatar_url, created_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.ExternalId,
		&a.DisplayName,
		&a.Email,
		&a.PasswordHash,
		&a.AvatarURL,
		&a.CreatedAt,
	)

	return a, err
}

func (db *PgChatRepository) GetAccountByExternalId(externalId string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, display_name, email, password_hash, avatar_url, created_at FROM accounts "+
			"WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var a Account
	err := row.Scan(
		&a.Id,
		&a.ExternalId,
		&a.DisplayName,
		&a.Email,
		&a.PasswordHash,
		&a.AvatarURL,
		&a.CreatedAt,
	)

	return a, err
}

func (db *PgChatRepository) CreateRoom(params CreateRoomParams) error {
	_, err := db.conn.Exec(
		"INSERT INTO rooms (id, name, description, created_by, is_private, password_hash, created_at, last_activity) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7)",
		params.Id,
		params.Name,
		params.Description,
		params.CreatedBy,
		params.IsPrivate,
		params.PasswordHash,
		params.CreatedAt.UTC(),
	)

	return err
}

func (db *PgChatRepository) ListRooms() ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT id, name, description, created_by, is_private, password_hash, created_at, last_activity, message_count, user_count " +
			"FROM rooms ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(
			&r.Id,
			&r.Name,
			&r.Description,
			&r.CreatedBy,
			&r.IsPrivate,
			&r.PasswordHash,
			&r.CreatedAt,
			&r.LastActivity,
			&r.MessageCount,
			&r.UserCount,
		); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}

	return rooms, rows.Err()
}

func (db *PgChatRepository) SaveMessage(msg Message) error {
	_, err := db.conn.Exec(
		"INSERT INTO messages (id, room_name, user_id, content, created_at) VALUES ($1, $2, $3, $4, $5)",
		msg.Id,
		msg.RoomName,
		msg.UserId,
		msg.Content,
		msg.CreatedAt.UTC(),
	)
	if err != nil {
		return err
	}

	// room counters are derived stats, best-effort alongside the message
	_, err = db.conn.Exec(
		"UPDATE rooms SET message_count = message_count + 1, last_activity = $2 WHERE name = $1",
		msg.RoomName,
		msg.CreatedAt.UTC(),
	)

	return err
}

func (db *PgChatRepository) GetRecentMessages(roomName string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, room_name, user_id, content, created_at FROM messages "+
			"WHERE room_name = $1 ORDER BY created_at DESC LIMIT $2",
		roomName,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Id, &m.RoomName, &m.UserId, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// chronological order for replay
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (db *PgChatRepository) UpsertUserSession(session UserSession) error {
	_, err := db.conn.Exec(
		"INSERT INTO user_sessions (user_id, display_name, email, avatar_url, connection_id, last_activity) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"ON CONFLICT (user_id) DO UPDATE SET display_name = $2, email = $3, avatar_url = $4, connection_id = $5, last_activity = $6",
		session.UserId,
		session.DisplayName,
		session.Email,
		session.AvatarURL,
		session.ConnectionId,
		session.LastActivity.UTC(),
	)

	return err
}

func (db *PgChatRepository) DeleteOldData(messageCutoff, sessionCutoff time.Time) (int64, int64, error) {
	msgRes, err := db.conn.Exec(
		"DELETE FROM messages WHERE created_at < $1",
		messageCutoff.UTC(),
	)
	if err != nil {
		return 0, 0, err
	}
	msgCount, _ := msgRes.RowsAffected()

	sessRes, err := db.conn.Exec(
		"DELETE FROM user_sessions WHERE last_activity < $1",
		sessionCutoff.UTC(),
	)
	if err != nil {
		return msgCount, 0, err
	}
	sessCount, _ := sessRes.RowsAffected()

	return msgCount, sessCount, nil
}
