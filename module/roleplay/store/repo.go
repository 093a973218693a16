package store

import (
	"context"

	"RPChat/module/roleplay/model"
	"RPChat/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	sqlGetUser      = `SELECT id, username FROM users WHERE id = $1`
	sqlGetCharacter = `SELECT id, user_id, name, death_date FROM characters WHERE id = $1`
	sqlGetChatRoom  = `SELECT id, name, COALESCE(description, '') FROM chat_rooms WHERE id = $1`
	sqlInsertMsg    = `INSERT INTO messages (room_id, character_id, content, message_type)
VALUES ($1, NULLIF($2, 0), $3, $4)
RETURNING id, created_at`
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repo reads users, characters and rooms from PostgreSQL and appends chat messages.
type Repo struct {
	db   querier
	pool *pgxpool.Pool
}

func NewRepo(ctx context.Context, url string, maxConns int32) (*Repo, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "open pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return &Repo{db: pool, pool: pool}, nil
}

func (r *Repo) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *Repo) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.db.QueryRow(ctx, sqlGetUser, id).Scan(&u.ID, &u.Username)
	if err != nil {
		return nil, notFound(err, "user not found", "userId", id)
	}
	return &u, nil
}

func (r *Repo) GetCharacter(ctx context.Context, id int64) (*model.Character, error) {
	var c model.Character
	err := r.db.QueryRow(ctx, sqlGetCharacter, id).Scan(&c.ID, &c.UserID, &c.Name, &c.DeathDate)
	if err != nil {
		return nil, notFound(err, "character not found", "characterId", id)
	}
	return &c, nil
}

func (r *Repo) GetChatRoom(ctx context.Context, id int64) (*model.ChatRoom, error) {
	var room model.ChatRoom
	err := r.db.QueryRow(ctx, sqlGetChatRoom, id).Scan(&room.ID, &room.Name, &room.Description)
	if err != nil {
		return nil, notFound(err, "room not found", "roomId", id)
	}
	return &room, nil
}

func (r *Repo) CreateMessage(ctx context.Context, in model.NewMessage) (*model.Message, error) {
	m := model.Message{
		RoomID:      in.RoomID,
		CharacterID: in.CharacterID,
		Content:     in.Content,
		MessageType: in.MessageType,
	}
	err := r.db.QueryRow(ctx, sqlInsertMsg, in.RoomID, in.CharacterID, in.Content, in.MessageType).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "insert message room=%d character=%d", in.RoomID, in.CharacterID)
	}
	return &m, nil
}

func notFound(err error, msg string, kv ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound.WrapMsg(msg, kv...)
	}
	return errors.Wrap(err, msg)
}
