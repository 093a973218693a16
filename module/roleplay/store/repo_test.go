package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"RPChat/module/roleplay/model"
	"RPChat/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.values[i].(int64)
		case *string:
			*p = r.values[i].(string)
		case **time.Time:
			if v, ok := r.values[i].(*time.Time); ok {
				*p = v
			}
		case *time.Time:
			*p = r.values[i].(time.Time)
		}
	}
	return nil
}

type fakeQuerier struct {
	row  fakeRow
	sql  string
	args []any
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.sql = sql
	q.args = args
	return q.row
}

func TestRepo_GetCharacter(t *testing.T) {
	died := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	q := &fakeQuerier{row: fakeRow{values: []any{int64(7), int64(1), "Aurelie", &died}}}
	r := &Repo{db: q}

	c, err := r.GetCharacter(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, int64(1), c.UserID)
	assert.True(t, c.IsDead())
	assert.Equal(t, sqlGetCharacter, q.sql)
	assert.Equal(t, []any{int64(7)}, q.args)
}

func TestRepo_NotFound(t *testing.T) {
	r := &Repo{db: &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}}

	_, err := r.GetUser(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errs.ErrNotFound.Is(err))

	_, err = r.GetChatRoom(context.Background(), 5)
	assert.True(t, errs.ErrNotFound.Is(err))
}

func TestRepo_DriverErrorIsNotNotFound(t *testing.T) {
	r := &Repo{db: &fakeQuerier{row: fakeRow{err: errors.New("conn reset")}}}

	_, err := r.GetUser(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, errs.ErrNotFound.Is(err))
}

func TestRepo_CreateMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	q := &fakeQuerier{row: fakeRow{values: []any{int64(99), at}}}
	r := &Repo{db: q}

	m, err := r.CreateMessage(context.Background(), model.NewMessage{
		RoomID: 5, CharacterID: 7, Content: "hodil kostkou: 4", MessageType: model.TypeDiceRoll,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(99), m.ID)
	assert.Equal(t, at, m.CreatedAt)
	assert.Equal(t, model.TypeDiceRoll, m.MessageType)
	assert.Equal(t, []any{int64(5), int64(7), "hodil kostkou: 4", model.TypeDiceRoll}, q.args)
}
