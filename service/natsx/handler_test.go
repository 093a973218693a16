package natsx

import (
	"context"
	"testing"
	"time"

	"RPChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var trace []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, msg Message) error {
				trace = append(trace, name)
				return next(ctx, msg)
			}
		}
	}
	h := Chain(func(context.Context, Message) error {
		trace = append(trace, "handler")
		return nil
	}, mw("a"), mw("b"))

	require.NoError(t, h(context.Background(), Message{}))
	assert.Equal(t, []string{"a", "b", "handler"}, trace)
}

func TestRecover(t *testing.T) {
	h := Chain(func(context.Context, Message) error { panic("boom") }, Recover())
	err := h(context.Background(), Message{Subject: "x"})
	require.Error(t, err)
	assert.True(t, errs.ErrInternal.Is(err))
}

func TestIdempotent(t *testing.T) {
	now := time.Unix(1000, 0)
	store := newMemIdem(time.Minute, func() time.Time { return now })

	calls := 0
	h := Chain(func(context.Context, Message) error {
		calls++
		return nil
	}, Idempotent(store, 0, nil))

	msg := Message{Subject: "rp.narrator", Header: map[string]string{"Nats-Msg-Id": "m1"}}
	require.NoError(t, h(context.Background(), msg))
	require.NoError(t, h(context.Background(), msg))
	assert.Equal(t, 1, calls)

	// without an id every copy is delivered, equal bodies included
	plain := Message{Subject: "rp.narrator", Data: []byte(`{"roomId":5,"content":"The bell tolls."}`)}
	require.NoError(t, h(context.Background(), plain))
	require.NoError(t, h(context.Background(), plain))
	assert.Equal(t, 3, calls)

	now = now.Add(2 * time.Minute)
	require.NoError(t, h(context.Background(), msg))
	assert.Equal(t, 4, calls)
}

func TestIdempotentNarratorKey(t *testing.T) {
	store := newMemIdem(time.Minute, time.Now)
	calls := 0
	h := Chain(func(context.Context, Message) error {
		calls++
		return nil
	}, Idempotent(store, 0, NarratorKey))

	stored := Message{Subject: "rp.narrator", Data: []byte(`{"id":42,"roomId":5,"content":"Dawn."}`)}
	require.NoError(t, h(context.Background(), stored))
	require.NoError(t, h(context.Background(), stored))
	assert.Equal(t, 1, calls)

	announce := Message{Subject: "rp.narrator", Data: []byte(`{"roomId":5,"content":"Dawn."}`)}
	require.NoError(t, h(context.Background(), announce))
	require.NoError(t, h(context.Background(), announce))
	assert.Equal(t, 3, calls)

	assert.Equal(t, "m9", NarratorKey(Message{Header: map[string]string{"X-Msg-Id": "m9"}, Data: stored.Data}))
	assert.Equal(t, "narrator:42", NarratorKey(stored))
	assert.Empty(t, NarratorKey(announce))
	assert.Empty(t, NarratorKey(Message{Data: []byte(`garbage`)}))
}
