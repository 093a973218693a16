package natsx

import (
	"context"
	"sync"
	"time"
)

// IdemStore remembers message ids for a while.
type IdemStore interface {
	SeenOnce(key string, ttl time.Duration) (seen bool, err error)
}

type memIdem struct {
	mu    sync.Mutex
	m     map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
	sweep time.Time
}

// NewMemIdem is a single-process IdemStore. Expired keys are swept lazily.
func NewMemIdem(defaultTTL time.Duration) IdemStore {
	return newMemIdem(defaultTTL, time.Now)
}

func newMemIdem(defaultTTL time.Duration, now func() time.Time) *memIdem {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &memIdem{m: make(map[string]time.Time), ttl: defaultTTL, now: now}
}

func (mi *memIdem) SeenOnce(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = mi.ttl
	}
	now := mi.now()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if now.Sub(mi.sweep) > time.Minute {
		for k, exp := range mi.m {
			if !exp.After(now) {
				delete(mi.m, k)
			}
		}
		mi.sweep = now
	}
	if exp, ok := mi.m[key]; ok && exp.After(now) {
		return true, nil
	}
	mi.m[key] = now.Add(ttl)
	return false, nil
}

// KeyFunc names a message for deduplication. An empty key lets it through.
type KeyFunc func(msg Message) string

// HeaderMsgID keys a message by its id header.
func HeaderMsgID(msg Message) string {
	for _, k := range []string{"Nats-Msg-Id", "nats-msg-id", "X-Msg-Id", "x-msg-id"} {
		if v, ok := msg.Header[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// Idempotent drops redeliveries of messages key recognises. Messages without
// a key are always delivered: equal payloads can be legitimate repeats.
func Idempotent(store IdemStore, ttl time.Duration, key KeyFunc) Middleware {
	if key == nil {
		key = HeaderMsgID
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			id := key(msg)
			if id == "" {
				return next(ctx, msg)
			}
			if seen, _ := store.SeenOnce(msg.Subject+"|"+id, ttl); seen {
				return nil
			}
			return next(ctx, msg)
		}
	}
}
