package storage

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"RPChat/logger"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Keys. The room id is a hash tag so one room's node sets share a cluster slot.
//
//	rp:presence:nodes               set of gateway node ids that ever published
//	rp:presence:{room:<id>}:<node>  characters present in room <id> on <node>
const nodesKey = "rp:presence:nodes"

func roomKey(roomID int64, node string) string {
	return "rp:presence:{room:" + strconv.FormatInt(roomID, 10) + "}:" + node
}

type presenceJob struct {
	roomID  int64
	members []int64
}

// PresenceMirror copies this node's room membership into Redis so other
// processes can see who is where. Writes happen on one worker goroutine in the
// order Publish was called; Publish never blocks the chat path.
type PresenceMirror struct {
	rdb     redis.Cmdable
	node    string
	ttl     time.Duration
	timeout time.Duration

	jobs    chan presenceJob
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64

	write func(ctx context.Context, j presenceJob) error
}

func NewPresenceMirror(rdb redis.Cmdable, node string, ttl time.Duration, queue int) *PresenceMirror {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if queue <= 0 {
		queue = 1024
	}
	m := &PresenceMirror{
		rdb:     rdb,
		node:    node,
		ttl:     ttl,
		timeout: 2 * time.Second,
		jobs:    make(chan presenceJob, queue),
		done:    make(chan struct{}),
	}
	m.write = m.writeRedis
	return m
}

// Start launches the worker.
func (m *PresenceMirror) Start() *PresenceMirror {
	go m.run()
	return m
}

func (m *PresenceMirror) Publish(roomID int64, members []int64) {
	cp := append([]int64(nil), members...)
	select {
	case m.jobs <- presenceJob{roomID: roomID, members: cp}:
	default:
		m.dropped.Add(1)
		logger.Warn("[presence] mirror queue full, dropping update", zap.Int64("room", roomID))
	}
}

// Close stops accepting updates and waits until queued ones are written.
func (m *PresenceMirror) Close() {
	m.once.Do(func() { close(m.jobs) })
	<-m.done
}

func (m *PresenceMirror) Dropped() int64 { return m.dropped.Load() }

// Client is the Redis handle the mirror writes through.
func (m *PresenceMirror) Client() redis.Cmdable { return m.rdb }

func (m *PresenceMirror) run() {
	defer close(m.done)
	for j := range m.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		if err := m.write(ctx, j); err != nil {
			logger.Warn("[presence] mirror write failed", zap.Int64("room", j.roomID), zap.Error(err))
		}
		cancel()
	}
}

func (m *PresenceMirror) writeRedis(ctx context.Context, j presenceJob) error {
	key := roomKey(j.roomID, m.node)
	pipe := m.rdb.TxPipeline()
	pipe.SAdd(ctx, nodesKey, m.node)
	pipe.Del(ctx, key)
	if len(j.members) > 0 {
		vals := make([]any, len(j.members))
		for i, id := range j.members {
			vals[i] = id
		}
		pipe.SAdd(ctx, key, vals...)
		pipe.Expire(ctx, key, m.ttl)
	}
	_, err := pipe.Exec(ctx)
	return errors.Wrapf(err, "mirror room %d", j.roomID)
}

// LookupRoom returns the characters present in roomID across every node.
func LookupRoom(ctx context.Context, rdb redis.Cmdable, roomID int64) ([]int64, error) {
	nodes, err := rdb.SMembers(ctx, nodesKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list presence nodes")
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = roomKey(roomID, n)
	}
	raw, err := rdb.SUnion(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(err, "union room %d", roomID)
	}
	return parseIDs(raw), nil
}

func parseIDs(raw []string) []int64 {
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
