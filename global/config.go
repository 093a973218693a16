package global

import (
	"context"
	"strconv"

	"RPChat/global/config"
	"RPChat/logger"
	"RPChat/module/roleplay/store"
	"RPChat/service/chat"
	"RPChat/service/natsx"
	"RPChat/service/storage"
	redis "RPChat/service/storage/redis"
	"RPChat/tools/ids"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Closer releases one resource during shutdown.
type Closer struct {
	Name  string
	Close func(ctx context.Context) error
}

func ConfigIds(cfg config.AppConfig) {
	ids.SetNodeID(cfg.NodeID)
}

// ConfigStore opens PostgreSQL when a URL is configured and falls back to the
// seeded in-memory store otherwise.
func ConfigStore(ctx context.Context, cfg config.AppConfig) (chat.Gateway, *Closer, error) {
	if cfg.Database.URL == "" {
		logger.Warn("[store] no database url, using in-memory demo data")
		return store.NewMemory().SeedDemo(), nil, nil
	}
	repo, err := store.NewRepo(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	return repo, &Closer{Name: "postgres", Close: func(context.Context) error {
		repo.Close()
		return nil
	}}, nil
}

// ConfigRedis starts the presence mirror, or returns nil when Redis is not configured.
func ConfigRedis(cfg config.AppConfig) (*storage.PresenceMirror, *Closer, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil, nil
	}
	rdb, err := redis.NewClient(redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	node := strconv.FormatInt(cfg.NodeID, 10)
	mirror := storage.NewPresenceMirror(rdb, node, cfg.Redis.PresenceTTL, 0).Start()
	logger.Info("[redis] presence mirror on", zap.String("addr", cfg.Redis.Addr), zap.String("node", node))
	return mirror, &Closer{Name: "redis", Close: func(context.Context) error {
		mirror.Close()
		return rdb.Close()
	}}, nil
}

// ConfigNats subscribes the narrator bridge, or does nothing when NATS is not configured.
func ConfigNats(cfg config.AppConfig, sink natsx.Sink) (*Closer, error) {
	if cfg.Nats.URL == "" {
		return nil, nil
	}
	client, err := natsx.NewClient(natsx.Config{URL: cfg.Nats.URL, Name: cfg.Nats.Name})
	if err != nil {
		return nil, err
	}
	narrator := natsx.NewNarrator(sink, cfg.Chat.MaxMessageLength)
	err = client.Subscribe(cfg.Nats.NarratorSubject, narrator.Handle,
		natsx.Recover(),
		natsx.Logging(),
		natsx.Idempotent(natsx.NewMemIdem(0), 0, natsx.NarratorKey),
	)
	if err != nil {
		_ = client.Close()
		return nil, errors.WithMessage(err, "narrator bridge")
	}
	logger.Info("[nats] narrator bridge on", zap.String("subject", cfg.Nats.NarratorSubject))
	return &Closer{Name: "nats", Close: func(context.Context) error { return client.Close() }}, nil
}
