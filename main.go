package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"RPChat/global"
	"RPChat/global/config"
	"RPChat/logger"
	mid "RPChat/middleware"
	midsec "RPChat/middleware/security"
	"RPChat/module/roleplay"
	"RPChat/service/chat"
	"RPChat/service/storage"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"go.uber.org/zap"
)

const shutdownTimeout = 20 * time.Second

func main() {
	confPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		logger.Error("[main] load config", zap.Error(err))
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	global.ConfigIds(*cfg)

	ctx := context.Background()
	var closers []*global.Closer

	gw, c, err := global.ConfigStore(ctx, *cfg)
	if err != nil {
		logger.Error("[main] open store", zap.Error(err))
		os.Exit(1)
	}
	closers = appendCloser(closers, c)

	opts := []chat.Option{}
	var cluster roleplay.ClusterPresence
	mirror, c, err := global.ConfigRedis(*cfg)
	if err != nil {
		logger.Warn("[main] redis unavailable, presence mirror off", zap.Error(err))
	} else if mirror != nil {
		opts = append(opts, chat.WithMirror(mirror))
		cluster = func(ctx context.Context, roomID int64) ([]int64, error) {
			return storage.LookupRoom(ctx, mirror.Client(), roomID)
		}
		closers = appendCloser(closers, c)
	}

	hub := chat.NewHub(gw, chat.HubConf{
		SendQueueSize:    cfg.WS.SendQueueSize,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		PersistTimeout:   cfg.Chat.PersistTimeout,
	}, opts...)

	c, err = global.ConfigNats(*cfg, hub)
	if err != nil {
		logger.Warn("[main] nats unavailable, narrator bridge off", zap.Error(err))
	}
	closers = appendCloser(closers, c)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	mids := mid.NewManager()
	mids.Add(mid.AccessLog())
	r.Use(gin.Recovery(), mids.Use())

	ws := chat.NewServer(hub, cfg.WS)
	r.GET("/ws", ws.HandleWS)

	var auth gin.HandlerFunc
	if cfg.Admin.JWTSecret != "" {
		auth = midsec.Middleware(midsec.DefaultOptions([]byte(cfg.Admin.JWTSecret)))
	} else {
		logger.Warn("[main] no admin jwt secret, admin API disabled")
	}
	roleplay.NewHandler(hub, cluster).Register(r, auth)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("[http] listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("[http] server stopped", zap.Error(err))
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(ctx, shutdownTimeout, map[string]gfshutdown.Operation{
		"gateway": func(ctx context.Context) error {
			logger.Info("[main] shutting down")
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("[http] shutdown", zap.Error(err))
			}
			if err := hub.Wait(ctx); err != nil {
				logger.Warn("[main] pending writes not finished", zap.Error(err))
			}
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i].Close(ctx); err != nil {
					logger.Warn("[main] close", zap.String("resource", closers[i].Name), zap.Error(err))
				}
			}
			return nil
		},
	})
	code := <-wait
	logger.Sync()
	glog.Flush()
	os.Exit(code)
}

func appendCloser(list []*global.Closer, c *global.Closer) []*global.Closer {
	if c == nil {
		return list
	}
	return append(list, c)
}
