// Command pbgateway keeps an admin session to PocketBase alive and serves the
// gateway's operational endpoints.
//
// Configuration comes from the YAML file named by PB_GATEWAY_CONFIG, if any,
// then from PB_GATEWAY_* variables and POCKETBASE_URL, POCKETBASE_ADMIN_EMAIL,
// POCKETBASE_ADMIN_PASSWORD.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	pbgateway "github.com/yuanzhaoK/admin-platform-sub000"
	"github.com/yuanzhaoK/admin-platform-sub000/internal/opsserver"
	"github.com/yuanzhaoK/admin-platform-sub000/pkg/config"
	"github.com/yuanzhaoK/admin-platform-sub000/pkg/logger"
	"github.com/yuanzhaoK/admin-platform-sub000/pkg/notify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pbgateway:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logData, err := logger.New().
		FromBuffer(os.Stdout).
		FromPath(cfg.Log.Path).
		WithLevel(cfg.Log.Level).
		WithField("service", "pbgateway").
		Make()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logData.Close()
	log := logData.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub()
	defer hub.Close()

	publishers := notify.Multi{hub}
	if cfg.Redis.Addr != "" {
		rdb, err := notify.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer closeRedis(rdb, log)
		publishers = append(publishers, notify.NewRedisPublisher(rdb, cfg.Redis.Channel))
		log.Info().Str("addr", cfg.Redis.Addr).Str("channel", cfg.Redis.Channel).Msg("publishing status changes to redis")
	}

	client, err := pbgateway.New(cfg.ClientConfig(),
		pbgateway.WithLogger(log),
		pbgateway.WithStatusPublisher(publishers),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	log.Info().Str("url", cfg.PocketBase.URL).Str("identity", cfg.PocketBase.AdminEmail).Msg("pbgateway starting")

	// A failed first login is not fatal; EnsureAuth retries on the next call.
	if err := client.EnsureAuth(ctx); err != nil {
		log.Warn().Err(err).Msg("initial authentication failed")
	}

	ops := opsserver.New(client, hub, log)
	if err := ops.Run(ctx, cfg.Ops.Addr); err != nil {
		return fmt.Errorf("ops server: %w", err)
	}

	log.Info().Msg("pbgateway stopped")
	return nil
}

func closeRedis(rdb *redis.Client, log zerolog.Logger) {
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("close redis")
	}
}
