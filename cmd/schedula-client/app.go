package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"schedula/client/internal/apiclient"
	"schedula/client/internal/config"
	"schedula/client/internal/service/account"
	"schedula/client/internal/service/appointments"
	"schedula/client/internal/service/businesses"
	favoritesapi "schedula/client/internal/service/favorites"
	"schedula/client/internal/state/auth"
	"schedula/client/internal/state/favorites"
	"schedula/client/internal/store"
	"schedula/client/internal/store/memory"
	"schedula/client/internal/store/postgres"
	"schedula/client/internal/store/redis"
	"schedula/client/internal/tokenstore"
)

type app struct {
	log          *slog.Logger
	out          io.Writer
	tokens       *tokenstore.Store
	session      *auth.Container
	favorites    *favorites.Container
	favoritesAPI *favoritesapi.Service
	accounts     *account.Service
	businesses   *businesses.Service
	appointments *appointments.Service
}

// newApp wires storage, the API client, the resource clients and both state
// containers, then restores any persisted session.
func newApp(ctx context.Context, cfg config.Config, log *slog.Logger, out io.Writer) (*app, func(), error) {
	platform, err := tokenstore.ParsePlatform(cfg.Platform)
	if err != nil {
		return nil, nil, err
	}

	primary, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	var fallback store.KV
	if platform == tokenstore.PlatformWeb {
		fallback = memory.New()
	}
	tokens := tokenstore.New(primary, fallback, platform, log)

	api, err := apiclient.New(apiclient.Options{
		BaseURL:    cfg.APIBaseURL,
		HTTPClient: &http.Client{Timeout: cfg.APITimeout},
		Tokens:     tokens,
		Logger:     log,
		UserAgent:  cfg.UserAgent,
		LoginPaths: []string{account.LoginPath, account.RegisterPath},
	})
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	accounts := account.NewService(api)
	session := auth.New(accounts, tokens, log)
	api.SetSessionExpiredHandler(session.SessionExpired)

	favAPI := favoritesapi.NewService(api)
	favs := favorites.New(session, favAPI, log)
	unbind := favs.BindAuth(ctx, session)

	a := &app{
		log:          log,
		out:          out,
		tokens:       tokens,
		session:      session,
		favorites:    favs,
		favoritesAPI: favAPI,
		accounts:     accounts,
		businesses:   businesses.NewService(api),
		appointments: appointments.NewService(api),
	}

	if err := session.Load(ctx); err != nil {
		unbind()
		closeStore()
		return nil, nil, err
	}

	cleanup := func() {
		unbind()
		closeStore()
	}
	return a, cleanup, nil
}

func openStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (store.KV, func(), error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
		db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
			log.Error("database connection failed", args...)
			return nil, nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = postgres.Close(db)
			return nil, nil, fmt.Errorf("ensure device_kv schema: %w", err)
		}
		return postgres.NewKVStore(db, cfg.KeyPrefix), func() {
			if err := postgres.Close(db); err != nil {
				log.Warn("database close failed", slog.Any("err", err))
			}
		}, nil

	case config.StorageRedis:
		rs, err := redis.Dial(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix,
		})
		if err != nil {
			log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
			return nil, nil, err
		}
		return rs, func() {
			if err := rs.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}, nil

	default:
		log.Warn("using in-memory storage; the session will not survive this process")
		return memory.New(), func() {}, nil
	}
}
