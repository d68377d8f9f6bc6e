package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vango-dev/gomarketplace/internal/config"
	"github.com/vango-dev/gomarketplace/internal/errors"
	"github.com/vango-dev/gomarketplace/pkg/cart"
	"github.com/vango-dev/gomarketplace/pkg/storage"
)

// loadConfig reads the config named by --config, or ./marketplace.json when
// present, and applies flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFile(flags.configPath)
	} else {
		cfg, err = config.LoadOptional(config.ConfigFileName)
	}
	if err != nil {
		return nil, err
	}

	if flags.logLevel != "" {
		cfg.Log.Level = strings.ToLower(flags.logLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from config and installs it as the
// slog default.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// openStorage connects the configured backend. The returned cleanup closes
// the backend and any client it was built on.
func openStorage(ctx context.Context, cfg *config.Config) (storage.KV, func(), error) {
	s := cfg.Storage

	switch s.Backend {
	case config.BackendMemory:
		kv := storage.NewMemoryStore()
		return kv, func() { _ = kv.Close() }, nil

	case config.BackendFile:
		kv, err := storage.NewFileStore(cfg.StorageDir())
		if err != nil {
			return nil, nil, errors.New("E011").Wrap(err)
		}
		return kv, func() { _ = kv.Close() }, nil

	case config.BackendRedis:
		opt, err := redis.ParseURL(s.RedisURL)
		if err != nil {
			return nil, nil, errors.New("E120").
				WithDetail("storage.redisUrl: " + err.Error())
		}
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, errors.New("E011").Wrap(err)
		}
		kv := storage.NewRedisStore(client,
			storage.WithRedisPrefix(s.RedisPrefix),
			storage.WithRedisTTL(cfg.RedisTTL()),
		)
		return kv, func() {
			_ = kv.Close()
			_ = client.Close()
		}, nil

	case config.BackendSQL:
		dialect, err := storage.ParseDialect(s.Dialect)
		if err != nil {
			return nil, nil, errors.New("E120").Wrap(err)
		}
		db, err := sql.Open(s.Driver, s.DSN)
		if err != nil {
			return nil, nil, errors.New("E120").Wrap(err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, errors.New("E011").Wrap(err)
		}
		kv := storage.NewSQLStore(db,
			storage.WithSQLDialect(dialect),
			storage.WithSQLTableName(s.Table),
		)
		if err := kv.CreateTable(ctx); err != nil {
			_ = db.Close()
			return nil, nil, errors.New("E012").Wrap(err)
		}
		return kv, func() {
			_ = kv.Close()
			_ = db.Close()
		}, nil

	case config.BackendS3:
		kv := storage.NewS3Store(newS3Client(s), s.Bucket, s.Prefix)
		return kv, func() { _ = kv.Close() }, nil
	}

	return nil, nil, errors.New("E121").WithDetail("storage.backend is " + s.Backend)
}

// newS3Client builds an S3 client from static environment credentials.
// A custom endpoint switches to path-style addressing for MinIO and
// LocalStack.
func newS3Client(s config.StorageConfig) *s3.Client {
	opts := s3.Options{
		Region: s.Region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
					SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
					SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
					Source:          "EnvironmentVariables",
				}, nil
			},
		)),
	}
	if s.Endpoint != "" {
		opts.BaseEndpoint = aws.String(s.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

// openStore wires config, storage, and a cart Store together and starts
// hydration. The returned cleanup flushes the store and closes storage.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...cart.Option) (*cart.Store, func(), error) {
	kv, closeKV, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts = append([]cart.Option{
		cart.WithKey(cfg.Storage.Key),
		cart.WithLogger(logger.With("component", "cart")),
		cart.WithWriteTimeout(cfg.WriteTimeout()),
	}, opts...)

	store, err := cart.New(kv, opts...)
	if err != nil {
		closeKV()
		return nil, nil, err
	}
	store.Start(ctx)

	return store, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout()*2)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("cart close timed out", "error", err)
		}
		closeKV()
	}, nil
}
