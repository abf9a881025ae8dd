package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vango-dev/statesync/internal/config"
	"github.com/vango-dev/statesync/pkg/storage"
)

// openStore builds the configured backend. The returned cleanup releases
// any connection the store holds.
func openStore(ctx context.Context, cfg *config.Config) (storage.TextStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStore(), noop, nil

	case config.BackendFile:
		store, err := storage.NewFileStore(cfg.FileDir())
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case config.BackendSQL:
		dialectName := cfg.Store.SQL.Dialect
		if dialectName == "" {
			dialectName = cfg.Store.SQL.Driver
		}
		dialect, err := storage.ParseDialect(dialectName)
		if err != nil {
			return nil, nil, err
		}
		db, err := sql.Open(cfg.Store.SQL.Driver, cfg.Store.SQL.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s database: %w", cfg.Store.SQL.Driver, err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Store.SQL.Driver, err)
		}
		if dialect == storage.DialectSQLite {
			// SQLite allows a single writer.
			db.SetMaxOpenConns(1)
		}
		store := storage.NewSQLStore(db,
			storage.WithSQLDialect(dialect),
			storage.WithSQLTableName(cfg.Store.SQL.Table),
		)
		if err := store.CreateTable(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("create state table: %w", err)
		}
		return store, db.Close, nil

	case config.BackendS3:
		client, err := newS3Client(ctx, cfg.Store.S3)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewS3Store(client, cfg.Store.S3.Bucket, storage.WithS3Prefix(cfg.Store.S3.Prefix))
		return store, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// newS3Client resolves region and credentials through the SDK's default
// chain (environment, shared config and profiles, SSO, web identity,
// instance metadata). A region in the config overrides the chain.
func newS3Client(ctx context.Context, c config.S3StoreConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, s3ClientOptions(c)), nil
}

// s3ClientOptions applies the endpoint settings used for S3-compatible
// services such as MinIO.
func s3ClientOptions(c config.S3StoreConfig) func(*s3.Options) {
	return func(o *s3.Options) {
		o.UsePathStyle = c.PathStyle
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	}
}
