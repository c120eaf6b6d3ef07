package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JustinTDCT/SerialDesk/internal/config"
	"github.com/JustinTDCT/SerialDesk/internal/logger"
	"github.com/JustinTDCT/SerialDesk/internal/store"
	"github.com/JustinTDCT/SerialDesk/internal/store/memstore"
	"github.com/JustinTDCT/SerialDesk/internal/store/mongostore"
)

// ErrMissingURI is wrapped in a ConnectionError when no connection string is configured.
var ErrMissingURI = errors.New("MONGODB_URI is not set")

// ConnectionError reports that the database could not be reached.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "database connection failed: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// Handle is an acquired database. It must be returned with Provider.Release.
type Handle struct {
	store.Database
	client *mongo.Client
}

func (h *Handle) disconnect(ctx context.Context) error {
	if h == nil || h.client == nil {
		return nil
	}
	return h.client.Disconnect(ctx)
}

// Provider hands out database handles under one connection strategy.
type Provider interface {
	Acquire(ctx context.Context) (*Handle, error)
	Release(ctx context.Context, h *Handle) error
	Close(ctx context.Context) error
}

// NewProvider selects the strategy named by cfg.DBDriver and cfg.DBConnectionMode.
func NewProvider(cfg *config.Config, log *logger.Logger) (Provider, error) {
	if cfg.DBDriver == config.DriverMemory {
		log.Info("using in-memory document store", "db", cfg.DBName)
		return NewMemoryProvider(cfg.DBName), nil
	}
	if cfg.DBDriver != config.DriverMongo {
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
	}

	dial := func(ctx context.Context) (*Handle, error) {
		return connect(ctx, cfg.MongoURI, cfg.DBName)
	}
	switch cfg.DBConnectionMode {
	case config.ModeCached:
		return &cachedProvider{dial: dial, log: log}, nil
	case config.ModePerCall:
		return &perCallProvider{dial: dial}, nil
	}
	return nil, fmt.Errorf("unknown DB_CONNECTION_MODE %q", cfg.DBConnectionMode)
}

func connect(ctx context.Context, uri, name string) (*Handle, error) {
	if uri == "" {
		return nil, &ConnectionError{Err: ErrMissingURI}
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, &ConnectionError{Err: fmt.Errorf("ping: %w", err)}
	}
	return &Handle{Database: mongostore.New(client.Database(name)), client: client}, nil
}

// ──────────────────── Cached ────────────────────

type cachedProvider struct {
	dial func(context.Context) (*Handle, error)
	log  *logger.Logger

	mu     sync.Mutex
	handle *Handle
}

func (p *cachedProvider) Acquire(ctx context.Context) (*Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle != nil {
		return p.handle, nil
	}
	h, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Info("connected to MongoDB", "db", h.Name())
	p.handle = h
	return h, nil
}

func (p *cachedProvider) Release(context.Context, *Handle) error {
	return nil
}

func (p *cachedProvider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.handle
	p.handle = nil
	return h.disconnect(ctx)
}

// ──────────────────── Per call ────────────────────

type perCallProvider struct {
	dial func(context.Context) (*Handle, error)
}

func (p *perCallProvider) Acquire(ctx context.Context) (*Handle, error) {
	return p.dial(ctx)
}

func (p *perCallProvider) Release(ctx context.Context, h *Handle) error {
	return h.disconnect(context.WithoutCancel(ctx))
}

func (p *perCallProvider) Close(context.Context) error {
	return nil
}

// ──────────────────── Memory ────────────────────

// MemoryProvider serves a single in-process database.
type MemoryProvider struct {
	handle *Handle
}

func NewMemoryProvider(name string) *MemoryProvider {
	return &MemoryProvider{handle: &Handle{Database: memstore.New(name)}}
}

func (p *MemoryProvider) Acquire(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return p.handle, nil
}

func (p *MemoryProvider) Release(context.Context, *Handle) error {
	return nil
}

func (p *MemoryProvider) Close(context.Context) error {
	return nil
}
