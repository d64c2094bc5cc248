// Package connection implements the connection provider: it resolves a
// (connection id, database) pair to a live database connection.
package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sqlseq/sqlseq/internal/database"
	"github.com/sqlseq/sqlseq/internal/driver"
	"github.com/sqlseq/sqlseq/internal/sqliteutil"
	"github.com/sqlseq/sqlseq/internal/strutil"
)

// PoolSettings bounds the pools kept for networked engines.
type PoolSettings struct {
	Size              int
	ConnectionTimeout time.Duration
	IdleTimeout       time.Duration
}

// DefaultPoolSettings mirrors the configuration defaults.
var DefaultPoolSettings = PoolSettings{
	Size:              1,
	ConnectionTimeout: 10 * time.Second,
	IdleTimeout:       5 * time.Minute,
}

type poolKey struct {
	connection string
	database   string
}

// Manager hands out connections. Networked engines share one pool per
// (connection, database); SQLite files are opened per acquisition.
type Manager struct {
	settings    PoolSettings
	logger      *slog.Logger
	connections map[string]database.ConnectionConfig
	drivers     map[string]driver.Driver

	mu     sync.Mutex
	pools  map[poolKey]*sql.DB
	closed bool
}

var _ database.Provider = (*Manager)(nil)

// NewManager validates the connection configurations and returns a manager.
// Connections without a database type get one detected from their URL.
func NewManager(configs []database.ConnectionConfig, settings PoolSettings, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Size < 1 {
		return nil, fmt.Errorf("pool size must be >= 1, got %d", settings.Size)
	}

	m := &Manager{
		settings:    settings,
		logger:      logger,
		connections: make(map[string]database.ConnectionConfig, len(configs)),
		drivers:     make(map[string]driver.Driver, len(configs)),
		pools:       make(map[poolKey]*sql.DB),
	}

	for _, cfg := range configs {
		if cfg.ID == "" {
			return nil, errors.New("connection id is empty")
		}
		if _, dup := m.connections[cfg.ID]; dup {
			return nil, fmt.Errorf("connection %q is defined more than once", cfg.ID)
		}
		if cfg.DatabaseType == "" {
			cfg.DatabaseType = driver.DetectDriver(cfg.URL)
		}
		d, err := driver.NewDriver(cfg.DatabaseType)
		if err != nil {
			return nil, fmt.Errorf("connection %q: %w", cfg.ID, err)
		}
		m.connections[cfg.ID] = cfg
		m.drivers[cfg.ID] = d
	}
	return m, nil
}

// Connections returns the configured connections ordered by id.
func (m *Manager) Connections() []database.ConnectionConfig {
	out := make([]database.ConnectionConfig, 0, len(m.connections))
	for _, cfg := range m.connections {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DatabaseType returns the engine behind a connection id.
func (m *Manager) DatabaseType(connection string) (database.DatabaseType, bool) {
	cfg, ok := m.connections[connection]
	return cfg.DatabaseType, ok
}

// Lookup returns the configuration for a (connection, database) pair, or a
// *database.LookupError.
func (m *Manager) Lookup(connection, databaseName string) (database.ConnectionConfig, error) {
	cfg, ok := m.connections[connection]
	if !ok {
		ids := make([]string, 0, len(m.connections))
		for id := range m.connections {
			ids = append(ids, id)
		}
		return database.ConnectionConfig{}, &database.LookupError{
			Connection: connection,
			Suggestion: strutil.Suggest(connection, ids),
		}
	}
	if !cfg.HasDatabase(databaseName) {
		return database.ConnectionConfig{}, &database.LookupError{
			Connection: connection,
			Database:   databaseName,
			Suggestion: strutil.Suggest(databaseName, cfg.Databases),
		}
	}
	return cfg, nil
}

// DescribeError returns engine detail for an error raised on connection.
func (m *Manager) DescribeError(connection string, err error) string {
	if d, ok := m.drivers[connection]; ok {
		return d.DescribeError(err)
	}
	return ""
}

// Resolve returns a connection to databaseName on the named connection.
func (m *Manager) Resolve(ctx context.Context, connection, databaseName string) (database.Conn, error) {
	cfg, err := m.Lookup(connection, databaseName)
	if err != nil {
		return nil, err
	}
	d := m.drivers[connection]

	if !d.Pooled() {
		db, err := driver.Open(ctx, d, cfg, databaseName, m.settings.ConnectionTimeout)
		if err != nil {
			return nil, fmt.Errorf("connection %q database %q: %w", connection, databaseName, err)
		}
		db.SetMaxOpenConns(1)
		m.logger.Debug("opened direct connection", "connection", connection, "database", databaseName, "driver", d.Name())
		return db, nil
	}

	pool, err := m.pool(ctx, d, cfg, databaseName)
	if err != nil {
		return nil, err
	}

	acquireCtx := ctx
	if m.settings.ConnectionTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, m.settings.ConnectionTimeout)
		defer cancel()
	}
	conn, err := pool.Conn(acquireCtx)
	if err != nil {
		return nil, fmt.Errorf("connection %q database %q: failed to acquire connection: %w", connection, databaseName, err)
	}
	return conn, nil
}

func (m *Manager) pool(ctx context.Context, d driver.Driver, cfg database.ConnectionConfig, databaseName string) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("connection manager is closed")
	}

	key := poolKey{connection: cfg.ID, database: databaseName}
	if pool, ok := m.pools[key]; ok {
		return pool, nil
	}

	pool, err := driver.Open(ctx, d, cfg, databaseName, m.settings.ConnectionTimeout)
	if err != nil {
		return nil, fmt.Errorf("connection %q database %q: %w", cfg.ID, databaseName, err)
	}
	pool.SetMaxOpenConns(m.settings.Size)
	pool.SetMaxIdleConns(m.settings.Size)
	pool.SetConnMaxIdleTime(m.settings.IdleTimeout)

	m.pools[key] = pool
	m.logger.Debug("opened connection pool",
		"connection", cfg.ID,
		"database", databaseName,
		"driver", d.Name(),
		"size", m.settings.Size,
	)
	return pool, nil
}

// ResolveEmbedded opens the SQLite file at path, creating it and its parent
// directory if needed.
func (m *Manager) ResolveEmbedded(ctx context.Context, path string) (database.Conn, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteutil.DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open embedded database %s: %w", path, err)
	}
	return db, nil
}

// Close closes every pool. Connections handed out earlier become unusable.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	var errs []error
	for key, pool := range m.pools {
		if err := pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s/%s: %w", key.connection, key.database, err))
		}
		delete(m.pools, key)
	}
	return errors.Join(errs...)
}
