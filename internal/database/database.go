package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by repositories when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is a handle on the local library database.
//
// Handles are shared: every Open of the same path returns the same *Store
// until the last holder calls Close.
type Store struct {
	DB *gorm.DB

	path string
	refs int // guarded by registry.mu

	mu      sync.Mutex
	version int
}

var registry = struct {
	mu     sync.Mutex
	stores map[string]*Store
	group  singleflight.Group
}{stores: make(map[string]*Store)}

// Open opens (or joins) the database at path and upgrades it to LatestVersion.
// Concurrent callers opening the same path share one underlying connection.
func Open(path string) (*Store, error) {
	return OpenAt(path, LatestVersion)
}

// OpenAt is like Open but upgrades the schema only up to version.
// A database already at a newer version is left untouched.
func OpenAt(path string, version int) (*Store, error) {
	if version < 1 || version > LatestVersion {
		return nil, fmt.Errorf("unknown schema version %d", version)
	}

	key, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}

	for {
		v, err, _ := registry.group.Do(key, func() (any, error) {
			registry.mu.Lock()
			existing, ok := registry.stores[key]
			registry.mu.Unlock()
			if ok {
				return existing, nil
			}

			store, err := openStore(key, version)
			if err != nil {
				return nil, err
			}

			registry.mu.Lock()
			registry.stores[key] = store
			registry.mu.Unlock()
			return store, nil
		})
		if err != nil {
			return nil, err
		}
		store := v.(*Store)

		if err := store.migrate(version); err != nil {
			return nil, err
		}

		registry.mu.Lock()
		// The handle may have been closed by its last holder while we were migrating.
		if registry.stores[key] != store {
			registry.mu.Unlock()
			continue
		}
		store.refs++
		registry.mu.Unlock()
		return store, nil
	}
}

func openStore(path string, version int) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_journal=WAL&_timeout=5000&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// One connection: SQLite allows a single writer and the library
	// relies on operations being serialized.
	sqlDB.SetMaxOpenConns(1)

	store := &Store{DB: db, path: path}
	if err := store.migrate(version); err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Printf("Database initialized at %s (schema v%d)", path, store.Version())
	return store, nil
}

// Close releases this holder's reference. The connection is closed when the
// last reference is released. Closing an already released handle is a no-op.
func (s *Store) Close() error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if s.refs <= 0 {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	if registry.stores[s.path] == s {
		delete(registry.stores, s.path)
	}

	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Version returns the schema version the database has been upgraded to.
func (s *Store) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Path returns the absolute path of the database file.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
