// Package addrbook implements the address-book collaborator on SQLite: card
// storage, email quick-search, and change-event publication after every
// successful mutation.
package addrbook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"rolo/pkg/rolo"
)

// Publisher receives one change event after a successful card mutation.
// notify.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event rolo.ChangeEvent) error
}

// Store is a SQLite-backed address book.
type Store struct {
	db          *sqlx.DB
	logger      *slog.Logger
	publisher   Publisher
	directoryID string
}

// Option mutates store configuration at construction time.
type Option func(*Store)

// WithLogger injects a structured logger. The default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(store *Store) {
		if logger != nil {
			store.logger = logger
		}
	}
}

// WithPublisher wires a change-event publisher. Without one, mutations do not
// emit notifications.
func WithPublisher(publisher Publisher) Option {
	return func(store *Store) {
		store.publisher = publisher
	}
}

// New opens (or creates) the address-book database at dbPath, enables WAL
// mode, and runs any pending schema migrations. directoryID identifies this
// address book in change events.
func New(dbPath, directoryID string, opts ...Option) (*Store, error) {
	if directoryID == "" {
		return nil, fmt.Errorf("new address book: empty directory id")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open address book db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	store := &Store{
		db:          db,
		logger:      slog.Default(),
		directoryID: directoryID,
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DirectoryID returns the identifier this store stamps on change events.
func (s *Store) DirectoryID() string {
	return s.directoryID
}

// runMigrations checks the current schema version and applies any outstanding
// migrations in order.
func (s *Store) runMigrations() error {
	currentVersion := 0
	if err := s.db.Get(&currentVersion,
		"SELECT COALESCE(MAX(version), 0) FROM schema_version",
	); err != nil {
		// The very first run has no schema_version table yet.
		currentVersion = 0
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}

	return nil
}

// publishChange emits one change event for a committed mutation. Publish
// failures are logged, not returned: the mutation already succeeded and the
// caches recover on their next miss.
func (s *Store) publishChange(ctx context.Context, event rolo.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("change event publish failed",
			slog.String("kind", string(event.Kind)),
			slog.String("contact_id", event.ContactID),
			slog.Any("error", err),
		)
	}
}
