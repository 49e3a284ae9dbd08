package application

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"github.com/sirupsen/logrus"
)

// MigrationStatus is one migration file of one module.
type MigrationStatus struct {
	Module  string
	Version int64
	Path    string
	Applied bool
}

// MigrationManager runs each module's embedded goose migrations against its
// own version table, goose_db_version_<module>.
type MigrationManager interface {
	Register(module string, fsys fs.FS)
	Modules() []string
	Up(ctx context.Context) error
	Down(ctx context.Context, module string) error
	Status(ctx context.Context) ([]MigrationStatus, error)
}

func NewMigrationManager(pool *pgxpool.Pool, logger *logrus.Logger) MigrationManager {
	return &migrationManager{
		pool:    pool,
		logger:  logger,
		sources: make(map[string]fs.FS),
	}
}

type migrationManager struct {
	pool    *pgxpool.Pool
	logger  *logrus.Logger
	mu      sync.Mutex
	order   []string
	sources map[string]fs.FS
}

func VersionTable(module string) string {
	return "goose_db_version_" + module
}

func (m *migrationManager) Register(module string, fsys fs.FS) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sources[module]; exists {
		panic(fmt.Sprintf("migrations for module %q already registered", module))
	}
	m.order = append(m.order, module)
	m.sources[module] = fsys
}

// Modules returns module names in registration order, which is also the
// order migrations are applied in.
func (m *migrationManager) Modules() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

func (m *migrationManager) provider(db *sql.DB, module string) (*goose.Provider, error) {
	m.mu.Lock()
	fsys, ok := m.sources[module]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no migrations registered for module %q", module)
	}
	store, err := database.NewStore(database.DialectPostgres, VersionTable(module))
	if err != nil {
		return nil, err
	}
	return goose.NewProvider("", db, fsys, goose.WithStore(store))
}

func (m *migrationManager) withDB(fn func(db *sql.DB) error) error {
	if m.pool == nil {
		return fmt.Errorf("migrations: database pool is not configured")
	}
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()
	return fn(db)
}

func (m *migrationManager) Up(ctx context.Context) error {
	return m.withDB(func(db *sql.DB) error {
		for _, module := range m.Modules() {
			p, err := m.provider(db, module)
			if err != nil {
				return err
			}
			results, err := p.Up(ctx)
			if err != nil {
				return fmt.Errorf("migrate %s: %w", module, err)
			}
			for _, r := range results {
				m.logger.WithFields(logrus.Fields{
					"module":   module,
					"version":  r.Source.Version,
					"duration": r.Duration,
				}).Info("migration applied")
			}
		}
		return nil
	})
}

func (m *migrationManager) Down(ctx context.Context, module string) error {
	return m.withDB(func(db *sql.DB) error {
		p, err := m.provider(db, module)
		if err != nil {
			return err
		}
		r, err := p.Down(ctx)
		if err != nil {
			return fmt.Errorf("rollback %s: %w", module, err)
		}
		m.logger.WithFields(logrus.Fields{"module": module, "version": r.Source.Version}).Info("migration rolled back")
		return nil
	})
}

func (m *migrationManager) Status(ctx context.Context) ([]MigrationStatus, error) {
	var out []MigrationStatus
	err := m.withDB(func(db *sql.DB) error {
		for _, module := range m.Modules() {
			p, err := m.provider(db, module)
			if err != nil {
				return err
			}
			statuses, err := p.Status(ctx)
			if err != nil {
				return fmt.Errorf("status %s: %w", module, err)
			}
			for _, s := range statuses {
				out = append(out, MigrationStatus{
					Module:  module,
					Version: s.Source.Version,
					Path:    s.Source.Path,
					Applied: s.State == goose.StateApplied,
				})
			}
		}
		return nil
	})
	return out, err
}
