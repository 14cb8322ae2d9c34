// Package db is the entity store: durable records for every marketplace
// entity, with validation, uniqueness and optimistic concurrency enforced at
// the storage boundary.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	storemodels "github.com/gartstein/harvest/internal/marketplace/db/models"
	e "github.com/gartstein/harvest/internal/marketplace/errors"
	"github.com/gartstein/harvest/internal/marketplace/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultTimeout bounds a single store call when Config.Timeout is unset.
const DefaultTimeout = 5 * time.Second

type Repository struct {
	db      *gorm.DB
	timeout time.Duration
}

type Config struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
	Timeout    time.Duration
}

// NewRepository connects to the configured database, retrying with
// exponential backoff, and migrates the schema.
func NewRepository(ctx context.Context, cfg *Config) (*Repository, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	case "", "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	var repo *Repository
	err := backoff.Retry(func() error {
		var err error
		repo, err = Open(dialector, cfg.Timeout)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8), ctx))
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// Open opens a repository on an arbitrary gorm dialector and migrates it.
func Open(dialector gorm.Dialector, timeout time.Duration) (*Repository, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	repo := &Repository{db: db, timeout: timeout}
	if dialector.Name() == "sqlite" {
		if err := repo.singleConnection(); err != nil {
			return nil, err
		}
	}
	if err := repo.Migrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Migrate creates or updates every table.
func (r *Repository) Migrate() error {
	err := r.db.AutoMigrate(
		&models.Account{},
		&models.Profile{},
		&models.Organization{},
		&models.OrganizationDetails{},
		&models.Membership{},
		&models.Job{},
		&models.Application{},
		&models.Message{},
		&storemodels.RecipeKey{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// singleConnection pins the pool to one connection. SQLite needs this to
// keep one in-memory database and to serialize writers.
func (r *Repository) singleConnection() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	return nil
}

// WithTransaction runs fn inside one database transaction. fn must use the
// repository it is given; any error rolls back everything fn wrote.
func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, timeout: r.timeout})
	})
	return translate(err)
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// conn returns a session bounded by the store timeout.
func (r *Repository) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	return r.db.WithContext(ctx), cancel
}

// translate maps driver errors onto the marketplace error kinds.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, e.ErrNotFound), errors.Is(err, e.ErrDuplicateKey),
		errors.Is(err, e.ErrTimeout), errors.Is(err, e.ErrConflict):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return e.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", e.ErrDuplicateKey, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", e.ErrTimeout, err)
	}
	return err
}

type normalizer interface {
	Normalize()
}

// prepare normalizes and validates a record before it is written.
func prepare(record any) error {
	if n, ok := record.(normalizer); ok {
		n.Normalize()
	}
	return models.Validate(record)
}

func (r *Repository) create(ctx context.Context, record any) error {
	db, cancel := r.conn(ctx)
	defer cancel()
	return translate(db.Create(record).Error)
}

func (r *Repository) first(ctx context.Context, dest any, query string, args ...any) error {
	db, cancel := r.conn(ctx)
	defer cancel()
	return translate(db.First(dest, append([]any{query}, args...)...).Error)
}

func (r *Repository) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	db, cancel := r.conn(ctx)
	defer cancel()
	var count int64
	err := db.Model(model).Where(query, args...).Limit(1).Count(&count).Error
	return count > 0, translate(err)
}

// saveVersioned writes every column of record if the stored version still
// equals prev. record must already carry the incremented version.
func (r *Repository) saveVersioned(ctx context.Context, record any, prev int64) error {
	db, cancel := r.conn(ctx)
	defer cancel()
	res := db.Model(record).Where("version = ?", prev).Select("*").Updates(record)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: version %d is stale", e.ErrConflict, prev)
	}
	return nil
}

// Mutation changes a loaded record in place and reports whether anything
// changed. Returning false skips the write.
type Mutation[T any] func(record *T) (bool, error)

// mutate loads the record with id, applies fn and writes it back under an
// optimistic version check, all in one transaction.
func mutate[T any](ctx context.Context, r *Repository, id uuid.UUID, expected *int64, version func(*T) *int64, fn Mutation[T]) (*T, error) {
	var out *T
	err := r.WithTransaction(ctx, func(tx *Repository) error {
		record := new(T)
		if err := tx.first(ctx, record, "id = ?", id); err != nil {
			return err
		}
		v := version(record)
		if expected != nil && *expected != *v {
			return fmt.Errorf("%w: expected version %d, stored %d", e.ErrConflict, *expected, *v)
		}
		changed, err := fn(record)
		if err != nil {
			return err
		}
		if changed {
			if err := prepare(record); err != nil {
				return err
			}
			prev := *v
			*v = prev + 1
			if err := tx.saveVersioned(ctx, record, prev); err != nil {
				return err
			}
		}
		out = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
