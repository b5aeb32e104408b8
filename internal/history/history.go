// Package history caches workout details in a local SQLite database so past
// sessions can be browsed without refetching them.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/claude/workoutsync/internal/models"
)

const fetchTimeout = 30 * time.Second

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Fetcher is the part of the workout service the cache reads through to.
type Fetcher interface {
	ListWorkouts(ctx context.Context, date string) ([]models.WorkoutAPI, error)
	GetWorkout(ctx context.Context, id string) (*models.WorkoutAPI, error)
}

// Cache is a read-through cache of workouts keyed by id. Finished workouts are
// served from disk; anything still open is refetched on every Get.
type Cache struct {
	db    *sql.DB
	fetch Fetcher
	log   *slog.Logger
	group singleflight.Group
}

// Open opens (or creates) dir/history.db and applies pending migrations.
func Open(dir string, fetch Fetcher, log *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir %s: %w", dir, err)
	}
	dbPath := filepath.Join(dir, "history.db")

	if err := runMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	// Single writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if log == nil {
		log = slog.Default()
	}
	return &Cache{db: db, fetch: fetch, log: log}, nil
}

// runMigrations uses its own connection because closing the migrator closes
// the database handle it was given.
func runMigrations(dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening history db: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("loading migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the workout with id, reading through to the service unless a
// finished copy is cached. Concurrent misses for one id share a single fetch.
func (c *Cache) Get(ctx context.Context, id string) (*models.WorkoutAPI, error) {
	w, finished, err := c.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if w != nil && finished {
		return w, nil
	}

	v, err, shared := c.group.Do(id, func() (any, error) {
		// Shared by every caller waiting on id, so it must not end with the
		// first caller's context.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		fresh, err := c.fetch.GetWorkout(fctx, id)
		if err != nil {
			return nil, err
		}
		if err := c.Record(fctx, fresh); err != nil {
			c.log.Warn("caching workout failed", "id", id, "error", err)
		}
		return fresh, nil
	})
	if err != nil {
		if w != nil {
			c.log.Warn("refresh failed, serving cached workout", "id", id, "error", err)
			return w, nil
		}
		return nil, fmt.Errorf("fetching workout %s: %w", id, err)
	}
	c.log.Debug("workout fetched", "id", id, "shared", shared)
	return v.(*models.WorkoutAPI), nil
}

// List returns the workouts scheduled on date and caches each of them. When
// the service is unreachable, previously cached workouts for the date are
// returned instead.
func (c *Cache) List(ctx context.Context, date string) ([]models.WorkoutAPI, error) {
	workouts, err := c.fetch.ListWorkouts(ctx, date)
	if err != nil {
		cached, cerr := c.Cached(ctx, date)
		if cerr != nil || len(cached) == 0 {
			return nil, fmt.Errorf("listing workouts for %s: %w", date, err)
		}
		c.log.Warn("listing failed, serving cached workouts", "date", date, "count", len(cached), "error", err)
		return cached, nil
	}

	for i := range workouts {
		if err := c.Record(ctx, &workouts[i]); err != nil {
			c.log.Warn("caching workout failed", "id", workouts[i].ID, "error", err)
		}
	}
	return workouts, nil
}

// Cached returns the cached workouts for date without contacting the service.
func (c *Cache) Cached(ctx context.Context, date string) ([]models.WorkoutAPI, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT payload FROM workouts WHERE date = ? ORDER BY id`, date)
	if err != nil {
		return nil, fmt.Errorf("querying cached workouts: %w", err)
	}
	defer rows.Close()

	var out []models.WorkoutAPI
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning cached workout: %w", err)
		}
		var w models.WorkoutAPI
		if err := json.Unmarshal([]byte(payload), &w); err != nil {
			return nil, fmt.Errorf("decoding cached workout: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Record upserts w. The engine calls it when a workout is finished.
func (c *Cache) Record(ctx context.Context, w *models.WorkoutAPI) error {
	if w == nil || w.ID == "" {
		return errors.New("recording workout: missing id")
	}
	payload, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encoding workout: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO workouts (id, date, finished, payload, fetched_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
		   date = excluded.date,
		   finished = excluded.finished,
		   payload = excluded.payload,
		   fetched_at = excluded.fetched_at`,
		w.ID, w.Date, w.EndTime != nil, string(payload),
	)
	if err != nil {
		return fmt.Errorf("recording workout %s: %w", w.ID, err)
	}
	return nil
}

func (c *Cache) lookup(ctx context.Context, id string) (*models.WorkoutAPI, bool, error) {
	var (
		payload  string
		finished bool
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT payload, finished FROM workouts WHERE id = ?`, id,
	).Scan(&payload, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying cached workout %s: %w", id, err)
	}
	var w models.WorkoutAPI
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return nil, false, fmt.Errorf("decoding cached workout %s: %w", id, err)
	}
	return &w, finished, nil
}
