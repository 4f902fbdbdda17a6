// Package dbtest opens migrated SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/rss-cast/app/database"
)

// Clock is a settable, monotonically advancing time source for tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

// Now returns the current time and advances the clock by one second,
// so consecutive inserts get distinct, ordered timestamps.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// New returns a migrated database in t.TempDir() driven by clock.
func New(t testing.TB, clock *Clock) *database.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

	db, err := database.NewConnection(database.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if clock != nil {
		db.SetClock(clock.Now)
	}

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}
