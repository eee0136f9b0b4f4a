package main

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openDB(cfg config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.db.maxOpenConnections)
	db.SetMaxIdleConns(cfg.db.maxIdleConnections)
	db.SetConnMaxIdleTime(cfg.db.maxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// openGorm layers gorm over the pool opened by openDB so both stores share
// one set of connections.
func openGorm(db *sql.DB, logger *slog.Logger) (*gorm.DB, error) {
	gLogger := gormlogger.New(
		slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	return gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{Logger: gLogger})
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            bigserial PRIMARY KEY,
	name          varchar(100) NOT NULL,
	email         varchar(255) NOT NULL,
	password_hash bytea NOT NULL,
	is_active     boolean NOT NULL DEFAULT true,
	created_at    timestamptz NOT NULL DEFAULT now(),
	updated_at    timestamptz
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (email);

CREATE TABLE IF NOT EXISTS tasks (
	id          uuid PRIMARY KEY,
	title       varchar(200) NOT NULL CHECK (title <> ''),
	description varchar(1000) NOT NULL DEFAULT '',
	status      text NOT NULL DEFAULT 'Pending' CHECK (status IN ('Pending', 'Done')),
	created_at  timestamptz NOT NULL DEFAULT now(),
	user_id     bigint NOT NULL REFERENCES users (id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS tasks_user_id_created_at_idx ON tasks (user_id, created_at);
`

func migrate(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, err := db.ExecContext(ctx, schema)
	return err
}

type loginAttempt struct {
	failures  int
	expiresAt time.Time
}

// loginThrottle counts failed sign-ins per email. Once maxFailures is reached
// the email stays locked until the window that started with the first failure
// runs out. A zero maxFailures disables it.
type loginThrottle struct {
	mu          sync.Mutex
	entries     map[string]loginAttempt
	maxFailures int
	window      time.Duration
	now         func() time.Time
}

func newLoginThrottle(maxFailures int, window time.Duration) *loginThrottle {
	c := &loginThrottle{
		entries:     make(map[string]loginAttempt),
		maxFailures: maxFailures,
		window:      window,
		now:         time.Now,
	}
	if maxFailures <= 0 {
		return c
	}
	go func(c *loginThrottle) {
		ticker := time.NewTicker(time.Minute)
		for {
			<-ticker.C
			func() {
				c.mu.Lock()
				defer c.mu.Unlock()
				for k, v := range c.entries {
					if c.now().After(v.expiresAt) {
						delete(c.entries, k)
					}
				}
			}()
		}
	}(c)
	return c
}

func (c *loginThrottle) Locked(email string) bool {
	if c.maxFailures <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[email]
	if !ok || c.now().After(e.expiresAt) {
		return false
	}
	return e.failures >= c.maxFailures
}

func (c *loginThrottle) Fail(email string) {
	if c.maxFailures <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[email]
	if !ok || c.now().After(e.expiresAt) {
		e = loginAttempt{expiresAt: c.now().Add(c.window)}
	}
	e.failures++
	c.entries[email] = e
}

func (c *loginThrottle) Clear(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, email)
}
