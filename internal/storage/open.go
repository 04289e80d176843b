package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// Config carries the resolved connection parameters for one target store.
// Discrete fields win over URL when both are present; config resolution is
// handled by the config package, so by the time a Config reaches Open the
// fields below are authoritative.
type Config struct {
	Driver   string // mysql | postgres | sqlite | mssql
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// MaxAttempts bounds the initial connect retry loop. Zero means a single
	// attempt. Retry wraps only connect+ping; per-row operations are never
	// retried, since retrying a partially-applied write under ambiguous
	// matching could duplicate side effects.
	MaxAttempts int
}

// sqlDriverName maps a dialect name to the database/sql driver it registers.
var sqlDriverName = map[string]string{
	"mysql":    "mysql",
	"postgres": "pgx",
	"sqlite":   "sqlite",
	"mssql":    "sqlserver",
}

// Open resolves the dialect for cfg.Driver, builds the DSN, and connects with
// bounded retry and increasing backoff. Hosted MySQL proxies drop the
// occasional handshake, so a couple of attempts at connect time are worth it;
// after the first successful ping no retrying happens anywhere.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := ByName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := d.DSN(cfg)
	if err != nil {
		return nil, err
	}

	driver, ok := sqlDriverName[d.Name()]
	if !ok {
		driver = d.Name()
	}

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := sql.Open(driver, dsn)
		if err != nil {
			// Malformed DSN; retrying cannot help.
			return nil, fmt.Errorf("open %s: %w", d.Name(), err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return NewStore(db, d, cfg.Database), nil
		}
		db.Close()
		lastErr = err

		if i < attempts {
			wait := time.Duration(2*i) * time.Second
			log.Printf("connect attempt %d/%d failed: %v; retrying in %s", i, attempts, err, wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("connect to %s failed after %d attempts: %w", d.Name(), attempts, lastErr)
}
