package utils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// API keys let trusted issuers (e.g. a course platform generating
// certificates in bulk) get their own rate limit instead of the per-client one.
var apiKeys struct {
	sync.RWMutex
	limits map[string]int
}

var keyDB struct {
	sync.Mutex
	dsn string
	db  *sql.DB
}

var (
	// ErrInvalidAPIKey signals that the presented key is unknown.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrKeyStoreNotReady signals that keys have not been loaded yet, e.g.
	// because Postgres was unreachable at startup.
	ErrKeyStoreNotReady = errors.New("api key store not ready")
)

const (
	apiKeysDDL = `CREATE TABLE IF NOT EXISTS api_keys (
		key TEXT PRIMARY KEY,
		rate_limit INTEGER NOT NULL DEFAULT 60,
		issuer TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	apiKeysSelect = `SELECT key, rate_limit FROM api_keys;`
)

func postgresDSN(cfg PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	switch {
	case cfg.Host == "":
		return "", fmt.Errorf("postgres host is empty")
	case cfg.Database == "":
		return "", fmt.Errorf("postgres database is empty")
	case cfg.User == "":
		return "", fmt.Errorf("postgres user is empty")
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	host := cfg.Host
	switch {
	case strings.HasPrefix(host, "["):
		if !strings.Contains(host, "]:") {
			host = fmt.Sprintf("%s:%d", host, port)
		}
	case strings.Count(host, ":") >= 2:
		host = fmt.Sprintf("[%s]:%d", host, port)
	case !strings.Contains(host, ":"):
		host = fmt.Sprintf("%s:%d", host, port)
	}

	u := &url.URL{Scheme: "postgres", Host: host, Path: "/" + cfg.Database}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	if cfg.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", cfg.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func openKeyDB(cfg PostgresConfig) (*sql.DB, error) {
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}

	keyDB.Lock()
	defer keyDB.Unlock()

	if keyDB.db != nil && keyDB.dsn == dsn {
		return keyDB.db, nil
	}
	if keyDB.db != nil {
		_ = keyDB.db.Close()
		keyDB.db, keyDB.dsn = nil, ""
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	keyDB.db, keyDB.dsn = db, dsn
	return db, nil
}

// LoadAPIKeysFromPostgres creates the api_keys table if needed and replaces
// the in-memory key cache with its contents.
func LoadAPIKeysFromPostgres(cfg PostgresConfig) error {
	db, err := openKeyDB(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, apiKeysDDL); err != nil {
		return fmt.Errorf("ensure api_keys: %w", err)
	}

	rows, err := db.QueryContext(ctx, apiKeysSelect)
	if err != nil {
		return err
	}
	defer rows.Close()

	limits := make(map[string]int)
	for rows.Next() {
		var key string
		var limit int
		if err := rows.Scan(&key, &limit); err != nil {
			return err
		}
		limits[key] = limit
	}
	if err := rows.Err(); err != nil {
		return err
	}

	LoadAPIKeysFromMap(limits)
	return nil
}

// LoadAPIKeysFromMap replaces the key cache with a copy of m.
func LoadAPIKeysFromMap(m map[string]int) {
	limits := make(map[string]int, len(m))
	for k, v := range m {
		limits[k] = v
	}
	apiKeys.Lock()
	apiKeys.limits = limits
	apiKeys.Unlock()
}

// APIKeysReady reports whether keys have been loaded at least once.
func APIKeysReady() bool {
	apiKeys.RLock()
	defer apiKeys.RUnlock()
	return apiKeys.limits != nil
}

// ValidateAPIKey reports whether key is known.
func ValidateAPIKey(key string) bool {
	apiKeys.RLock()
	defer apiKeys.RUnlock()
	_, ok := apiKeys.limits[key]
	return ok
}

// RateLimitFor returns the per-interval limit for key; 0 means unlimited or
// unknown.
func RateLimitFor(key string) int {
	apiKeys.RLock()
	defer apiKeys.RUnlock()
	return apiKeys.limits[key]
}

// RefreshAPIKeysPeriodically reloads keys every interval until stop closes.
func RefreshAPIKeysPeriodically(cfg PostgresConfig, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := LoadAPIKeysFromPostgres(cfg); err != nil {
				Error("Failed to reload API keys", "error", err)
			}
		case <-stop:
			return
		}
	}
}
