package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var (
	DB *sqlx.DB

	mu          sync.RWMutex
	databaseURL string
)

// Connect opens the pool, retrying while the database container starts up.
func Connect(url string, attempts int) error {
	if url == "" {
		return errors.New("database url is empty")
	}
	if attempts < 1 {
		attempts = 1
	}

	var (
		conn *sqlx.DB
		err  error
	)
	for i := 0; i < attempts; i++ {
		conn, err = sqlx.Connect("postgres", url)
		if err == nil {
			break
		}
		log.Printf("Database connection attempt %d failed: %v", i+1, err)
		if i < attempts-1 {
			time.Sleep(1 * time.Second)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database after retries: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)

	mu.Lock()
	DB = conn
	databaseURL = url
	mu.Unlock()
	return nil
}

// Get returns the current pool.
func Get() *sqlx.DB {
	mu.RLock()
	defer mu.RUnlock()
	return DB
}

// Ping checks that the pool can reach the database.
func Ping(ctx context.Context) error {
	conn := Get()
	if conn == nil {
		return errors.New("database not connected")
	}
	return conn.PingContext(ctx)
}

// Reconnect replaces the pool with a fresh one for the last URL.
func Reconnect() error {
	mu.RLock()
	url, old := databaseURL, DB
	mu.RUnlock()
	if old != nil {
		old.Close()
	}
	return Connect(url, 3)
}

func Migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS images (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			original_size BIGINT NOT NULL,
			input_format VARCHAR(10) NOT NULL,
			output_format VARCHAR(10) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'queued',
			engine VARCHAR(20),
			compressed_size BIGINT,
			error TEXT,
			boost_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			boost_error TEXT,
			metadata_options JSONB,
			applied_metadata JSONB,
			metadata_warnings JSONB,
			final_size BIGINT,
			original_key VARCHAR(255) NOT NULL,
			compressed_key VARCHAR(255),
			final_key VARCHAR(255),
			thumbnail_url VARCHAR(500),
			blurhash VARCHAR(100),
			width INTEGER,
			height INTEGER,
			created_at TIMESTAMP DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_images_created ON images(created_at ASC);
	`

	_, err := Get().Exec(schema)
	return err
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if DB != nil {
		err := DB.Close()
		DB = nil
		return err
	}
	return nil
}
