package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minify-io/url-minifier/internal/config"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

func NewPostgresDB(cfg config.DBConfig) (*PostgresDB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB config: %w", err)
	}

	// Настройка пула соединений
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// InitSchema создаёт таблицы и индексы, если их ещё нет.
// Уникальный индекс по short_link - единственный арбитр коллизий кодов.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS links (
			id           UUID PRIMARY KEY,
			short_link   TEXT NOT NULL,
			redirect_url TEXT NOT NULL,
			owner        TEXT NOT NULL DEFAULT '',
			tags         TEXT[] NOT NULL DEFAULT '{}',
			web_hook     TEXT NOT NULL DEFAULT '',
			expiration   TIMESTAMPTZ,
			click_count  BIGINT NOT NULL DEFAULT 0,
			last_clicked TIMESTAMPTZ,
			created      TIMESTAMPTZ NOT NULL,
			updated      TIMESTAMPTZ NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS links_short_link_key ON links (short_link);

		CREATE TABLE IF NOT EXISTS clicks (
			id          UUID PRIMARY KEY,
			url_id      UUID NOT NULL,
			clicked     TIMESTAMPTZ NOT NULL,
			request_url TEXT NOT NULL DEFAULT '',
			args        TEXT[] NOT NULL DEFAULT '{}',
			ip_address  TEXT NOT NULL DEFAULT '',
			user_agent  TEXT NOT NULL DEFAULT '',
			referrer    TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS clicks_url_id_idx ON clicks (url_id);
	`

	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}
