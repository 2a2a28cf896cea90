// Package postgres provides a PostgreSQL transaction store.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/filter"
	"github.com/ArionMiles/txnsearch/pkg/query"
	"github.com/ArionMiles/txnsearch/pkg/writer/buffered"
)

//go:embed 001_create_transactions.sql
var migrationSQL string

// Config holds the PostgreSQL store configuration.
type Config struct {
	// DSN, when set, is used instead of the individual connection fields.
	DSN string `json:"dsn,omitempty"`

	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password"`
	SSLMode  string `json:"sslmode,omitempty"`

	// BatchSize is the number of transactions to buffer before writing.
	BatchSize int `json:"batch_size,omitempty"`
	// FlushInterval is the time between automatic flushes.
	FlushInterval time.Duration `json:"flush_interval,omitempty"`

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int `json:"max_pool_size,omitempty"`
	// ConnectAttempts is how many times the initial ping is tried.
	ConnectAttempts uint `json:"connect_attempts,omitempty"`
}

// ConnString returns DSN or renders the connection fields as a libpq
// keyword/value string.
func (c Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = 10
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 3
	}
}

// Store reads and writes transactions in a PostgreSQL database.
type Store struct {
	pool     *pgxpool.Pool
	logger   *slog.Logger
	buffered *buffered.Writer
}

var (
	_ api.Store  = (*Store)(nil)
	_ api.Writer = (*Store)(nil)
)

// New connects to PostgreSQL and applies the schema migration.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.setDefaults()

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	err = retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return pool.Ping(pingCtx)
		},
		retry.Context(ctx),
		retry.Attempts(cfg.ConnectAttempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("postgres not reachable, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	s := &Store{pool: pool, logger: logger}

	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s.buffered = buffered.New(s.Insert, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "postgres_buffer"))

	return s, nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	s.logger.Debug("running database migrations")
	if _, err := s.pool.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	return nil
}

// Write consumes transactions from the channel and writes them in batches.
func (s *Store) Write(ctx context.Context, in <-chan *api.TransactionDetails, ackChan chan<- string) error {
	return s.buffered.Write(ctx, in, ackChan)
}

// Insert writes a batch of transactions in one database transaction, using
// INSERT ON CONFLICT to update rows with a known message ID. The stored ID
// is set on each transaction.
func (s *Store) Insert(ctx context.Context, transactions []*api.TransactionDetails) error {
	if len(transactions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, txn := range transactions {
		currency := txn.Currency
		if currency == "" {
			currency = "INR"
		}

		timestamp, ok := filter.ParseTimestamp(txn.Timestamp, time.UTC)
		if !ok {
			s.logger.Warn("invalid timestamp format, using current time", "timestamp", txn.Timestamp)
			timestamp = time.Now()
		}

		var messageID *string
		if txn.MessageID != "" {
			messageID = &txn.MessageID
		}

		batch.Queue(`
			INSERT INTO transactions (
				message_id, amount, currency, original_amount, original_currency,
				exchange_rate, timestamp, merchant_info, category, bucket, source, description
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (message_id) DO UPDATE SET
				amount = EXCLUDED.amount,
				currency = EXCLUDED.currency,
				original_amount = EXCLUDED.original_amount,
				original_currency = EXCLUDED.original_currency,
				exchange_rate = EXCLUDED.exchange_rate,
				timestamp = EXCLUDED.timestamp,
				merchant_info = EXCLUDED.merchant_info,
				category = EXCLUDED.category,
				bucket = EXCLUDED.bucket,
				source = EXCLUDED.source,
				description = EXCLUDED.description,
				updated_at = NOW()
			RETURNING id::text
		`,
			messageID,
			txn.Amount,
			currency,
			txn.OriginalAmount,
			txn.OriginalCurrency,
			txn.ExchangeRate,
			timestamp,
			txn.MerchantInfo,
			txn.Category,
			txn.Bucket,
			txn.Source,
			txn.Description,
		)
	}

	results := tx.SendBatch(ctx, batch)
	ids := make([]string, len(transactions))
	for i := range transactions {
		if err := results.QueryRow().Scan(&ids[i]); err != nil {
			results.Close()
			return fmt.Errorf("inserting transaction %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	for i, txn := range transactions {
		if err := insertLabels(ctx, tx, ids[i], txn.Labels); err != nil {
			return fmt.Errorf("inserting labels for transaction %s: %w", ids[i], err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	for i, txn := range transactions {
		txn.ID = ids[i]
	}
	return nil
}

func insertLabels(ctx context.Context, tx pgx.Tx, txnID string, labels []string) error {
	if len(labels) == 0 {
		return nil
	}

	valueStrings := make([]string, 0, len(labels))
	valueArgs := make([]any, 0, len(labels)*2)
	for i, label := range labels {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d::uuid, $%d)", 2*i+1, 2*i+2))
		valueArgs = append(valueArgs, txnID, label)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO transaction_labels (transaction_id, label)
		VALUES %s
		ON CONFLICT (transaction_id, label) DO NOTHING
	`, strings.Join(valueStrings, ","))

	if _, err := tx.Exec(ctx, stmt, valueArgs...); err != nil {
		return fmt.Errorf("executing label insert: %w", err)
	}
	return nil
}

// Search returns transactions matching q, newest first.
func (s *Store) Search(ctx context.Context, q query.Group, opts api.SearchOptions) ([]*api.TransactionDetails, error) {
	clause, err := filter.Compile(q, filter.Postgres, filter.OptionsFrom(opts))
	if err != nil {
		return nil, fmt.Errorf("compiling query: %w", err)
	}

	n := len(clause.Args)
	stmt := fmt.Sprintf(`
		SELECT id::text, COALESCE(message_id, ''), amount, currency, original_amount,
			original_currency, exchange_rate, timestamp, COALESCE(merchant_info, ''),
			COALESCE(category, ''), COALESCE(bucket, ''), COALESCE(source, ''),
			COALESCE(description, ''),
			COALESCE((SELECT array_agg(l.label ORDER BY l.label) FROM transaction_labels l
				WHERE l.transaction_id = transactions.id), '{}')
		FROM transactions
		WHERE %s
		ORDER BY timestamp DESC, id
		LIMIT %s OFFSET %s`,
		clause.SQL, filter.Postgres.Placeholder(n+1), filter.Postgres.Placeholder(n+2))
	args := append(clause.Args, opts.EffectiveLimit(), max(opts.Offset, 0))

	s.logger.Debug("searching transactions", "where", clause.SQL, "args", len(clause.Args))

	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var results []*api.TransactionDetails
	for rows.Next() {
		var (
			t         api.TransactionDetails
			timestamp time.Time
			labels    []string
		)
		if err := rows.Scan(
			&t.ID, &t.MessageID, &t.Amount, &t.Currency, &t.OriginalAmount,
			&t.OriginalCurrency, &t.ExchangeRate, &timestamp, &t.MerchantInfo,
			&t.Category, &t.Bucket, &t.Source, &t.Description, &labels,
		); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		t.Timestamp = timestamp.UTC().Format(time.RFC3339)
		if len(labels) > 0 {
			t.Labels = labels
		}
		results = append(results, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	return results, nil
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("closed PostgreSQL connection pool")
	}
	return nil
}
