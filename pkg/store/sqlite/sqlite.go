// Package sqlite stores transactions in a local SQLite database and searches
// them with compiled query filters.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/filter"
	"github.com/ArionMiles/txnsearch/pkg/query"
	"github.com/ArionMiles/txnsearch/pkg/store/sqlite/migrations"
	"github.com/ArionMiles/txnsearch/pkg/writer/buffered"
)

// Config holds the SQLite store configuration.
type Config struct {
	// Path is the database file. ":memory:" keeps the database in memory.
	Path string `json:"path"`
	// BatchSize is the number of transactions Write buffers before inserting.
	BatchSize int `json:"batch_size,omitempty"`
	// FlushInterval is the time between automatic flushes during Write.
	FlushInterval time.Duration `json:"flush_interval,omitempty"`
}

// Store is a SQLite-backed transaction store.
type Store struct {
	db       *sql.DB
	path     string
	logger   *slog.Logger
	buffered *buffered.Writer
}

var (
	_ api.Store  = (*Store)(nil)
	_ api.Writer = (*Store)(nil)
)

// New opens (creating if needed) the database at cfg.Path and applies
// pending migrations.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.Path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:     db,
		path:   cfg.Path,
		logger: logger,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s.buffered = buffered.New(s.Insert, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "sqlite_buffer"))

	logger.Info("opened sqlite store", "path", cfg.Path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs every embedded migration newer than the recorded version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?1)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		s.logger.Debug("applied migration", "name", name)
	}

	return nil
}

// Write consumes transactions from the channel and inserts them in batches.
func (s *Store) Write(ctx context.Context, in <-chan *api.TransactionDetails, ackChan chan<- string) error {
	return s.buffered.Write(ctx, in, ackChan)
}

const upsertSQL = `
	INSERT INTO transactions (
		id, message_id, amount, currency, original_amount, original_currency,
		exchange_rate, timestamp, merchant_info, category, bucket, source, description
	) VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9, ?10, ?11, ?12, ?13)
	ON CONFLICT (message_id) DO UPDATE SET
		amount = excluded.amount,
		currency = excluded.currency,
		original_amount = excluded.original_amount,
		original_currency = excluded.original_currency,
		exchange_rate = excluded.exchange_rate,
		timestamp = excluded.timestamp,
		merchant_info = excluded.merchant_info,
		category = excluded.category,
		bucket = excluded.bucket,
		source = excluded.source,
		description = excluded.description,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
	RETURNING id
`

// Insert stores transactions in one database transaction. Rows with a
// message ID already present are updated in place. The stored ID is set on
// each transaction.
func (s *Store) Insert(ctx context.Context, transactions []*api.TransactionDetails) error {
	if len(transactions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for i, txn := range transactions {
		currency := txn.Currency
		if currency == "" {
			currency = "INR"
		}

		timestamp, ok := filter.ParseTimestamp(txn.Timestamp, time.UTC)
		if !ok {
			s.logger.Warn("invalid timestamp format, using current time", "timestamp", txn.Timestamp)
			timestamp = time.Now()
		}

		var messageID any
		if txn.MessageID != "" {
			messageID = txn.MessageID
		}

		var id string
		err := tx.QueryRowContext(ctx, upsertSQL,
			uuid.NewString(),
			messageID,
			txn.Amount,
			currency,
			txn.OriginalAmount,
			txn.OriginalCurrency,
			txn.ExchangeRate,
			filter.FormatSQLiteTime(timestamp),
			txn.MerchantInfo,
			txn.Category,
			txn.Bucket,
			txn.Source,
			txn.Description,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting transaction %d: %w", i, err)
		}

		for _, label := range txn.Labels {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO transaction_labels (transaction_id, label) VALUES (?1, ?2) ON CONFLICT DO NOTHING",
				id, label,
			); err != nil {
				return fmt.Errorf("inserting labels for transaction %s: %w", id, err)
			}
		}
		txn.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const selectColumns = `id, COALESCE(message_id, ''), amount, currency, original_amount,
	original_currency, exchange_rate, timestamp, COALESCE(merchant_info, ''),
	COALESCE(category, ''), COALESCE(bucket, ''), COALESCE(source, ''),
	COALESCE(description, '')`

// Search returns transactions matching q, newest first.
func (s *Store) Search(ctx context.Context, q query.Group, opts api.SearchOptions) ([]*api.TransactionDetails, error) {
	clause, err := filter.Compile(q, filter.SQLite, filter.OptionsFrom(opts))
	if err != nil {
		return nil, fmt.Errorf("compiling query: %w", err)
	}

	n := len(clause.Args)
	stmt := fmt.Sprintf("SELECT %s FROM transactions WHERE %s ORDER BY timestamp DESC, id LIMIT %s OFFSET %s",
		selectColumns, clause.SQL, filter.SQLite.Placeholder(n+1), filter.SQLite.Placeholder(n+2))
	args := append(clause.Args, opts.EffectiveLimit(), max(opts.Offset, 0))

	s.logger.Debug("searching transactions", "where", clause.SQL, "args", len(clause.Args))

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var results []*api.TransactionDetails
	byID := make(map[string]*api.TransactionDetails)
	for rows.Next() {
		t := &api.TransactionDetails{}
		if err := rows.Scan(
			&t.ID, &t.MessageID, &t.Amount, &t.Currency, &t.OriginalAmount,
			&t.OriginalCurrency, &t.ExchangeRate, &t.Timestamp, &t.MerchantInfo,
			&t.Category, &t.Bucket, &t.Source, &t.Description,
		); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		results = append(results, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}

	if err := s.loadLabels(ctx, byID); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) loadLabels(ctx context.Context, byID map[string]*api.TransactionDetails) error {
	if len(byID) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(byID))
	args := make([]any, 0, len(byID))
	for id := range byID {
		args = append(args, id)
		placeholders = append(placeholders, filter.SQLite.Placeholder(len(args)))
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT transaction_id, label FROM transaction_labels WHERE transaction_id IN (%s) ORDER BY label",
		strings.Join(placeholders, ", "),
	), args...)
	if err != nil {
		return fmt.Errorf("querying labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			return fmt.Errorf("scanning label: %w", err)
		}
		if t, ok := byID[id]; ok {
			t.Labels = append(t.Labels, label)
		}
	}
	return rows.Err()
}
