// Package jsonfile keeps transactions in a JSON array on disk and searches
// them in memory.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/filter"
	"github.com/ArionMiles/txnsearch/pkg/query"
	"github.com/ArionMiles/txnsearch/pkg/writer/buffered"
)

// Config holds configuration for the JSON store.
type Config struct {
	// FilePath is the path to the JSON file.
	FilePath string `json:"file_path"`
	// BatchSize is the number of transactions to buffer before writing.
	BatchSize int `json:"batch_size,omitempty"`
	// FlushInterval is the interval between automatic flushes.
	FlushInterval time.Duration `json:"flush_interval,omitempty"`
}

// Store holds transactions in memory and persists them as a JSON array.
type Store struct {
	filePath     string
	transactions []*api.TransactionDetails
	mu           sync.RWMutex
	buffered     *buffered.Writer
	logger       *slog.Logger
}

var (
	_ api.Store  = (*Store)(nil)
	_ api.Writer = (*Store)(nil)
)

// New loads the file at cfg.FilePath. A missing file is an empty store.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("json file path is required")
	}

	s := &Store{
		filePath:     cfg.FilePath,
		transactions: make([]*api.TransactionDetails, 0),
		logger:       logger,
	}

	if err := s.loadExisting(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfg.FilePath, err)
	}

	s.buffered = buffered.New(s.Insert, buffered.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, logger.With("component", "json_buffer"))

	logger.Info("json store initialized", "file", cfg.FilePath, "existing_count", len(s.transactions))
	return s, nil
}

func (s *Store) loadExisting() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &s.transactions)
}

// Write consumes transactions from the input channel and appends them to the file.
func (s *Store) Write(ctx context.Context, in <-chan *api.TransactionDetails, ackChan chan<- string) error {
	return s.buffered.Write(ctx, in, ackChan)
}

// Insert appends transactions and rewrites the file. Transactions without an
// ID are given their position in the file as one. Nothing is kept in memory
// unless the file write succeeds.
func (s *Store) Insert(_ context.Context, transactions []*api.TransactionDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clip(s.transactions)
	for _, txn := range transactions {
		if txn.ID == "" {
			txn.ID = fmt.Sprint(len(next) + 1)
		}
		next = append(next, txn)
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	if dir := filepath.Dir(s.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	if err := os.WriteFile(s.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing json file: %w", err)
	}
	s.transactions = next

	s.logger.Debug("wrote transactions to json",
		"batch_count", len(transactions),
		"total_count", len(s.transactions),
	)
	return nil
}

// Search returns transactions matching q, newest first. Transactions whose
// timestamp cannot be read sort last.
func (s *Store) Search(ctx context.Context, q query.Group, opts api.SearchOptions) ([]*api.TransactionDetails, error) {
	match, err := filter.CompileMatcher(q, filter.OptionsFrom(opts))
	if err != nil {
		return nil, fmt.Errorf("compiling query: %w", err)
	}

	type hit struct {
		txn *api.TransactionDetails
		at  time.Time
	}

	s.mu.RLock()
	var hits []hit
	for _, txn := range s.transactions {
		if err := ctx.Err(); err != nil {
			s.mu.RUnlock()
			return nil, err
		}
		if match(txn) {
			at, _ := filter.ParseTimestamp(txn.Timestamp, time.UTC)
			hits = append(hits, hit{txn: txn, at: at})
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(hits, func(a, b hit) int {
		return b.at.Compare(a.at)
	})

	offset := min(max(opts.Offset, 0), len(hits))
	end := min(offset+opts.EffectiveLimit(), len(hits))

	results := make([]*api.TransactionDetails, 0, end-offset)
	for _, h := range hits[offset:end] {
		c := *h.txn
		c.Labels = slices.Clone(h.txn.Labels)
		results = append(results, &c)
	}
	return results, nil
}

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.transactions)
}

// Close releases nothing; every Insert is already on disk.
func (s *Store) Close() error {
	return nil
}
