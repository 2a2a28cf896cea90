// Package search runs raw search-box queries against a transaction store.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

var (
	// ErrUnknownSavedSearch is returned for a saved search name that is not configured.
	ErrUnknownSavedSearch = errors.New("unknown saved search")
	// ErrMalformedQuery is returned in strict mode when the parser had to
	// repair the query.
	ErrMalformedQuery = errors.New("malformed query")
)

// Config controls how queries are parsed and evaluated.
type Config struct {
	// UnknownFieldsAsText searches unknown fields as free text.
	UnknownFieldsAsText bool
	// Strict rejects queries the parser would silently repair.
	Strict bool
	// Limit is used when a request does not set one.
	Limit int
	// Location is the zone date values are read in.
	Location *time.Location
	// Saved maps saved search names to query strings.
	Saved map[string]string
}

// SavedSearch is a named query.
type SavedSearch struct {
	Name  string
	Query string
}

// Result is a parsed query and the transactions it matched.
type Result struct {
	Query        query.Group
	Transactions []*api.TransactionDetails
}

type validator interface {
	Validate(query string) []query.Issue
}

// Service parses queries and executes them on a store.
type Service struct {
	parser api.QueryParser
	store  api.Store
	cfg    Config
	logger *slog.Logger
}

// New creates a search service.
func New(parser api.QueryParser, store api.Store, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		parser: parser,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Parse parses raw, enforcing strict mode when configured.
func (s *Service) Parse(raw string) (query.Group, error) {
	if s.cfg.Strict {
		if v, ok := s.parser.(validator); ok {
			if issues := v.Validate(raw); len(issues) > 0 {
				errs := make([]error, 0, len(issues))
				for _, issue := range issues {
					errs = append(errs, issue)
				}
				return query.Group{}, fmt.Errorf("%w: %w", ErrMalformedQuery, errors.Join(errs...))
			}
		}
	}
	return s.parser.Parse(raw), nil
}

// Search parses raw and runs it on the store. Zero fields in opts take the
// service defaults.
func (s *Service) Search(ctx context.Context, raw string, opts api.SearchOptions) (Result, error) {
	q, err := s.Parse(raw)
	if err != nil {
		return Result{}, err
	}

	if opts.Limit <= 0 {
		opts.Limit = s.cfg.Limit
	}
	opts.UnknownFieldsAsText = opts.UnknownFieldsAsText || s.cfg.UnknownFieldsAsText
	if opts.Location == nil {
		opts.Location = s.cfg.Location
	}

	start := time.Now()
	txns, err := s.store.Search(ctx, q, opts)
	if err != nil {
		s.logger.Warn("search failed", "query", q.String(), "error", err)
		return Result{}, fmt.Errorf("searching: %w", err)
	}

	s.logger.Info("search complete",
		"query", q.String(),
		"results", len(txns),
		"limit", opts.EffectiveLimit(),
		"offset", opts.Offset,
		"duration", time.Since(start),
	)
	return Result{Query: q, Transactions: txns}, nil
}

// SearchSaved runs the saved search called name.
func (s *Service) SearchSaved(ctx context.Context, name string, opts api.SearchOptions) (Result, error) {
	raw, ok := s.cfg.Saved[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownSavedSearch, name)
	}
	return s.Search(ctx, raw, opts)
}

// Saved lists the saved searches ordered by name.
func (s *Service) Saved() []SavedSearch {
	out := make([]SavedSearch, 0, len(s.cfg.Saved))
	for name, q := range s.cfg.Saved {
		out = append(out, SavedSearch{Name: name, Query: q})
	}
	slices.SortFunc(out, func(a, b SavedSearch) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}
