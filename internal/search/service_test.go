package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

type recordingStore struct {
	queries []query.Group
	opts    []api.SearchOptions
	results []*api.TransactionDetails
	err     error
}

func (s *recordingStore) Search(_ context.Context, q query.Group, opts api.SearchOptions) ([]*api.TransactionDetails, error) {
	s.queries = append(s.queries, q)
	s.opts = append(s.opts, opts)
	return s.results, s.err
}

func (s *recordingStore) Close() error { return nil }

func TestService_Search(t *testing.T) {
	store := &recordingStore{results: []*api.TransactionDetails{{ID: "1", MerchantInfo: "Swiggy"}}}
	ist := time.FixedZone("IST", 5*3600+1800)
	svc := New(query.New(), store, Config{Limit: 20, UnknownFieldsAsText: true, Location: ist}, nil)

	res, err := svc.Search(context.Background(), "swiggy -amount:<100", api.SearchOptions{Offset: 5})
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "swiggy -amount:<100", res.Query.String())

	require.Len(t, store.opts, 1)
	assert.Equal(t, api.SearchOptions{Limit: 20, Offset: 5, UnknownFieldsAsText: true, Location: ist}, store.opts[0])
	assert.True(t, query.Equal(res.Query, store.queries[0]))
}

func TestService_SearchKeepsRequestLimit(t *testing.T) {
	store := &recordingStore{}
	svc := New(query.New(), store, Config{Limit: 20}, nil)

	_, err := svc.Search(context.Background(), "", api.SearchOptions{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, store.opts[0].Limit)
	assert.Nil(t, store.opts[0].Location)
}

func TestService_StoreError(t *testing.T) {
	boom := errors.New("boom")
	svc := New(query.New(), &recordingStore{err: boom}, Config{}, nil)

	_, err := svc.Search(context.Background(), "x", api.SearchOptions{})
	require.ErrorIs(t, err, boom)
}

func TestService_Strict(t *testing.T) {
	store := &recordingStore{}
	svc := New(query.New(), store, Config{Strict: true}, nil)

	_, err := svc.Search(context.Background(), `merchant:"blue tokai`, api.SearchOptions{})
	require.ErrorIs(t, err, ErrMalformedQuery)

	var issue query.Issue
	require.ErrorAs(t, err, &issue)
	assert.Equal(t, query.IssueUnterminatedQuote, issue.Kind)
	assert.Empty(t, store.queries)

	lenient := New(query.New(), store, Config{}, nil)
	res, err := lenient.Search(context.Background(), `merchant:"blue tokai`, api.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, `merchant:"blue tokai"`, res.Query.String())
}

func TestService_DepthLimit(t *testing.T) {
	svc := New(query.New(query.WithMaxDepth(1)), &recordingStore{}, Config{}, nil)

	g, err := svc.Parse("((a))")
	require.NoError(t, err)
	require.Equal(t, 2, g.Len())
	inner, ok := g.At(0).(query.Group)
	require.True(t, ok)
	assert.True(t, query.Equal(query.NewTerm("(a", false), inner.At(0)))
	assert.True(t, query.Equal(query.NewTerm(")", false), g.At(1)))
}

func TestService_Saved(t *testing.T) {
	store := &recordingStore{}
	svc := New(query.New(), store, Config{Saved: map[string]string{
		"rent":      "category:rent",
		"groceries": "category:groceries -merchant:swiggy",
	}}, nil)

	assert.Equal(t, []SavedSearch{
		{Name: "groceries", Query: "category:groceries -merchant:swiggy"},
		{Name: "rent", Query: "category:rent"},
	}, svc.Saved())

	res, err := svc.SearchSaved(context.Background(), "rent", api.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "category:rent", res.Query.String())

	_, err = svc.SearchSaved(context.Background(), "travel", api.SearchOptions{})
	require.ErrorIs(t, err, ErrUnknownSavedSearch)
}
