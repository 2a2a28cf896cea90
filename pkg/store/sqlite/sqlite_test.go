package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/filter"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "txns.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	txns := []*api.TransactionDetails{
		{
			MessageID: "m1", Amount: 250, Timestamp: "2024-03-02T09:15:00Z", MerchantInfo: "Blue Tokai Coffee",
			Category: "Food", Bucket: "Want", Source: "HDFC Credit Card", Labels: []string{"coffee"},
		},
		{
			MessageID: "m2", Amount: 1200, Timestamp: "2024-03-20T19:00:00+05:30", MerchantInfo: "Swiggy",
			Category: "Food", Bucket: "Want", Source: "ICICI UPI", Description: "dinner with friends",
		},
		{
			MessageID: "m3", Amount: 45000, Timestamp: "2024-04-01", MerchantInfo: "Landlord",
			Category: "Rent", Bucket: "Need", Source: "HDFC Bank", Labels: []string{"monthly", "home"},
		},
		{
			Amount: 5000, Timestamp: "2023-12-31T23:59:59Z", MerchantInfo: "Zerodha 100%_safe",
			Category: "Investment", Bucket: "Investment", Source: "HDFC Bank", Currency: "USD",
		},
	}
	require.NoError(t, s.Insert(context.Background(), txns))
	for _, txn := range txns {
		require.NotEmpty(t, txn.ID)
	}
}

func merchants(results []*api.TransactionDetails) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.MerchantInfo)
	}
	return out
}

func TestSearch(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	tests := []struct {
		input string
		want  []string
	}{
		{"", []string{"Landlord", "Swiggy", "Blue Tokai Coffee", "Zerodha 100%_safe"}},
		{"hdfc", []string{"Landlord", "Blue Tokai Coffee", "Zerodha 100%_safe"}},
		{"HDFC -bank", []string{"Blue Tokai Coffee"}},
		{"food amount:>1000", []string{"Swiggy"}},
		{`description:"with friends"`, []string{"Swiggy"}},
		{"label:home", []string{"Landlord"}},
		{"-label:", []string{"Landlord", "Blue Tokai Coffee"}},
		{"date:2024-03", []string{"Swiggy", "Blue Tokai Coffee"}},
		{"date:<2024", []string{"Zerodha 100%_safe"}},
		{"-(bucket:want source:hdfc)", []string{"Landlord", "Swiggy", "Zerodha 100%_safe"}},
		{"merchant:100%_", []string{"Zerodha 100%_safe"}},
		{"merchant:1_0", nil},
		{"currency:usd", []string{"Zerodha 100%_safe"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := s.Search(context.Background(), query.Parse(tt.input), api.SearchOptions{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, merchants(got))
		})
	}
}

func TestSearch_MatchesInMemoryFilter(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	all, err := s.Search(context.Background(), query.Parse(""), api.SearchOptions{})
	require.NoError(t, err)

	for _, input := range []string{"food", "-food", "amount:250..1200", "label:co", "source:hdfc -label:", "date:>=2024-03-20"} {
		g := query.Parse(input)
		got, err := s.Search(context.Background(), g, api.SearchOptions{})
		require.NoError(t, err)

		p, err := filter.CompileMatcher(g, filter.Options{})
		require.NoError(t, err)
		var want []string
		for _, txn := range all {
			if p(txn) {
				want = append(want, txn.MerchantInfo)
			}
		}
		assert.Equal(t, want, merchants(got), input)
	}
}

func TestSearch_Paging(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	got, err := s.Search(context.Background(), query.Parse(""), api.SearchOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Swiggy", "Blue Tokai Coffee"}, merchants(got))
}

func TestSearch_LoadsFields(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	got, err := s.Search(context.Background(), query.Parse("merchant:landlord"), api.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	txn := got[0]
	assert.Equal(t, "m3", txn.MessageID)
	assert.Equal(t, 45000.0, txn.Amount)
	assert.Equal(t, "INR", txn.Currency)
	assert.Equal(t, "2024-04-01T00:00:00Z", txn.Timestamp)
	assert.Equal(t, []string{"home", "monthly"}, txn.Labels)
	assert.Nil(t, txn.OriginalAmount)
}

func TestSearch_Errors(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Search(context.Background(), query.Parse("colour:red"), api.SearchOptions{})
	require.ErrorIs(t, err, filter.ErrUnknownField)

	_, err = s.Search(context.Background(), query.Parse("colour:red"), api.SearchOptions{UnknownFieldsAsText: true})
	require.NoError(t, err)

	_, err = s.Search(context.Background(), query.Parse("amount:lots"), api.SearchOptions{})
	require.ErrorIs(t, err, filter.ErrInvalidValue)
}

func TestInsert_UpsertsByMessageID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &api.TransactionDetails{MessageID: "dup", Amount: 10, Timestamp: "2024-01-01T00:00:00Z", MerchantInfo: "Old"}
	require.NoError(t, s.Insert(ctx, []*api.TransactionDetails{first}))

	second := &api.TransactionDetails{MessageID: "dup", Amount: 20, Timestamp: "2024-01-01T00:00:00Z", MerchantInfo: "New"}
	require.NoError(t, s.Insert(ctx, []*api.TransactionDetails{second}))
	assert.Equal(t, first.ID, second.ID)

	got, err := s.Search(ctx, query.Parse(""), api.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "New", got[0].MerchantInfo)
	assert.Equal(t, 20.0, got[0].Amount)
}

func TestWrite(t *testing.T) {
	s := newTestStore(t)

	in := make(chan *api.TransactionDetails, 2)
	ack := make(chan string, 2)
	in <- &api.TransactionDetails{MessageID: "w1", Amount: 1, Timestamp: "2024-05-01T00:00:00Z"}
	in <- &api.TransactionDetails{MessageID: "w2", Amount: 2, Timestamp: "2024-05-02T00:00:00Z"}
	close(in)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Write(ctx, in, ack))
	assert.Equal(t, "w1", <-ack)
	assert.Equal(t, "w2", <-ack)

	got, err := s.Search(ctx, query.Parse("amount:>=1"), api.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestNew_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "txns.db")

	s, err := New(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Insert(context.Background(), []*api.TransactionDetails{{Amount: 1, Timestamp: "2024-01-01"}}))
	require.NoError(t, s.Close())

	s, err = New(Config{Path: path}, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Search(context.Background(), query.Parse(""), api.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestNew_InMemory(t *testing.T) {
	s, err := New(Config{Path: ":memory:"}, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(context.Background(), []*api.TransactionDetails{{Amount: 1, Timestamp: "2024-01-01"}}))
	got, err := s.Search(context.Background(), query.Parse(""), api.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
