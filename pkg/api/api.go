// Package api defines the core interfaces and data structures for txnsearch.
package api

import (
	"context"
	"regexp"
	"time"

	"github.com/ArionMiles/txnsearch/pkg/query"
)

// TransactionDetails holds a single recorded transaction.
type TransactionDetails struct {
	// ID is the store-assigned identifier. Empty until the transaction is stored.
	ID           string  `json:"id,omitempty"`
	Amount       float64 `json:"amount"`
	Timestamp    string  `json:"timestamp"`
	MerchantInfo string  `json:"merchant_info"`
	Category     string  `json:"category"`
	// Bucket classifies the expense as Need/Want/Investment.
	Bucket string `json:"bucket"`
	Source string `json:"source"`
	// MessageID is the email message ID the transaction was extracted from.
	// Writers acknowledge it once the transaction is stored.
	MessageID string `json:"message_id,omitempty"`

	// Multi-currency support
	Currency         string   `json:"currency,omitempty"`          // e.g., "INR", "USD", "EUR"
	OriginalAmount   *float64 `json:"original_amount,omitempty"`   // If converted
	OriginalCurrency *string  `json:"original_currency,omitempty"` // Original currency if converted
	ExchangeRate     *float64 `json:"exchange_rate,omitempty"`     // Conversion rate if applicable

	// User-added fields
	Description string   `json:"description,omitempty"` // User-added description
	Labels      []string `json:"labels,omitempty"`      // User-added labels
}

// QueryParser turns a raw search string into a query tree. It is the only
// way the rest of the system reaches the parser.
type QueryParser interface {
	Parse(query string) query.Group
}

// DefaultLimit is the number of results returned when SearchOptions.Limit is zero.
const DefaultLimit = 50

// SearchOptions controls how a query is evaluated and paged.
type SearchOptions struct {
	// Limit is the maximum number of results. Zero means DefaultLimit.
	Limit int
	// Offset skips that many matching transactions.
	Offset int
	// UnknownFieldsAsText searches field terms with an unrecognised field as
	// free text instead of rejecting the query.
	UnknownFieldsAsText bool
	// Location is the zone date values are read in. Nil means UTC.
	Location *time.Location
}

// EffectiveLimit returns Limit, or DefaultLimit when Limit is not positive.
func (o SearchOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// Store executes query trees against stored transactions.
// Results are ordered newest first.
type Store interface {
	Search(ctx context.Context, q query.Group, opts SearchOptions) ([]*TransactionDetails, error)
	Close() error
}

// Writer consumes transactions from a channel and writes them to a destination.
// Successfully written transaction message IDs are sent to the ackChan.
type Writer interface {
	Write(ctx context.Context, in <-chan *TransactionDetails, ackChan chan<- string) error
}

// Rule defines an email matching rule for transaction extraction.
type Rule struct {
	Name         string
	Query        string
	Amount       *regexp.Regexp
	MerchantInfo *regexp.Regexp
	Enabled      bool
	Source       string
}

// Labels maps merchant names to their category and bucket classification.
type Labels map[string]struct {
	Category string `json:"category"`
	Bucket   string `json:"bucket"`
}

// LabelLookup returns the category and bucket for a merchant.
// Returns empty strings if the merchant is not found.
func (l Labels) LabelLookup(merchant string) (category, bucket string) {
	if val, exists := l[merchant]; exists {
		return val.Category, val.Bucket
	}
	return "", ""
}
