// Package gmail searches transaction alert emails directly in Gmail.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ArionMiles/txnsearch/pkg/api"
	"github.com/ArionMiles/txnsearch/pkg/query"
)

// maxListResults is the largest page Gmail returns from messages.list.
const maxListResults = 500

// Config holds configuration for the Gmail searcher.
type Config struct {
	// Rules select alert emails and extract transactions from them.
	Rules []api.Rule
	// Labels maps merchants to categories.
	Labels api.Labels
	// RequestsPerSecond throttles Gmail API calls. Defaults to 2.
	RequestsPerSecond float64
	// Burst is the number of calls allowed at once. Defaults to 5.
	Burst int
	// RetryDelay is the wait after a rate limit response. Defaults to 60 seconds.
	RetryDelay time.Duration
	// RetryAttempts bounds calls per request. Defaults to 3.
	RetryAttempts uint
}

func (c *Config) setDefaults() {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 60 * time.Second
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
}

// Searcher runs queries against the user's mailbox. Each enabled rule's
// Gmail query is combined with the rendered search query and every match
// is turned into a transaction.
type Searcher struct {
	svc     *gmail.Service
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ api.Store = (*Searcher)(nil)

// New creates a Gmail searcher. Pass option.WithHTTPClient with an
// authorised client.
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Searcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.setDefaults()

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &Searcher{
		svc:     svc,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger,
	}, nil
}

// Search renders q as a Gmail query and returns the transactions extracted
// from matching emails, newest first.
func (s *Searcher) Search(ctx context.Context, q query.Group, opts api.SearchOptions) ([]*api.TransactionDetails, error) {
	rendered, err := Render(q)
	if err != nil {
		return nil, fmt.Errorf("rendering gmail query: %w", err)
	}

	want := min(opts.EffectiveLimit()+max(opts.Offset, 0), maxListResults)
	s.logger.Debug("searching gmail", "query", rendered, "max_results", want)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
		seen    = make(map[string]bool)
		results []*api.TransactionDetails
	)
	for _, rule := range s.cfg.Rules {
		if !rule.Enabled {
			s.logger.Debug("skipping disabled rule", "rule", rule.Name)
			continue
		}

		wg.Add(1)
		go func(rule api.Rule) {
			defer wg.Done()
			txns, err := s.searchRule(ctx, rule, rendered, int64(want))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("rule %s: %w", rule.Name, err))
				return
			}
			for _, txn := range txns {
				if seen[txn.MessageID] {
					continue
				}
				seen[txn.MessageID] = true
				results = append(results, txn)
			}
		}(rule)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b *api.TransactionDetails) int {
		return strings.Compare(b.Timestamp, a.Timestamp)
	})

	offset := min(max(opts.Offset, 0), len(results))
	end := min(offset+opts.EffectiveLimit(), len(results))
	return results[offset:end], nil
}

func (s *Searcher) searchRule(ctx context.Context, rule api.Rule, rendered string, maxResults int64) ([]*api.TransactionDetails, error) {
	logger := s.logger.With("rule", rule.Name, "source", rule.Source)

	q := rule.Query
	if rendered != "" {
		q = "(" + rule.Query + ") " + rendered
	}

	var resp *gmail.ListMessagesResponse
	err := s.call(ctx, func() error {
		var err error
		resp, err = s.svc.Users.Messages.List("me").Q(q).MaxResults(maxResults).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	logger.Debug("found messages", "count", len(resp.Messages))

	txns := make([]*api.TransactionDetails, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		txn, err := s.readMessage(ctx, m.Id, rule)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("failed to read message", "message_id", m.Id, "error", err)
			continue
		}
		if txn != nil {
			txns = append(txns, txn)
		}
	}
	return txns, nil
}

func (s *Searcher) readMessage(ctx context.Context, msgID string, rule api.Rule) (*api.TransactionDetails, error) {
	var msg *gmail.Message
	err := s.call(ctx, func() error {
		var err error
		msg, err = s.svc.Users.Messages.Get("me", msgID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}

	body := extractBody(msg)
	if body == "" {
		s.logger.Warn("empty message body", "message_id", msgID)
		return nil, nil
	}

	received := time.UnixMilli(msg.InternalDate)
	txn := ExtractTransactionDetails(body, rule.Amount, rule.MerchantInfo, received)
	txn.ID = msgID
	txn.Category, txn.Bucket = s.cfg.Labels.LabelLookup(txn.MerchantInfo)
	txn.Source = rule.Source
	txn.MessageID = msgID
	return txn, nil
}

// call throttles fn and retries it while Gmail reports rate limiting.
func (s *Searcher) call(ctx context.Context, fn func() error) error {
	return retry.Do(
		func() error {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
			return fn()
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				s.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Context(ctx),
		retry.Attempts(s.cfg.RetryAttempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.LastErrorOnly(true),
	)
}

// Close releases nothing; the service holds no open resources.
func (s *Searcher) Close() error {
	return nil
}

func extractBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	for _, part := range msg.Payload.Parts {
		if part.MimeType == "text/html" && part.Body != nil {
			if body, ok := decodeBody(part.Body.Data); ok {
				return body
			}
		}
	}
	if msg.Payload.Body != nil && msg.Payload.Body.Data != "" {
		if body, ok := decodeBody(msg.Payload.Body.Data); ok {
			return body
		}
	}
	return ""
}

// decodeBody accepts padded and unpadded base64url.
func decodeBody(data string) (string, bool) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return "", false
		}
	}
	return string(b), true
}

// ExtractTransactionDetails extracts transaction details from an email body
// using regex patterns. A nil pattern extracts nothing.
func ExtractTransactionDetails(emailBody string, amountRegex, merchantRegex *regexp.Regexp, receivedTime time.Time) *api.TransactionDetails {
	transaction := &api.TransactionDetails{
		Timestamp: receivedTime.UTC().Format(time.RFC3339),
	}

	if amountRegex != nil {
		if m := amountRegex.FindStringSubmatch(emailBody); len(m) > 1 {
			if amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
				transaction.Amount = amount
			}
		}
	}

	if merchantRegex != nil {
		if m := merchantRegex.FindStringSubmatch(emailBody); len(m) > 1 {
			transaction.MerchantInfo = strings.TrimSpace(m[1])
		}
	}

	return transaction
}
