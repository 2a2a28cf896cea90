// Package export renders search results as a table, CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ArionMiles/txnsearch/pkg/api"
)

// Format selects how results are rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, csv or json)", s)
}

// Write renders transactions to w in the given format.
func Write(w io.Writer, format Format, transactions []*api.TransactionDetails) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, transactions)
	case FormatJSON:
		return WriteJSON(w, transactions)
	case FormatTable, "":
		return WriteTable(w, transactions)
	}
	return fmt.Errorf("unknown format %q", format)
}

var csvHeaders = []string{"Timestamp", "Merchant", "Amount", "Currency", "Category", "Bucket", "Source", "Description", "Labels"}

func record(t *api.TransactionDetails) []string {
	return []string{
		t.Timestamp,
		t.MerchantInfo,
		strconv.FormatFloat(t.Amount, 'f', 2, 64),
		t.Currency,
		t.Category,
		t.Bucket,
		t.Source,
		t.Description,
		strings.Join(t.Labels, ";"),
	}
}

// WriteCSV writes a header row followed by one row per transaction.
// Labels are joined with ";".
func WriteCSV(w io.Writer, transactions []*api.TransactionDetails) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, t := range transactions {
		if err := cw.Write(record(t)); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// WriteJSON writes the transactions as an indented JSON array. No results
// is written as [].
func WriteJSON(w io.Writer, transactions []*api.TransactionDetails) error {
	if transactions == nil {
		transactions = []*api.TransactionDetails{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(transactions); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

// WriteTable draws a bordered table for terminals.
func WriteTable(w io.Writer, transactions []*api.TransactionDetails) error {
	if len(transactions) == 0 {
		_, err := fmt.Fprintln(w, "No matching transactions.")
		return err
	}

	rows := make([][]string, 0, len(transactions))
	for _, t := range transactions {
		amount := strconv.FormatFloat(t.Amount, 'f', 2, 64)
		if t.Currency != "" {
			amount = t.Currency + " " + amount
		}
		rows = append(rows, []string{
			t.Timestamp,
			t.MerchantInfo,
			amount,
			t.Category,
			t.Source,
			strings.Join(t.Labels, ", "),
		})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("DATE", "MERCHANT", "AMOUNT", "CATEGORY", "SOURCE", "LABELS").
		Rows(rows...)

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
