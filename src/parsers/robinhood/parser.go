package robinhood

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
)

// Column headers of a Robinhood activity export. Columns are located by
// header name so extra columns and reordered files still parse.
const (
	colActivityDate = "Activity Date"
	colInstrument   = "Instrument"
	colTransCode    = "Trans Code"
	colQuantity     = "Quantity"
	colPrice        = "Price"
	colAmount       = "Amount"
)

var dateLayouts = []string{"1/2/2006", "01/02/2006", "2006-01-02"}

// RobinhoodParser implements the parsers.Parser interface for Robinhood
// activity statements.
type RobinhoodParser struct{}

// NewParser creates a new instance of the RobinhoodParser.
func NewParser() *RobinhoodParser {
	return &RobinhoodParser{}
}

// normalizeCurrencyString strips the noise Robinhood puts in currency columns:
// dollar signs, thousands separators, surrounding quotes. Parentheses denote
// a negative amount.
func normalizeCurrencyString(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.Trim(cleaned, "\"")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + cleaned[1:len(cleaned)-1]
	}
	return cleaned
}

func parseCurrency(s string) (decimal.Decimal, error) {
	normalized := normalizeCurrencyString(s)
	if normalized == "" {
		return decimal.Zero, fmt.Errorf("empty currency value")
	}
	return decimal.NewFromString(normalized)
}

func parseDate(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date format: %q", s)
}

// Parse reads a Robinhood CSV export and converts its rows into a slice of
// Transaction. Rows whose required fields fail to parse are skipped, never
// aborting the load; only Buy, Sell and CDIV rows are kept. File order is
// preserved.
func (p *RobinhoodParser) Parse(file io.Reader) ([]models.Transaction, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields per record

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("robinhood parser: failed to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colActivityDate, colInstrument, colTransCode, colQuantity, colPrice, colAmount} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("robinhood parser: missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		idx := columns[name]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var txs []models.Transaction
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed line, not a malformed file: keep going.
			log.Printf("Robinhood Parser: Skipping unreadable CSV line: %v", err)
			continue
		}

		action := models.Action(field(record, colTransCode))
		if action != models.ActionBuy && action != models.ActionSell && action != models.ActionDividend {
			continue
		}

		instrument := field(record, colInstrument)
		if instrument == "" {
			continue
		}

		date, err := parseDate(field(record, colActivityDate))
		if err != nil {
			log.Printf("Robinhood Parser: Skipping row due to invalid date: %s (instrument: %s)", field(record, colActivityDate), instrument)
			continue
		}

		tx := models.Transaction{
			Instrument: instrument,
			Date:       date,
			Action:     action,
			RawText:    strings.Join(record, ","),
		}

		amount, amountErr := parseCurrency(field(record, colAmount))
		if amountErr == nil {
			tx.Amount = amount
			tx.HasAmount = true
		}

		switch action {
		case models.ActionBuy, models.ActionSell:
			quantity, err := decimal.NewFromString(normalizeCurrencyString(field(record, colQuantity)))
			if err != nil {
				log.Printf("Robinhood Parser: Skipping %s row with unparseable quantity %q (instrument: %s)", action, field(record, colQuantity), instrument)
				continue
			}
			price, err := parseCurrency(field(record, colPrice))
			if err != nil {
				log.Printf("Robinhood Parser: Skipping %s row with unparseable price %q (instrument: %s)", action, field(record, colPrice), instrument)
				continue
			}
			tx.Quantity = quantity
			tx.Price = price
		case models.ActionDividend:
			if amountErr != nil {
				log.Printf("Robinhood Parser: Skipping dividend row with unparseable amount %q (instrument: %s)", field(record, colAmount), instrument)
				continue
			}
		}

		txs = append(txs, tx)
	}

	return txs, nil
}
