package parsers

import (
	"fmt"
	"io"
	"strings"

	"github.com/username/stockfolio/backend/src/models"
	"github.com/username/stockfolio/backend/src/parsers/robinhood"
)

// Parser converts a broker export into the unified transaction model.
type Parser interface {
	Parse(file io.Reader) ([]models.Transaction, error)
}

// GetParser returns the parser registered for the given broker source.
func GetParser(source string) (Parser, error) {
	switch strings.ToLower(source) {
	case "robinhood":
		return robinhood.NewParser(), nil
	default:
		return nil, fmt.Errorf("unsupported broker source: %q", source)
	}
}
