package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

var errNoQuotes = errors.New("no quotations available")

// RandomQuote reads the quotations file on every call and picks one entry.
// Each CSV record contributes its first field.
func (service *CoreService) RandomQuote() (string, error) {
	quotes, err := readQuotes(service.config.QuotesPath)
	if err != nil {
		return "", err
	}
	return quotes[rand.IntN(len(quotes))], nil
}

func readQuotes(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open quotations file %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse quotations file %s: %w", path, err)
	}

	quotes := make([]string, 0, len(records))
	for _, record := range records {
		if len(record) == 0 {
			continue
		}
		if quote := strings.TrimSpace(record[0]); quote != "" {
			quotes = append(quotes, quote)
		}
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoQuotes, path)
	}
	return quotes, nil
}
