package googlesheets

import (
	"time"

	sheetorm "github.com/ideamans/go-sheetorm"
)

// Config represents configuration specific to Google Sheets adapter
type Config struct {
	SpreadsheetID string
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.SpreadsheetID == "" {
		return ErrMissingSpreadsheetID
	}
	return nil
}

// DefaultClientConfig returns the recommended client configuration for Google Sheets.
// Reads are retried since the API rate limits bursts.
func DefaultClientConfig() *sheetorm.Config {
	return &sheetorm.Config{
		ReadRetries:   3,
		RetryInterval: 500 * time.Millisecond,
	}
}
