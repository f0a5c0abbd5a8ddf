package excel

import (
	"time"

	sheetorm "github.com/ideamans/go-sheetorm"
)

// Config holds configuration for Excel adapter
type Config struct {
	FilePath     string // Path to the Excel file
	DefaultSheet string // Sheet used by addresses without a sheet part; the active sheet when empty
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return ErrMissingFilePath
	}
	return nil
}

// DefaultClientConfig returns the recommended client configuration for Excel files.
// Local files do not fail transiently, so reads are not retried.
func DefaultClientConfig() *sheetorm.Config {
	return &sheetorm.Config{
		ReadRetries:   0,
		RetryInterval: 100 * time.Millisecond,
	}
}
