package excel

import "time"

// ReaderConfig holds configuration for a report workbook
type ReaderConfig struct {
	FilePath    string   `json:"file_path"`
	Sheet       string   `json:"sheet"`        // empty selects the first sheet
	DateLayouts []string `json:"date_layouts"` // tried in order
}

// DefaultReaderConfig returns sensible defaults for report files
func DefaultReaderConfig(filePath string) ReaderConfig {
	return ReaderConfig{
		FilePath: filePath,
		DateLayouts: []string{
			"2006-01-02",
			time.RFC3339,
			"2006-01-02 15:04:05",
			"01/02/2006",
			"01-02-06",
		},
	}
}
