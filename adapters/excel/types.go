package excel

// RawRowData represents a row of raw Excel data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents the complete Excel dataset
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Recognized report columns. Position columns are PositionPrefix + name.
const (
	ColumnDate         = "date"
	ColumnReturns      = "returns"
	ColumnDailyReturns = "daily_returns"
	ColumnEquity       = "equity"
	PositionPrefix     = "position:"
)
