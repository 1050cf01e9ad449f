package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"overfitguard/adapters/report"
	"overfitguard/domain/core"
	"overfitguard/internal"
)

// DataReader handles reading report tables from Excel and CSV files
type DataReader struct {
	config   ReaderConfig
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(config ReaderConfig) *DataReader {
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	if len(config.DateLayouts) == 0 {
		config.DateLayouts = DefaultReaderConfig(config.FilePath).DateLayouts
	}
	return &DataReader{
		config:   config,
		fileType: fileType,
		logger:   internal.DefaultLogger.With("excel"),
	}
}

// WithLogger replaces the reader's logger
func (r *DataReader) WithLogger(logger *internal.Logger) *DataReader {
	r.logger = logger.With("excel")
	return r
}

// ReadReport reads the file and maps its columns onto a report.
// Every failure is an ExtractionError naming the file.
func (r *DataReader) ReadReport() (report.Report, error) {
	data, err := r.ReadData()
	if err != nil {
		return report.Report{}, r.extractionError("read file", err)
	}
	rep, err := r.ParseReport(data)
	if err != nil {
		return report.Report{}, r.extractionError("parse columns", err)
	}
	return rep, nil
}

func (r *DataReader) extractionError(reason string, cause error) error {
	return &core.ExtractionError{
		Attempted: []string{r.config.FilePath},
		Reason:    reason,
		Cause:     cause,
	}
}

// ReadData reads data from Excel or CSV files into structured format
func (r *DataReader) ReadData() (*ExcelData, error) {
	r.logger.Debug("reading %s file: %s", r.fileType, r.config.FilePath)

	// Check if file exists
	if _, err := os.Stat(r.config.FilePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.config.FilePath)
	}

	switch r.fileType {
	case "csv":
		return r.readCSVData()
	case "xlsx":
		return r.readExcelData()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelData reads the configured sheet, or the first one
func (r *DataReader) readExcelData() (*ExcelData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	r.logger.Debug("sheet %q read in %.2fms (%d rows)", sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// readCSVData reads CSV data into structured format
func (r *DataReader) readCSVData() (*ExcelData, error) {
	file, err := os.Open(r.config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	r.logger.Debug("CSV file read in %.2fms (%d rows)", float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have at least a header row and one data row")
	}

	return r.processRows(rows)
}

// processRows converts raw string rows into ExcelData format. Headers are
// lower-cased so column lookup is case-insensitive.
func (r *DataReader) processRows(rows [][]string) (*ExcelData, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.ToLower(strings.TrimSpace(header))
	}

	var dataRows []RawRowData
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}

	r.logger.Debug("%s file processed (%d columns, %d rows)", strings.ToUpper(r.fileType), len(headers), len(dataRows))

	return &ExcelData{
		Headers: headers,
		Rows:    dataRows,
	}, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ParseReport maps recognized columns onto a report. Empty numeric cells
// become NaN and are dropped at extraction; unparseable ones are errors.
func (r *DataReader) ParseReport(data *ExcelData) (report.Report, error) {
	var rep report.Report
	found := false

	for _, header := range data.Headers {
		switch {
		case header == ColumnDate:
			dates, err := r.parseDates(data, header)
			if err != nil {
				return report.Report{}, err
			}
			rep.Dates = dates
		case header == ColumnReturns, header == ColumnDailyReturns, header == ColumnEquity:
			col, err := parseColumn(data, header)
			if err != nil {
				return report.Report{}, err
			}
			switch header {
			case ColumnReturns:
				rep.Returns = col
			case ColumnDailyReturns:
				rep.DailyReturns = col
			default:
				rep.Equity = col
			}
			found = true
		case strings.HasPrefix(header, PositionPrefix):
			name := strings.TrimSpace(strings.TrimPrefix(header, PositionPrefix))
			if name == "" {
				return report.Report{}, fmt.Errorf("position column %q has no instrument name", header)
			}
			col, err := parseColumn(data, header)
			if err != nil {
				return report.Report{}, err
			}
			if rep.Positions == nil {
				rep.Positions = make(map[string][]float64)
			}
			rep.Positions[name] = col
			found = true
		default:
			r.logger.Trace("ignoring column %q", header)
		}
	}

	if !found {
		return report.Report{}, fmt.Errorf("no returns, daily_returns, equity or position:<name> column in %v", data.Headers)
	}
	return rep, nil
}

func parseColumn(data *ExcelData, header string) ([]float64, error) {
	out := make([]float64, len(data.Rows))
	for i, row := range data.Rows {
		cell := strings.TrimSuffix(strings.ReplaceAll(row[header], ",", ""), "%")
		if cell == "" {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %q is not a number", header, i+2, row[header])
		}
		if strings.HasSuffix(row[header], "%") {
			v /= 100
		}
		out[i] = v
	}
	return out, nil
}

func (r *DataReader) parseDates(data *ExcelData, header string) ([]time.Time, error) {
	out := make([]time.Time, len(data.Rows))
	for i, row := range data.Rows {
		cell := row[header]
		parsed := false
		for _, layout := range r.config.DateLayouts {
			if d, err := time.Parse(layout, cell); err == nil {
				out[i] = d
				parsed = true
				break
			}
		}
		if !parsed {
			return nil, fmt.Errorf("column %q row %d: %q is not a date", header, i+2, cell)
		}
	}
	return out, nil
}
