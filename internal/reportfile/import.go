package reportfile

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/wibowo/expense-report/internal"
	"github.com/wibowo/expense-report/internal/expense"
	"github.com/wibowo/expense-report/internal/taxonomy"
)

// Row is one parsed import line, already validated against the taxonomy.
// Status defaults to PENDING when the file omits it.
type Row struct {
	MasterGroup string
	Subgroup    string
	Currency    string
	Amount      decimal.Decimal
	Date        time.Time
	Status      string
	Comments    string
}

func importError(detail string) error {
	return internal.NewValidationError(detail, internal.ErrCodeImportFailed)
}

func rowError(row int, detail string) error {
	return importError(fmt.Sprintf("row %d: %s", row, detail))
}

// Import parses a previously exported file back into rows. Errors carry the
// offending row number; the first bad row aborts the whole import so a file
// is never half-applied.
func Import(format string, data []byte) ([]Row, error) {
	switch format {
	case FormatCSV:
		return importCSV(data)
	case FormatJSON:
		return importJSON(data)
	case FormatXML:
		return importXML(data)
	case FormatXLSX:
		return importXLSX(data)
	default:
		return nil, internal.NewValidationError(
			fmt.Sprintf("unsupported format %q", format),
			internal.ErrCodeUnsupportedFormat,
		)
	}
}

// parseRow validates one record's cells. Values may be display labels or the
// internal codes; both resolve.
func parseRow(rowNum int, rec xmlRecord) (Row, error) {
	group, ok := taxonomy.GroupForLabel(rec.MasterGroup)
	if !ok {
		return Row{}, rowError(rowNum, fmt.Sprintf("unknown master group %q", rec.MasterGroup))
	}
	subgroup, ok := taxonomy.SubgroupForLabel(rec.Subgroup)
	if !ok || !taxonomy.IsValidPair(group, subgroup) {
		return Row{}, rowError(rowNum, fmt.Sprintf("subgroup %q does not belong to %s", rec.Subgroup, taxonomy.GroupLabel(group)))
	}

	currency := strings.ToUpper(strings.TrimSpace(rec.Currency))
	if !taxonomy.IsValidCurrency(currency) {
		return Row{}, rowError(rowNum, fmt.Sprintf("unknown currency %q", rec.Currency))
	}

	amount, err := expense.ValidateAmount(rec.Amount)
	if err != nil {
		return Row{}, rowError(rowNum, err.Error())
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(rec.Date))
	if err != nil {
		return Row{}, rowError(rowNum, fmt.Sprintf("date %q must be in YYYY-MM-DD format", rec.Date))
	}

	status := taxonomy.StatusPending
	if strings.TrimSpace(rec.Status) != "" {
		status, ok = taxonomy.StatusForLabel(rec.Status)
		if !ok {
			return Row{}, rowError(rowNum, fmt.Sprintf("unknown status %q", rec.Status))
		}
	}

	return Row{
		MasterGroup: group,
		Subgroup:    subgroup,
		Currency:    currency,
		Amount:      amount,
		Date:        date,
		Status:      status,
		Comments:    rec.Comments,
	}, nil
}

func cellsToRecord(cells []string) xmlRecord {
	get := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}
	return xmlRecord{
		MasterGroup: get(0),
		Subgroup:    get(1),
		Currency:    get(2),
		Amount:      get(3),
		Date:        get(4),
		Status:      get(5),
		Comments:    get(6),
	}
}

// isHeaderRow matches the exported header line so files round-trip whether or
// not the header survived editing.
func isHeaderRow(cells []string) bool {
	return len(cells) > 0 && strings.EqualFold(strings.TrimSpace(cells[0]), exportHeaders[0])
}

func importCSV(data []byte) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	var rows []Row
	lineNum := 0
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, importError(fmt.Sprintf("invalid CSV: %v", err))
		}
		lineNum++
		if lineNum == 1 && isHeaderRow(cells) {
			continue
		}
		row, err := parseRow(lineNum, cellsToRecord(cells))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func importJSON(data []byte) ([]Row, error) {
	var records []xmlRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, importError(fmt.Sprintf("invalid JSON: %v", err))
	}
	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		row, err := parseRow(i+1, rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func importXML(data []byte) ([]Row, error) {
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, importError(fmt.Sprintf("invalid XML: %v", err))
	}
	rows := make([]Row, 0, len(doc.Records))
	for i, rec := range doc.Records {
		row, err := parseRow(i+1, rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func importXLSX(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, importError(fmt.Sprintf("invalid XLSX: %v", err))
	}
	defer f.Close()

	sheet := sheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}
	cellRows, err := f.GetRows(sheet)
	if err != nil {
		return nil, importError(fmt.Sprintf("invalid XLSX: %v", err))
	}

	var rows []Row
	for i, cells := range cellRows {
		if i == 0 && isHeaderRow(cells) {
			continue
		}
		if len(cells) == 0 {
			continue
		}
		row, err := parseRow(i+1, cellsToRecord(cells))
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
