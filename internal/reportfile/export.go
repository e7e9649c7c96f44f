// Package reportfile renders an expense report to the download formats the
// client offers, and parses the same formats back for import. CSV, JSON and
// XML carry display labels rather than internal codes so the files read well
// when opened directly.
package reportfile

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/wibowo/expense-report/internal"
	"github.com/wibowo/expense-report/internal/expense"
	"github.com/wibowo/expense-report/internal/taxonomy"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatXLSX = "xlsx"
)

const dateLayout = "2006-01-02"

var exportHeaders = []string{"Master Group", "Subgroup", "Currency", "Amount", "Date", "Status", "Comments"}

var contentTypes = map[string]string{
	FormatCSV:  "text/csv",
	FormatJSON: "application/json",
	FormatXML:  "application/xml",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// NormalizeFormat resolves the ?format= query value. Empty defaults to CSV.
func NormalizeFormat(raw string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	if format == "" {
		return FormatCSV, nil
	}
	if _, ok := contentTypes[format]; !ok {
		return "", internal.NewValidationError(
			fmt.Sprintf("unsupported format %q, expected csv, json, xml or xlsx", raw),
			internal.ErrCodeUnsupportedFormat,
		)
	}
	return format, nil
}

func ContentType(format string) string {
	return contentTypes[format]
}

// FileName builds the download name from the report title, keeping it safe
// for a Content-Disposition header.
func FileName(titleName, format string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '_'
		default:
			return -1
		}
	}, strings.TrimSpace(titleName))
	if name == "" {
		name = "expense_report"
	}
	return name + "." + format
}

// xmlRecord mirrors one exported line item.
type xmlRecord struct {
	MasterGroup string `xml:"master_group" json:"master_group"`
	Subgroup    string `xml:"subgroup" json:"subgroup"`
	Currency    string `xml:"currency" json:"currency"`
	Amount      string `xml:"amount" json:"amount"`
	Date        string `xml:"date" json:"date"`
	Status      string `xml:"status" json:"status"`
	Comments    string `xml:"comments" json:"comments"`
}

type xmlDocument struct {
	XMLName xml.Name    `xml:"expenses"`
	Records []xmlRecord `xml:"expense"`
}

func toRecord(form *expense.ExpenseForm) xmlRecord {
	return xmlRecord{
		MasterGroup: taxonomy.GroupLabel(form.MasterGroup),
		Subgroup:    taxonomy.SubgroupLabel(form.Subgroup),
		Currency:    form.Currency,
		Amount:      form.Amount.StringFixed(2),
		Date:        form.Date.Format(dateLayout),
		Status:      taxonomy.StatusLabel(form.Status),
		Comments:    form.Comments,
	}
}

// Export renders the forms in the requested format.
func Export(format string, forms []*expense.ExpenseForm) ([]byte, error) {
	switch format {
	case FormatCSV:
		return exportCSV(forms)
	case FormatJSON:
		return exportJSON(forms)
	case FormatXML:
		return exportXML(forms)
	case FormatXLSX:
		return exportXLSX(forms)
	default:
		return nil, internal.NewValidationError(
			fmt.Sprintf("unsupported format %q", format),
			internal.ErrCodeUnsupportedFormat,
		)
	}
}

func exportCSV(forms []*expense.ExpenseForm) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeaders); err != nil {
		return nil, err
	}
	for _, form := range forms {
		rec := toRecord(form)
		row := []string{rec.MasterGroup, rec.Subgroup, rec.Currency, rec.Amount, rec.Date, rec.Status, rec.Comments}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportJSON(forms []*expense.ExpenseForm) ([]byte, error) {
	records := make([]xmlRecord, 0, len(forms))
	for _, form := range forms {
		records = append(records, toRecord(form))
	}
	return json.MarshalIndent(records, "", "  ")
}

func exportXML(forms []*expense.ExpenseForm) ([]byte, error) {
	doc := xmlDocument{Records: make([]xmlRecord, 0, len(forms))}
	for _, form := range forms {
		doc.Records = append(doc.Records, toRecord(form))
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

const sheetName = "Expenses"

func exportXLSX(forms []*expense.ExpenseForm) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for col, header := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, err
		}
	}

	for i, form := range forms {
		rec := toRecord(form)
		values := []string{rec.MasterGroup, rec.Subgroup, rec.Currency, rec.Amount, rec.Date, rec.Status, rec.Comments}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
