package reportfile_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/wibowo/expense-report/internal/expense"
	"github.com/wibowo/expense-report/internal/reportfile"
	"github.com/wibowo/expense-report/internal/taxonomy"
)

func TestReportFile(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report File Suite")
}

func sampleForms() []*expense.ExpenseForm {
	return []*expense.ExpenseForm{
		{
			MasterGroup: taxonomy.GroupTravel,
			Subgroup:    taxonomy.SubgroupHospitality,
			Currency:    "GBP",
			Amount:      decimal.RequireFromString("120.50"),
			Date:        time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			Status:      taxonomy.StatusApproved,
			Comments:    "hotel night",
		},
		{
			MasterGroup: taxonomy.GroupOfficeSupplies,
			Subgroup:    taxonomy.SubgroupStationery,
			Currency:    "INR",
			Amount:      decimal.RequireFromString("9.99"),
			Date:        time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
			Status:      taxonomy.StatusPending,
		},
	}
}

var _ = Describe("ReportFile", func() {
	Describe("NormalizeFormat", func() {
		It("defaults empty to csv and lower-cases the rest", func() {
			format, err := reportfile.NormalizeFormat("")
			Expect(err).ToNot(HaveOccurred())
			Expect(format).To(Equal(reportfile.FormatCSV))

			format, err = reportfile.NormalizeFormat(" XLSX ")
			Expect(err).ToNot(HaveOccurred())
			Expect(format).To(Equal(reportfile.FormatXLSX))
		})

		It("rejects unsupported formats", func() {
			_, err := reportfile.NormalizeFormat("pdf")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("FileName", func() {
		It("sanitizes the title into a safe download name", func() {
			Expect(reportfile.FileName("Q1 Travel / 2026", "csv")).To(Equal("Q1_Travel__2026.csv"))
			Expect(reportfile.FileName("???", "json")).To(Equal("expense_report.json"))
		})
	})

	Describe("CSV", func() {
		It("writes display labels under the fixed header", func() {
			data, err := reportfile.Export(reportfile.FormatCSV, sampleForms())
			Expect(err).ToNot(HaveOccurred())

			body := string(data)
			Expect(body).To(HavePrefix("Master Group,Subgroup,Currency,Amount,Date,Status,Comments\n"))
			Expect(body).To(ContainSubstring("Travel,Hospitality Expense,GBP,120.50,2026-01-10,Approved,hotel night"))
			Expect(body).To(ContainSubstring("Office Supplies,Stationery,INR,9.99,2026-01-12,Pending,"))
		})

		It("round-trips through import", func() {
			data, err := reportfile.Export(reportfile.FormatCSV, sampleForms())
			Expect(err).ToNot(HaveOccurred())

			rows, err := reportfile.Import(reportfile.FormatCSV, data)
			Expect(err).ToNot(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].MasterGroup).To(Equal(taxonomy.GroupTravel))
			Expect(rows[0].Subgroup).To(Equal(taxonomy.SubgroupHospitality))
			Expect(rows[0].Amount.StringFixed(2)).To(Equal("120.50"))
			Expect(rows[0].Status).To(Equal(taxonomy.StatusApproved))
			Expect(rows[1].Status).To(Equal(taxonomy.StatusPending))
		})

		It("accepts internal codes as well as labels", func() {
			file := []byte("TRAVEL,FOOD,USD,10.00,2026-02-01,APPROVED,ok\n")
			rows, err := reportfile.Import(reportfile.FormatCSV, file)
			Expect(err).ToNot(HaveOccurred())
			Expect(rows[0].Subgroup).To(Equal(taxonomy.SubgroupFood))
		})

		It("reports the offending row on bad data", func() {
			file := []byte("Master Group,Subgroup,Currency,Amount,Date,Status,Comments\n" +
				"Travel,Food Expense,USD,10.00,2026-02-01,,\n" +
				"Travel,Food Expense,XYZ,10.00,2026-02-01,,\n")
			_, err := reportfile.Import(reportfile.FormatCSV, file)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("row 3"))
			Expect(err.Error()).To(ContainSubstring("XYZ"))
		})

		It("rejects a subgroup under the wrong master group", func() {
			file := []byte("Travel,Internet,USD,10.00,2026-02-01,,\n")
			_, err := reportfile.Import(reportfile.FormatCSV, file)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("JSON", func() {
		It("round-trips through import", func() {
			data, err := reportfile.Export(reportfile.FormatJSON, sampleForms())
			Expect(err).ToNot(HaveOccurred())

			rows, err := reportfile.Import(reportfile.FormatJSON, data)
			Expect(err).ToNot(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[1].Currency).To(Equal("INR"))
		})

		It("rejects malformed JSON", func() {
			_, err := reportfile.Import(reportfile.FormatJSON, []byte("{not json"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("XML", func() {
		It("round-trips through import", func() {
			data, err := reportfile.Export(reportfile.FormatXML, sampleForms())
			Expect(err).ToNot(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("<expenses>"))

			rows, err := reportfile.Import(reportfile.FormatXML, data)
			Expect(err).ToNot(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].Date.Format("2006-01-02")).To(Equal("2026-01-10"))
		})
	})

	Describe("XLSX", func() {
		It("round-trips through import", func() {
			data, err := reportfile.Export(reportfile.FormatXLSX, sampleForms())
			Expect(err).ToNot(HaveOccurred())

			rows, err := reportfile.Import(reportfile.FormatXLSX, data)
			Expect(err).ToNot(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].MasterGroup).To(Equal(taxonomy.GroupTravel))
			Expect(rows[1].Amount.StringFixed(2)).To(Equal("9.99"))
		})

		It("rejects bytes that are not a workbook", func() {
			_, err := reportfile.Import(reportfile.FormatXLSX, []byte("plain text"))
			Expect(err).To(HaveOccurred())
		})
	})
})
