package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wibowo/expense-report/internal/expense"
	"github.com/wibowo/expense-report/internal/taxonomy"
	"github.com/wibowo/expense-report/internal/title"
)

func TestTitleRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TitleRepository Suite")
}

var _ = Describe("TitleRepository", func() {
	var (
		db   *gorm.DB
		repo title.Repository
	)

	addForm := func(titleID int64, status string, keys ...string) {
		form := &expense.ExpenseForm{
			ExpenseTitleID: titleID,
			UserID:         1,
			MasterGroup:    taxonomy.GroupTravel,
			Subgroup:       taxonomy.SubgroupTicket,
			Currency:       "USD",
			Amount:         decimal.RequireFromString("5.00"),
			Date:           time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			Status:         status,
		}
		Expect(db.Create(form).Error).NotTo(HaveOccurred())
		for _, key := range keys {
			Expect(db.Create(&expense.Attachment{
				ExpenseFormID: form.ID,
				FileName:      key,
				StorageKey:    key,
				URL:           "https://store.example.com/" + key,
			}).Error).NotTo(HaveOccurred())
		}
	}

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&title.ExpenseTitle{}, &expense.ExpenseForm{}, &expense.Attachment{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewTitleRepository(db)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("Create and GetByID", func() {
		It("persists and loads a title", func() {
			t := &title.ExpenseTitle{Name: "Q2", UserID: 1}
			Expect(repo.Create(t)).To(Succeed())
			Expect(t.ID).To(BeNumerically(">", 0))

			got, err := repo.GetByID(t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Q2"))
		})

		It("returns the not-found sentinel", func() {
			_, err := repo.GetByID(42)
			Expect(err).To(MatchError(title.ErrTitleNotFound))
		})
	})

	Describe("StatusesByTitle", func() {
		It("groups statuses per title in one pass", func() {
			a := &title.ExpenseTitle{Name: "A", UserID: 1}
			b := &title.ExpenseTitle{Name: "B", UserID: 1}
			Expect(repo.Create(a)).To(Succeed())
			Expect(repo.Create(b)).To(Succeed())

			addForm(a.ID, taxonomy.StatusPending)
			addForm(a.ID, taxonomy.StatusApproved)
			addForm(b.ID, taxonomy.StatusRejected)

			statuses, err := repo.StatusesByTitle([]int64{a.ID, b.ID})
			Expect(err).NotTo(HaveOccurred())
			Expect(statuses[a.ID]).To(ConsistOf(taxonomy.StatusPending, taxonomy.StatusApproved))
			Expect(statuses[b.ID]).To(ConsistOf(taxonomy.StatusRejected))
		})

		It("returns an empty map for no IDs", func() {
			statuses, err := repo.StatusesByTitle(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(statuses).To(BeEmpty())
		})
	})

	Describe("DeleteCascade", func() {
		It("removes the title tree and returns the storage keys", func() {
			t := &title.ExpenseTitle{Name: "Doomed", UserID: 1}
			keep := &title.ExpenseTitle{Name: "Keep", UserID: 1}
			Expect(repo.Create(t)).To(Succeed())
			Expect(repo.Create(keep)).To(Succeed())

			addForm(t.ID, taxonomy.StatusPending, "attachments/a", "attachments/b")
			addForm(t.ID, taxonomy.StatusApproved)
			addForm(keep.ID, taxonomy.StatusPending, "attachments/keep")

			keys, count, err := repo.DeleteCascade(t.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
			Expect(keys).To(ConsistOf("attachments/a", "attachments/b"))

			_, err = repo.GetByID(t.ID)
			Expect(err).To(MatchError(title.ErrTitleNotFound))

			var formCount, attCount int64
			Expect(db.Model(&expense.ExpenseForm{}).Count(&formCount).Error).NotTo(HaveOccurred())
			Expect(db.Model(&expense.Attachment{}).Count(&attCount).Error).NotTo(HaveOccurred())
			Expect(formCount).To(Equal(int64(1)))
			Expect(attCount).To(Equal(int64(1)))
		})

		It("reports a missing title", func() {
			_, _, err := repo.DeleteCascade(404)
			Expect(err).To(MatchError(title.ErrTitleNotFound))
		})
	})

	Describe("SearchByName", func() {
		It("matches case-insensitively with a limit", func() {
			Expect(repo.Create(&title.ExpenseTitle{Name: "Berlin Travel", UserID: 1})).To(Succeed())
			Expect(repo.Create(&title.ExpenseTitle{Name: "Office move", UserID: 1})).To(Succeed())

			titles, err := repo.SearchByName("travel", 0, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(titles).To(HaveLen(1))
			Expect(titles[0].Name).To(Equal("Berlin Travel"))
		})

		It("scopes matches to the given owner", func() {
			Expect(repo.Create(&title.ExpenseTitle{Name: "Paris Travel", UserID: 1})).To(Succeed())
			Expect(repo.Create(&title.ExpenseTitle{Name: "Rome Travel", UserID: 2})).To(Succeed())

			titles, err := repo.SearchByName("travel", 2, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(titles).To(HaveLen(1))
			Expect(titles[0].Name).To(Equal("Rome Travel"))
		})
	})

	Describe("GetByIDs", func() {
		It("loads a batch of titles and skips missing IDs", func() {
			first := &title.ExpenseTitle{Name: "First", UserID: 1}
			second := &title.ExpenseTitle{Name: "Second", UserID: 1}
			Expect(repo.Create(first)).To(Succeed())
			Expect(repo.Create(second)).To(Succeed())

			titles, err := repo.GetByIDs([]int64{first.ID, second.ID, 404})
			Expect(err).NotTo(HaveOccurred())
			Expect(titles).To(HaveLen(2))
		})

		It("returns nothing for an empty ID list", func() {
			titles, err := repo.GetByIDs(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(titles).To(BeEmpty())
		})
	})
})
