package title_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/wibowo/expense-report/internal/auth"
	"github.com/wibowo/expense-report/internal/expense"
	"github.com/wibowo/expense-report/internal/taxonomy"
	"github.com/wibowo/expense-report/internal/title"
)

func TestTitleService(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Title Service Suite")
}

// Mock title repository for testing
type mockTitleRepository struct {
	titles map[int64]*title.ExpenseTitle
	forms  *mockFormRepository
	nextID int64
}

func newMockTitleRepository(forms *mockFormRepository) *mockTitleRepository {
	return &mockTitleRepository{
		titles: make(map[int64]*title.ExpenseTitle),
		forms:  forms,
		nextID: 1,
	}
}

func (m *mockTitleRepository) Create(t *title.ExpenseTitle) error {
	t.ID = m.nextID
	m.nextID++
	m.titles[t.ID] = t
	return nil
}

func (m *mockTitleRepository) GetByID(id int64) (*title.ExpenseTitle, error) {
	t, exists := m.titles[id]
	if !exists {
		return nil, title.ErrTitleNotFound
	}
	return t, nil
}

func (m *mockTitleRepository) ListAll() ([]*title.ExpenseTitle, error) {
	out := make([]*title.ExpenseTitle, 0, len(m.titles))
	for _, t := range m.titles {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTitleRepository) ListByUser(userID int64) ([]*title.ExpenseTitle, error) {
	var out []*title.ExpenseTitle
	for _, t := range m.titles {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTitleRepository) StatusesByTitle(titleIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	for _, id := range titleIDs {
		for _, f := range m.forms.forms {
			if f.ExpenseTitleID == id {
				out[id] = append(out[id], f.Status)
			}
		}
	}
	return out, nil
}

func (m *mockTitleRepository) DeleteCascade(titleID int64) ([]string, int, error) {
	if _, exists := m.titles[titleID]; !exists {
		return nil, 0, title.ErrTitleNotFound
	}
	var keys []string
	count := 0
	for id, f := range m.forms.forms {
		if f.ExpenseTitleID != titleID {
			continue
		}
		count++
		for _, att := range f.Attachments {
			keys = append(keys, att.StorageKey)
		}
		delete(m.forms.forms, id)
	}
	delete(m.titles, titleID)
	return keys, count, nil
}

func (m *mockTitleRepository) SearchByName(query string, userID int64, limit int) ([]*title.ExpenseTitle, error) {
	var out []*title.ExpenseTitle
	for _, t := range m.titles {
		if userID != 0 && t.UserID != userID {
			continue
		}
		if strings.Contains(strings.ToLower(t.Name), strings.ToLower(query)) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTitleRepository) GetByIDs(ids []int64) ([]*title.ExpenseTitle, error) {
	var out []*title.ExpenseTitle
	for _, id := range ids {
		if t, exists := m.titles[id]; exists {
			out = append(out, t)
		}
	}
	return out, nil
}

// Mock form repository covering only what the title service touches
type mockFormRepository struct {
	forms  map[int64]*expense.ExpenseForm
	nextID int64
}

func newMockFormRepository() *mockFormRepository {
	return &mockFormRepository{forms: make(map[int64]*expense.ExpenseForm), nextID: 1}
}

func (m *mockFormRepository) Create(form *expense.ExpenseForm) error {
	form.ID = m.nextID
	m.nextID++
	m.forms[form.ID] = form
	return nil
}

func (m *mockFormRepository) GetByID(id int64) (*expense.ExpenseForm, error) {
	f, exists := m.forms[id]
	if !exists {
		return nil, expense.ErrFormNotFound
	}
	return f, nil
}

func (m *mockFormRepository) ListAll() ([]*expense.ExpenseForm, error) { return nil, nil }

func (m *mockFormRepository) ListByUser(userID int64) ([]*expense.ExpenseForm, error) {
	return nil, nil
}

func (m *mockFormRepository) ListByTitle(titleID int64) ([]*expense.ExpenseForm, error) {
	var out []*expense.ExpenseForm
	for _, f := range m.forms {
		if f.ExpenseTitleID == titleID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *mockFormRepository) ListByTitleAndUser(titleID, userID int64) ([]*expense.ExpenseForm, error) {
	return nil, nil
}

func (m *mockFormRepository) Update(form *expense.ExpenseForm) error {
	m.forms[form.ID] = form
	return nil
}

func (m *mockFormRepository) Delete(id int64) error {
	delete(m.forms, id)
	return nil
}

func (m *mockFormRepository) TitleExists(titleID int64) (bool, error) { return true, nil }

func (m *mockFormRepository) AddAttachment(att *expense.Attachment) error {
	if form, exists := m.forms[att.ExpenseFormID]; exists {
		att.ID = int64(len(form.Attachments) + 1)
		form.Attachments = append(form.Attachments, *att)
	}
	return nil
}

func (m *mockFormRepository) GetAttachment(attachmentID int64) (*expense.Attachment, error) {
	return nil, expense.ErrAttachmentNotFound
}

func (m *mockFormRepository) DeleteAttachmentRow(attachmentID int64) error { return nil }

func (m *mockFormRepository) SearchByCategory(query string, userID int64, limit int) ([]*expense.ExpenseForm, error) {
	var out []*expense.ExpenseForm
	for _, f := range m.forms {
		if userID != 0 && f.UserID != userID {
			continue
		}
		if strings.Contains(strings.ToLower(f.MasterGroup), strings.ToLower(query)) ||
			strings.Contains(strings.ToLower(f.Subgroup), strings.ToLower(query)) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Mock blob store for testing
type mockBlobStore struct {
	objects     map[string]bool
	copies      map[string]string
	deletedKeys []string
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{objects: make(map[string]bool), copies: make(map[string]string)}
}

func (m *mockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.objects[key] = true
	return "https://store.example.com/" + key, nil
}

func (m *mockBlobStore) Copy(ctx context.Context, srcKey, dstKey string) (string, error) {
	m.objects[dstKey] = true
	m.copies[dstKey] = srcKey
	return "https://store.example.com/" + dstKey, nil
}

func (m *mockBlobStore) Delete(ctx context.Context, key string) error {
	m.deletedKeys = append(m.deletedKeys, key)
	delete(m.objects, key)
	return nil
}

var _ = Describe("TitleService", func() {
	var (
		service   *title.Service
		titleRepo *mockTitleRepository
		formRepo  *mockFormRepository
		store     *mockBlobStore
		ctx       context.Context

		owner *auth.User
		other *auth.User
		admin *auth.User
	)

	addForm := func(titleID int64, userID int64, group, subgroup, status string, atts ...expense.Attachment) *expense.ExpenseForm {
		form := &expense.ExpenseForm{
			ExpenseTitleID: titleID,
			UserID:         userID,
			MasterGroup:    group,
			Subgroup:       subgroup,
			Currency:       "USD",
			Amount:         decimal.RequireFromString("10.00"),
			Date:           time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			Status:         status,
			Attachments:    atts,
		}
		Expect(formRepo.Create(form)).To(Succeed())
		return form
	}

	addTitle := func(name string, userID int64) *title.ExpenseTitle {
		t := &title.ExpenseTitle{Name: name, UserID: userID}
		Expect(titleRepo.Create(t)).To(Succeed())
		return t
	}

	BeforeEach(func() {
		formRepo = newMockFormRepository()
		titleRepo = newMockTitleRepository(formRepo)
		store = newMockBlobStore()
		ctx = context.Background()
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = title.NewService(titleRepo, formRepo, store, nil, logger)

		owner = &auth.User{ID: 10, Username: "owner"}
		other = &auth.User{ID: 11, Username: "other"}
		admin = &auth.User{ID: 99, Username: "admin", IsAdmin: true}
	})

	Describe("ListTitles", func() {
		It("derives an aggregate status from the forms", func() {
			t := addTitle("Q1 travel", owner.ID)
			addForm(t.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupTicket, taxonomy.StatusApproved)
			addForm(t.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupFood, taxonomy.StatusRejected)

			titles, err := service.ListTitles(owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(titles).To(HaveLen(1))
			Expect(titles[0].Status).To(Equal(taxonomy.StatusRejected))
			Expect(titles[0].StatusLabel).To(Equal("Rejected"))
			Expect(titles[0].FormCount).To(Equal(2))
		})

		It("reports PENDING for an empty report", func() {
			addTitle("Empty", owner.ID)

			titles, err := service.ListTitles(owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(titles[0].Status).To(Equal(taxonomy.StatusPending))
			Expect(titles[0].FormCount).To(BeZero())
		})

		It("scopes regular users to their own reports", func() {
			addTitle("Mine", owner.ID)
			addTitle("Theirs", other.ID)

			titles, err := service.ListTitles(owner)
			Expect(err).ToNot(HaveOccurred())
			Expect(titles).To(HaveLen(1))
			Expect(titles[0].Name).To(Equal("Mine"))

			all, err := service.ListTitles(admin)
			Expect(err).ToNot(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})
	})

	Describe("CreateTitle", func() {
		It("trims the name and starts with no forms", func() {
			resp, err := service.CreateTitle(owner, title.CreateTitleDTO{Name: "  March trip  "})
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Name).To(Equal("March trip"))
			Expect(resp.Status).To(Equal(taxonomy.StatusPending))
		})

		It("rejects a blank name", func() {
			_, err := service.CreateTitle(owner, title.CreateTitleDTO{Name: "   "})
			Expect(err).To(MatchError(title.ErrNameRequired))
		})
	})

	Describe("DeleteTitle", func() {
		It("cascades rows and cleans up attachment blobs", func() {
			t := addTitle("Doomed", owner.ID)
			addForm(t.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupTicket, taxonomy.StatusPending,
				expense.Attachment{FileName: "a.pdf", StorageKey: "attachments/a"},
				expense.Attachment{FileName: "b.pdf", StorageKey: "attachments/b"})
			addForm(t.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupFood, taxonomy.StatusRejected)

			Expect(service.DeleteTitle(ctx, owner, t.ID)).To(Succeed())
			Expect(titleRepo.titles).To(BeEmpty())
			Expect(formRepo.forms).To(BeEmpty())
			Expect(store.deletedKeys).To(ConsistOf("attachments/a", "attachments/b"))
		})

		It("denies deleting another user's report", func() {
			t := addTitle("Private", owner.ID)
			err := service.DeleteTitle(ctx, other, t.ID)
			Expect(err).To(MatchError(title.ErrUnauthorizedAccess))
		})

		It("blocks owners while a form is approved", func() {
			t := addTitle("Settled", owner.ID)
			addForm(t.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupFood, taxonomy.StatusApproved)

			err := service.DeleteTitle(ctx, owner, t.ID)
			Expect(err).To(MatchError(expense.ErrFormLocked))
			Expect(titleRepo.titles).To(HaveKey(t.ID))
			Expect(formRepo.forms).ToNot(BeEmpty())
		})

		It("blocks owners while a form is in review", func() {
			t := addTitle("Pending review", owner.ID)
			addForm(t.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupTicket, taxonomy.StatusSendForApproval)

			err := service.DeleteTitle(ctx, owner, t.ID)
			Expect(err).To(MatchError(expense.ErrFormLocked))
			Expect(titleRepo.titles).To(HaveKey(t.ID))
		})

		It("lets admins delete any report", func() {
			t := addTitle("Anyone", owner.ID)
			addForm(t.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupFood, taxonomy.StatusApproved)
			Expect(service.DeleteTitle(ctx, admin, t.ID)).To(Succeed())
		})
	})

	Describe("CopyTitle", func() {
		It("deep-copies forms and resets every status to PENDING", func() {
			t := addTitle("Original", owner.ID)
			addForm(t.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupTicket, taxonomy.StatusApproved)
			addForm(t.ID, owner.ID, taxonomy.GroupUtilities, taxonomy.SubgroupInternet, taxonomy.StatusRejected)

			copied, err := service.CopyTitle(ctx, owner, t.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(copied.Name).To(Equal("Copy of Original"))
			Expect(copied.FormCount).To(Equal(2))
			Expect(copied.Status).To(Equal(taxonomy.StatusPending))

			forms, err := formRepo.ListByTitle(copied.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(forms).To(HaveLen(2))
			for _, f := range forms {
				Expect(f.Status).To(Equal(taxonomy.StatusPending))
				Expect(f.Comments).To(BeEmpty())
			}
		})

		It("copies attachment blobs to fresh keys", func() {
			t := addTitle("With files", owner.ID)
			addForm(t.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupTicket, taxonomy.StatusPending,
				expense.Attachment{FileName: "receipt.pdf", StorageKey: "attachments/orig"})

			copied, err := service.CopyTitle(ctx, owner, t.ID)
			Expect(err).ToNot(HaveOccurred())

			forms, err := formRepo.ListByTitle(copied.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(forms[0].Attachments).To(HaveLen(1))
			newKey := forms[0].Attachments[0].StorageKey
			Expect(newKey).ToNot(Equal("attachments/orig"))
			Expect(store.copies[newKey]).To(Equal("attachments/orig"))
		})
	})

	Describe("Search", func() {
		It("matches by report name and by contained category, deduplicated", func() {
			travel := addTitle("Travel week", owner.ID)
			addForm(travel.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupTicket, taxonomy.StatusPending)
			office := addTitle("Office refresh", owner.ID)
			addForm(office.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupFood, taxonomy.StatusPending)

			results, err := service.Search(owner, "travel")
			Expect(err).ToNot(HaveOccurred())
			// "Travel week" matches by name AND category; "Office refresh"
			// only through its TRAVEL form. Each appears once.
			Expect(results).To(HaveLen(2))
		})

		It("returns nothing for an empty query", func() {
			addTitle("Anything", owner.ID)
			results, err := service.Search(owner, "   ")
			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("hides other users' reports from non-admins", func() {
			addTitle("Travel secret", other.ID)
			results, err := service.Search(owner, "travel")
			Expect(err).ToNot(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("ExportFile", func() {
		It("renders CSV with display labels", func() {
			t := addTitle("Q1 Travel", owner.ID)
			form := addForm(t.ID, owner.ID, taxonomy.GroupTravel, taxonomy.SubgroupFood, taxonomy.StatusApproved)
			form.Comments = "client dinner"

			name, contentType, data, err := service.ExportFile(owner, t.ID, "csv")
			Expect(err).ToNot(HaveOccurred())
			Expect(name).To(Equal("Q1_Travel.csv"))
			Expect(contentType).To(Equal("text/csv"))

			body := string(data)
			Expect(body).To(ContainSubstring("Master Group,Subgroup,Currency,Amount,Date,Status,Comments"))
			Expect(body).To(ContainSubstring("Travel,Food Expense,USD,10.00,2026-03-15,Approved,client dinner"))
		})

		It("defaults to CSV when no format is given", func() {
			t := addTitle("Plain", owner.ID)
			name, _, _, err := service.ExportFile(owner, t.ID, "")
			Expect(err).ToNot(HaveOccurred())
			Expect(name).To(HaveSuffix(".csv"))
		})

		It("rejects unknown formats", func() {
			t := addTitle("Plain", owner.ID)
			_, _, _, err := service.ExportFile(owner, t.ID, "pdf")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ImportFile", func() {
		csvFile := []byte("Master Group,Subgroup,Currency,Amount,Date,Status,Comments\n" +
			"Travel,Food Expense,USD,25.50,2026-02-01,Approved,team lunch\n" +
			"Utilities,Internet,EUR,80.00,2026-02-03,,\n")

		It("creates a report with the parsed forms", func() {
			resp, err := service.ImportFile(owner, "Imported", "csv", csvFile)
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Name).To(Equal("Imported"))
			Expect(resp.FormCount).To(Equal(2))

			forms, err := formRepo.ListByTitle(resp.ID)
			Expect(err).ToNot(HaveOccurred())
			Expect(forms).To(HaveLen(2))
		})

		It("imports nothing when any row is invalid", func() {
			bad := []byte("Travel,Food Expense,USD,not-a-number,2026-02-01,,\n")
			_, err := service.ImportFile(owner, "Broken", "csv", bad)
			Expect(err).To(HaveOccurred())
			Expect(titleRepo.titles).To(BeEmpty())
			Expect(formRepo.forms).To(BeEmpty())
		})
	})
})
