package title

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wibowo/expense-report/internal"
	"github.com/wibowo/expense-report/internal/auth"
	"github.com/wibowo/expense-report/internal/core/events"
	"github.com/wibowo/expense-report/internal/expense"
	"github.com/wibowo/expense-report/internal/reportfile"
	"github.com/wibowo/expense-report/internal/storage"
	"github.com/wibowo/expense-report/internal/taxonomy"
)

// Repository defines the data access methods for expense titles.
type Repository interface {
	Create(title *ExpenseTitle) error
	GetByID(id int64) (*ExpenseTitle, error)
	ListAll() ([]*ExpenseTitle, error)
	ListByUser(userID int64) ([]*ExpenseTitle, error)
	// StatusesByTitle returns the form statuses grouped per title for the
	// given IDs. Titles without forms are absent from the map.
	StatusesByTitle(titleIDs []int64) (map[int64][]string, error)
	// DeleteCascade removes the title, its forms and their attachment rows in
	// one transaction, returning the storage keys of the removed attachments
	// and how many forms went with them.
	DeleteCascade(titleID int64) (storageKeys []string, formCount int, err error)
	// SearchByName matches titles whose name contains the query. A non-zero
	// userID restricts matches to that owner.
	SearchByName(query string, userID int64, limit int) ([]*ExpenseTitle, error)
	GetByIDs(ids []int64) ([]*ExpenseTitle, error)
}

const searchLimit = 50

// Service handles reports: the titles themselves plus the cross-cutting
// operations that span a whole report (copy, delete, search, export, import).
type Service struct {
	repo        Repository
	expenseRepo expense.Repository
	store       storage.BlobStore
	bus         *events.EventBus
	logger      *slog.Logger
}

func NewService(repo Repository, expenseRepo expense.Repository, store storage.BlobStore, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		expenseRepo: expenseRepo,
		store:       store,
		bus:         bus,
		logger:      logger,
	}
}

// ListTitles returns the caller's reports with their derived statuses, or all
// reports for admins.
func (s *Service) ListTitles(user *auth.User) ([]TitleResponse, error) {
	var (
		titles []*ExpenseTitle
		err    error
	)
	if user.IsAdmin {
		titles, err = s.repo.ListAll()
	} else {
		titles, err = s.repo.ListByUser(user.ID)
	}
	if err != nil {
		s.logger.Error("failed to list expense titles", "error", err, "user_id", user.ID)
		return nil, internal.NewInternalError("failed to list expense titles", err)
	}
	return s.toResponses(titles)
}

func (s *Service) CreateTitle(user *auth.User, dto CreateTitleDTO) (*TitleResponse, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	title := &ExpenseTitle{
		Name:      strings.TrimSpace(dto.Name),
		UserID:    user.ID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.repo.Create(title); err != nil {
		s.logger.Error("failed to create expense title", "error", err, "user_id", user.ID)
		return nil, internal.NewInternalError("failed to create expense title", err)
	}

	s.logger.Info("expense title created", "title_id", title.ID, "user_id", user.ID, "name", title.Name)
	resp := title.ToResponse(nil)
	return &resp, nil
}

// GetTitle loads a report the caller may see.
func (s *Service) GetTitle(user *auth.User, titleID int64) (*ExpenseTitle, error) {
	title, err := s.repo.GetByID(titleID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin && title.UserID != user.ID {
		s.logger.Warn("unauthorized title access", "title_id", titleID, "user_id", user.ID)
		return nil, ErrUnauthorizedAccess
	}
	return title, nil
}

// DeleteTitle removes a report and everything underneath it. The rows go in
// one transaction; attachment blobs are deleted best effort afterwards, so a
// storage failure never resurrects the report. Non-admin owners cannot delete
// a report while any form in it is approved or in review, the same lock that
// guards per-form deletion.
func (s *Service) DeleteTitle(ctx context.Context, user *auth.User, titleID int64) error {
	if _, err := s.GetTitle(user, titleID); err != nil {
		return err
	}

	if !user.IsAdmin {
		statuses, err := s.repo.StatusesByTitle([]int64{titleID})
		if err != nil {
			s.logger.Error("failed to load form statuses", "error", err, "title_id", titleID)
			return internal.NewInternalError("failed to delete expense title", err)
		}
		for _, status := range statuses[titleID] {
			if status == taxonomy.StatusApproved || status == taxonomy.StatusSendForApproval {
				return expense.ErrFormLocked
			}
		}
	}

	storageKeys, formCount, err := s.repo.DeleteCascade(titleID)
	if err != nil {
		s.logger.Error("failed to delete expense title", "error", err, "title_id", titleID)
		return internal.NewInternalError("failed to delete expense title", err)
	}

	for _, key := range storageKeys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Error("failed to delete attachment blob", "error", err, "key", key)
		}
	}

	if s.bus != nil {
		s.bus.Publish(context.Background(), events.NewTitleDeletedEvent(titleID, formCount))
	}

	s.logger.Info("expense title deleted",
		"title_id", titleID,
		"user_id", user.ID,
		"forms_removed", formCount,
		"blobs_removed", len(storageKeys))
	return nil
}

// CopyTitle deep-copies a report: a new title owned by the caller, every form
// duplicated with status reset to PENDING and comments cleared, and every
// attachment copied to a fresh storage key.
func (s *Service) CopyTitle(ctx context.Context, user *auth.User, titleID int64) (*TitleResponse, error) {
	source, err := s.GetTitle(user, titleID)
	if err != nil {
		return nil, err
	}

	forms, err := s.expenseRepo.ListByTitle(titleID)
	if err != nil {
		s.logger.Error("failed to load forms for copy", "error", err, "title_id", titleID)
		return nil, internal.NewInternalError("failed to copy expense title", err)
	}

	copied := &ExpenseTitle{
		Name:      fmt.Sprintf("Copy of %s", source.Name),
		UserID:    user.ID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.repo.Create(copied); err != nil {
		return nil, internal.NewInternalError("failed to copy expense title", err)
	}

	statuses := make([]string, 0, len(forms))
	for _, form := range forms {
		newForm := &expense.ExpenseForm{
			ExpenseTitleID: copied.ID,
			UserID:         user.ID,
			MasterGroup:    form.MasterGroup,
			Subgroup:       form.Subgroup,
			Currency:       form.Currency,
			Amount:         form.Amount,
			Date:           form.Date,
			Status:         taxonomy.StatusPending,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := s.expenseRepo.Create(newForm); err != nil {
			return nil, internal.NewInternalError("failed to copy expense form", err)
		}

		for _, att := range form.Attachments {
			newKey := storage.NewObjectKey(att.FileName)
			url, err := s.store.Copy(ctx, att.StorageKey, newKey)
			if err != nil {
				return nil, err
			}
			newAtt := &expense.Attachment{
				ExpenseFormID: newForm.ID,
				FileName:      att.FileName,
				StorageKey:    newKey,
				URL:           url,
				CreatedAt:     time.Now(),
			}
			if err := s.expenseRepo.AddAttachment(newAtt); err != nil {
				return nil, internal.NewInternalError("failed to copy attachment", err)
			}
		}
		statuses = append(statuses, newForm.Status)
	}

	s.logger.Info("expense title copied",
		"source_title_id", titleID,
		"new_title_id", copied.ID,
		"forms_copied", len(forms),
		"user_id", user.ID)

	resp := copied.ToResponse(statuses)
	return &resp, nil
}

// Search matches reports by name and by the categories of the forms inside
// them, deduplicated. Ownership scoping happens in the queries so the result
// limit counts only rows the caller may see.
func (s *Service) Search(user *auth.User, query string) ([]TitleResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []TitleResponse{}, nil
	}

	var scopeID int64
	if !user.IsAdmin {
		scopeID = user.ID
	}

	byName, err := s.repo.SearchByName(query, scopeID, searchLimit)
	if err != nil {
		s.logger.Error("title search failed", "error", err, "query", query)
		return nil, internal.NewInternalError("search failed", err)
	}

	byCategory, err := s.expenseRepo.SearchByCategory(query, scopeID, searchLimit)
	if err != nil {
		s.logger.Error("category search failed", "error", err, "query", query)
		return nil, internal.NewInternalError("search failed", err)
	}

	seen := make(map[int64]bool, len(byName))
	matched := make([]*ExpenseTitle, 0, len(byName))
	for _, title := range byName {
		seen[title.ID] = true
		matched = append(matched, title)
	}

	var titleIDs []int64
	for _, form := range byCategory {
		if !seen[form.ExpenseTitleID] {
			seen[form.ExpenseTitleID] = true
			titleIDs = append(titleIDs, form.ExpenseTitleID)
		}
	}
	fromForms, err := s.repo.GetByIDs(titleIDs)
	if err != nil {
		s.logger.Error("title lookup failed", "error", err, "query", query)
		return nil, internal.NewInternalError("search failed", err)
	}
	matched = append(matched, fromForms...)

	return s.toResponses(matched)
}

// ExportFile renders a report's forms in the requested format, returning the
// download name, content type and file bytes.
func (s *Service) ExportFile(user *auth.User, titleID int64, rawFormat string) (string, string, []byte, error) {
	format, err := reportfile.NormalizeFormat(rawFormat)
	if err != nil {
		return "", "", nil, err
	}

	title, err := s.GetTitle(user, titleID)
	if err != nil {
		return "", "", nil, err
	}

	forms, err := s.expenseRepo.ListByTitle(titleID)
	if err != nil {
		s.logger.Error("failed to load forms for export", "error", err, "title_id", titleID)
		return "", "", nil, internal.NewInternalError("failed to export expense title", err)
	}

	data, err := reportfile.Export(format, forms)
	if err != nil {
		s.logger.Error("export rendering failed", "error", err, "title_id", titleID, "format", format)
		return "", "", nil, internal.NewInternalError("failed to export expense title", err)
	}

	s.logger.Info("expense title exported", "title_id", titleID, "format", format, "forms", len(forms))
	return reportfile.FileName(title.Name, format), reportfile.ContentType(format), data, nil
}

// ImportFile creates a new report from an uploaded file. The whole file is
// parsed and validated before any row is written, so a bad row imports
// nothing.
func (s *Service) ImportFile(user *auth.User, name, rawFormat string, data []byte) (*TitleResponse, error) {
	format, err := reportfile.NormalizeFormat(rawFormat)
	if err != nil {
		return nil, err
	}

	rows, err := reportfile.Import(format, data)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("Imported report %s", time.Now().Format("2006-01-02"))
	}

	title := &ExpenseTitle{
		Name:      strings.TrimSpace(name),
		UserID:    user.ID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.repo.Create(title); err != nil {
		return nil, internal.NewInternalError("failed to create expense title", err)
	}

	statuses := make([]string, 0, len(rows))
	for _, row := range rows {
		form := &expense.ExpenseForm{
			ExpenseTitleID: title.ID,
			UserID:         user.ID,
			MasterGroup:    row.MasterGroup,
			Subgroup:       row.Subgroup,
			Currency:       row.Currency,
			Amount:         row.Amount,
			Date:           row.Date,
			Status:         row.Status,
			Comments:       row.Comments,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}
		if err := s.expenseRepo.Create(form); err != nil {
			return nil, internal.NewInternalError("failed to import expense form", err)
		}
		statuses = append(statuses, form.Status)
	}

	s.logger.Info("expense title imported",
		"title_id", title.ID,
		"format", format,
		"forms", len(rows),
		"user_id", user.ID)

	resp := title.ToResponse(statuses)
	return &resp, nil
}

func (s *Service) toResponses(titles []*ExpenseTitle) ([]TitleResponse, error) {
	ids := make([]int64, len(titles))
	for i, t := range titles {
		ids[i] = t.ID
	}
	statusesByTitle, err := s.repo.StatusesByTitle(ids)
	if err != nil {
		s.logger.Error("failed to load form statuses", "error", err)
		return nil, internal.NewInternalError("failed to load expense titles", err)
	}

	out := make([]TitleResponse, len(titles))
	for i, t := range titles {
		out[i] = t.ToResponse(statusesByTitle[t.ID])
	}
	return out, nil
}
