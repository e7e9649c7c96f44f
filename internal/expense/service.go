package expense

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/wibowo/expense-report/internal"
	"github.com/wibowo/expense-report/internal/auth"
	"github.com/wibowo/expense-report/internal/core/events"
	"github.com/wibowo/expense-report/internal/storage"
	"github.com/wibowo/expense-report/internal/taxonomy"
)

// Repository defines the data access methods for expense forms and their
// attachments.
type Repository interface {
	Create(form *ExpenseForm) error
	GetByID(id int64) (*ExpenseForm, error)
	ListAll() ([]*ExpenseForm, error)
	ListByUser(userID int64) ([]*ExpenseForm, error)
	ListByTitle(titleID int64) ([]*ExpenseForm, error)
	ListByTitleAndUser(titleID, userID int64) ([]*ExpenseForm, error)
	Update(form *ExpenseForm) error
	Delete(id int64) error
	TitleExists(titleID int64) (bool, error)
	AddAttachment(att *Attachment) error
	GetAttachment(attachmentID int64) (*Attachment, error)
	DeleteAttachmentRow(attachmentID int64) error
	// SearchByCategory matches forms by master group or subgroup. A non-zero
	// userID restricts matches to that owner.
	SearchByCategory(query string, userID int64, limit int) ([]*ExpenseForm, error)
}

// Service handles the expense form workflow.
type Service struct {
	repo   Repository
	store  storage.BlobStore
	bus    *events.EventBus
	logger *slog.Logger
}

func NewService(repo Repository, store storage.BlobStore, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		bus:    bus,
		logger: logger,
	}
}

// CreateForm validates and stores a new line item with its staged
// attachments. Duplicate file names inside the batch are rejected before any
// upload happens.
func (s *Service) CreateForm(ctx context.Context, user *auth.User, dto CreateFormDTO) (*ExpenseForm, error) {
	amount, date, err := dto.Validate()
	if err != nil {
		s.logger.Error("form validation failed", "error", err, "user_id", user.ID)
		return nil, err
	}

	exists, err := s.repo.TitleExists(dto.ExpenseTitleID)
	if err != nil {
		return nil, internal.NewInternalError("failed to check expense title", err)
	}
	if !exists {
		return nil, ErrTitleNotFound
	}

	if dup := firstDuplicateName(dto.Files, nil); dup != "" {
		return nil, ErrDuplicateAttachment(dup)
	}

	now := time.Now()
	form := &ExpenseForm{
		ExpenseTitleID: dto.ExpenseTitleID,
		UserID:         user.ID,
		MasterGroup:    dto.MasterGroup,
		Subgroup:       dto.Subgroup,
		Currency:       dto.Currency,
		Amount:         amount,
		Date:           date,
		Status:         taxonomy.StatusPending,
		Comments:       dto.Comments,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(form); err != nil {
		s.logger.Error("failed to create expense form", "error", err, "user_id", user.ID)
		return nil, internal.NewInternalError("failed to create expense form", err)
	}

	for _, file := range dto.Files {
		att, err := s.uploadAttachment(ctx, form.ID, file)
		if err != nil {
			return nil, err
		}
		form.Attachments = append(form.Attachments, *att)
	}

	s.logger.Info("expense form created",
		"form_id", form.ID,
		"title_id", form.ExpenseTitleID,
		"user_id", user.ID,
		"amount", form.Amount.StringFixed(2),
		"attachments", len(form.Attachments))

	return form, nil
}

// ListForms returns forms scoped by role: admins see everything, users see
// their own. A titleID of zero means no title filter.
func (s *Service) ListForms(user *auth.User, titleID int64) ([]*ExpenseForm, error) {
	var (
		forms []*ExpenseForm
		err   error
	)
	switch {
	case titleID > 0 && user.IsAdmin:
		forms, err = s.repo.ListByTitle(titleID)
	case titleID > 0:
		forms, err = s.repo.ListByTitleAndUser(titleID, user.ID)
	case user.IsAdmin:
		forms, err = s.repo.ListAll()
	default:
		forms, err = s.repo.ListByUser(user.ID)
	}
	if err != nil {
		s.logger.Error("failed to list expense forms", "error", err, "user_id", user.ID, "title_id", titleID)
		return nil, internal.NewInternalError("failed to list expense forms", err)
	}
	return forms, nil
}

func (s *Service) GetForm(user *auth.User, formID int64) (*ExpenseForm, error) {
	form, err := s.repo.GetByID(formID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin && form.UserID != user.ID {
		s.logger.Warn("unauthorized form access", "form_id", formID, "user_id", user.ID)
		return nil, ErrUnauthorizedAccess
	}
	return form, nil
}

// UpdateForm edits the form's fields. Any edit restarts the approval cycle:
// status goes back to PENDING and comments are cleared. Non-admin users
// cannot touch locked forms.
func (s *Service) UpdateForm(user *auth.User, formID int64, dto UpdateFormDTO) (*ExpenseForm, error) {
	form, err := s.GetForm(user, formID)
	if err != nil {
		return nil, err
	}

	if !user.IsAdmin && form.IsLocked() {
		return nil, ErrFormLocked
	}

	previousStatus := form.Status
	if err := dto.Apply(form); err != nil {
		return nil, err
	}
	form.ResetOnEdit()

	if err := s.repo.Update(form); err != nil {
		s.logger.Error("failed to update expense form", "error", err, "form_id", formID)
		return nil, internal.NewInternalError("failed to update expense form", err)
	}

	if previousStatus != form.Status {
		s.publishStatusChange(form, previousStatus)
	}

	s.logger.Info("expense form updated", "form_id", formID, "user_id", user.ID, "status", form.Status)
	return form, nil
}

// UpdateStatus drives the admin review transitions, including the REJECTED
// and APPROVED overrides. The "already in that state" guard runs before any
// write.
func (s *Service) UpdateStatus(user *auth.User, formID int64, dto UpdateStatusDTO) (*ExpenseForm, error) {
	if !user.IsAdmin {
		return nil, ErrAdminRequired
	}

	form, err := s.repo.GetByID(formID)
	if err != nil {
		return nil, err
	}

	previousStatus := form.Status
	if err := form.Transition(dto.Status, dto.Comments); err != nil {
		s.logger.Warn("status transition rejected",
			"form_id", formID,
			"from", previousStatus,
			"to", dto.Status,
			"error", err)
		return nil, err
	}

	if err := s.repo.Update(form); err != nil {
		s.logger.Error("failed to persist status change", "error", err, "form_id", formID)
		return nil, internal.NewInternalError("failed to update status", err)
	}

	s.publishStatusChange(form, previousStatus)
	s.logger.Info("expense form status updated",
		"form_id", formID,
		"from", previousStatus,
		"to", form.Status,
		"admin_id", user.ID)

	return form, nil
}

// SendForApproval moves a PENDING form into review. Owners submit their own
// forms; admins may submit any.
func (s *Service) SendForApproval(user *auth.User, formID int64) (*ExpenseForm, error) {
	form, err := s.GetForm(user, formID)
	if err != nil {
		return nil, err
	}

	previousStatus := form.Status
	if err := form.Transition(taxonomy.StatusSendForApproval, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Update(form); err != nil {
		return nil, internal.NewInternalError("failed to send for approval", err)
	}

	s.publishStatusChange(form, previousStatus)
	s.logger.Info("expense form sent for approval", "form_id", formID, "user_id", user.ID)
	return form, nil
}

// RevokeApproval pulls a form back to PENDING, clearing review comments.
// Approved forms can only be revoked by admins.
func (s *Service) RevokeApproval(user *auth.User, formID int64) (*ExpenseForm, error) {
	form, err := s.GetForm(user, formID)
	if err != nil {
		return nil, err
	}

	if !user.IsAdmin && form.Status == taxonomy.StatusApproved {
		return nil, ErrFormLocked
	}

	previousStatus := form.Status
	if err := form.Transition(taxonomy.StatusPending, ""); err != nil {
		return nil, err
	}

	if err := s.repo.Update(form); err != nil {
		return nil, internal.NewInternalError("failed to revoke approval", err)
	}

	s.publishStatusChange(form, previousStatus)
	s.logger.Info("expense form approval revoked", "form_id", formID, "user_id", user.ID)
	return form, nil
}

// BulkResult reports the outcome of a bulk status update. Failures do not
// roll back the forms that already changed.
type BulkResult struct {
	Updated []int64     `json:"updated"`
	Errors  []BulkError `json:"errors"`
}

type BulkError struct {
	ID     int64  `json:"id"`
	Detail string `json:"detail"`
}

// BulkUpdateStatus applies the same transition to every listed form,
// independently. Each form gets the full state machine checks; one failure
// does not stop the rest.
func (s *Service) BulkUpdateStatus(user *auth.User, dto BulkUpdateDTO) (*BulkResult, error) {
	if !user.IsAdmin {
		return nil, ErrAdminRequired
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	result := &BulkResult{Updated: []int64{}, Errors: []BulkError{}}
	for _, id := range dto.ExpenseIDs {
		_, err := s.UpdateStatus(user, id, UpdateStatusDTO{Status: dto.Status, Comments: dto.Comments})
		if err != nil {
			result.Errors = append(result.Errors, BulkError{ID: id, Detail: err.Error()})
			continue
		}
		result.Updated = append(result.Updated, id)
	}

	s.logger.Info("bulk status update finished",
		"admin_id", user.ID,
		"requested", len(dto.ExpenseIDs),
		"updated", len(result.Updated),
		"failed", len(result.Errors))

	return result, nil
}

// DeleteForm removes a line item and its attachment blobs. Blob removal is
// best effort after the row is gone.
func (s *Service) DeleteForm(ctx context.Context, user *auth.User, formID int64) error {
	form, err := s.GetForm(user, formID)
	if err != nil {
		return err
	}

	if !user.IsAdmin && form.IsLocked() {
		return ErrFormLocked
	}

	if err := s.repo.Delete(formID); err != nil {
		s.logger.Error("failed to delete expense form", "error", err, "form_id", formID)
		return internal.NewInternalError("failed to delete expense form", err)
	}

	for _, att := range form.Attachments {
		if err := s.store.Delete(ctx, att.StorageKey); err != nil {
			s.logger.Error("failed to delete attachment blob", "error", err, "attachment_id", att.ID, "key", att.StorageKey)
		}
	}

	s.logger.Info("expense form deleted", "form_id", formID, "user_id", user.ID)
	return nil
}

// AddAttachments uploads files onto an existing form. File names must be
// unique per form, case-insensitively, against both stored and same-batch
// files.
func (s *Service) AddAttachments(ctx context.Context, user *auth.User, formID int64, files []StagedFile) (*ExpenseForm, error) {
	form, err := s.GetForm(user, formID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin && form.IsLocked() {
		return nil, ErrFormLocked
	}
	if len(files) == 0 {
		return nil, internal.NewValidationError("no files provided", internal.ErrCodeValidationFailed)
	}

	if dup := firstDuplicateName(files, form); dup != "" {
		return nil, ErrDuplicateAttachment(dup)
	}

	for _, file := range files {
		att, err := s.uploadAttachment(ctx, form.ID, file)
		if err != nil {
			return nil, err
		}
		form.Attachments = append(form.Attachments, *att)
	}

	s.logger.Info("attachments added", "form_id", formID, "count", len(files))
	return form, nil
}

// DeleteAttachment hard-deletes one attachment: blob first, row second, so a
// storage failure never leaves a row pointing at nothing.
func (s *Service) DeleteAttachment(ctx context.Context, user *auth.User, formID, attachmentID int64) error {
	form, err := s.GetForm(user, formID)
	if err != nil {
		return err
	}
	if !user.IsAdmin && form.IsLocked() {
		return ErrFormLocked
	}

	att, err := s.repo.GetAttachment(attachmentID)
	if err != nil {
		return err
	}
	if att.ExpenseFormID != formID {
		return ErrAttachmentNotFound
	}

	if err := s.store.Delete(ctx, att.StorageKey); err != nil {
		return err
	}

	if err := s.repo.DeleteAttachmentRow(attachmentID); err != nil {
		s.logger.Error("failed to delete attachment row", "error", err, "attachment_id", attachmentID)
		return internal.NewInternalError("failed to delete attachment", err)
	}

	s.logger.Info("attachment deleted", "form_id", formID, "attachment_id", attachmentID, "file_name", att.FileName)
	return nil
}

func (s *Service) uploadAttachment(ctx context.Context, formID int64, file StagedFile) (*Attachment, error) {
	key := storage.NewObjectKey(file.FileName)
	url, err := s.store.Put(ctx, key, file.Data, file.ContentType)
	if err != nil {
		return nil, err
	}

	att := &Attachment{
		ExpenseFormID: formID,
		FileName:      file.FileName,
		StorageKey:    key,
		URL:           url,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.AddAttachment(att); err != nil {
		s.logger.Error("failed to record attachment", "error", err, "form_id", formID, "key", key)
		return nil, internal.NewInternalError("failed to record attachment", err)
	}
	return att, nil
}

func (s *Service) publishStatusChange(form *ExpenseForm, previousStatus string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(context.Background(),
		events.NewStatusChangedEvent(form.ID, form.ExpenseTitleID, previousStatus, form.Status, form.Comments))
}

// firstDuplicateName returns the first file name that collides
// case-insensitively, either within the batch or with the form's stored
// attachments. Empty string means no collision.
func firstDuplicateName(files []StagedFile, form *ExpenseForm) string {
	seen := make(map[string]bool, len(files))
	for _, file := range files {
		lower := strings.ToLower(file.FileName)
		if seen[lower] {
			return file.FileName
		}
		if form != nil && form.HasAttachmentNamed(file.FileName) {
			return file.FileName
		}
		seen[lower] = true
	}
	return ""
}
