package expense

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wibowo/expense-report/internal"
	"github.com/wibowo/expense-report/internal/taxonomy"
)

// ExpenseForm is one expense line item under a title.
type ExpenseForm struct {
	ID             int64           `json:"id" gorm:"primaryKey"`
	ExpenseTitleID int64           `json:"expense_title_id" gorm:"column:expense_title_id;not null;index"`
	UserID         int64           `json:"user_id" gorm:"column:user_id;not null"`
	MasterGroup    string          `json:"master_group" gorm:"column:master_group;not null"`
	Subgroup       string          `json:"subgroup" gorm:"not null"`
	Currency       string          `json:"currency" gorm:"not null"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(10,2);not null"`
	Date           time.Time       `json:"date" gorm:"type:date;not null"`
	Status         string          `json:"status" gorm:"default:PENDING"`
	Comments       string          `json:"comments"`
	Attachments    []Attachment    `json:"attachments" gorm:"foreignKey:ExpenseFormID"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (ExpenseForm) TableName() string {
	return "expense_forms"
}

// Attachment is a file stored in the external object store. Deletion is
// always a hard delete through the dedicated endpoint, never implicit.
type Attachment struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	ExpenseFormID int64     `json:"expense_form_id" gorm:"column:expense_form_id;not null;index"`
	FileName      string    `json:"file_name" gorm:"column:file_name;not null"`
	StorageKey    string    `json:"-" gorm:"column:storage_key;not null"`
	URL           string    `json:"url" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}

var (
	ErrFormNotFound       = internal.NewNotFoundError("expense form not found", internal.ErrCodeFormNotFound)
	ErrTitleNotFound      = internal.NewNotFoundError("expense title not found", internal.ErrCodeTitleNotFound)
	ErrAttachmentNotFound = internal.NewNotFoundError("attachment not found", internal.ErrCodeAttachmentNotFound)
	ErrUnauthorizedAccess = internal.NewForbiddenError("you do not have access to this expense form", internal.ErrCodeUnauthorizedAccess)
	ErrAdminRequired      = internal.NewForbiddenError("admin access required", internal.ErrCodeAdminRequired)
	ErrFormLocked         = internal.NewForbiddenError("locked forms cannot be modified", internal.ErrCodeFormLocked)
	ErrCommentRequired    = internal.NewValidationError("comments are required when approving or rejecting", internal.ErrCodeCommentRequired)
)

// ErrStatusUnchanged reports the "already in that state" guard. The message
// carries the status so the client can show it verbatim.
func ErrStatusUnchanged(status string) *internal.AppError {
	return internal.NewConflictError(
		fmt.Sprintf("expense form is already %s", taxonomy.StatusLabel(status)),
		internal.ErrCodeStatusUnchanged,
	)
}

func ErrInvalidTransition(from, to string) *internal.AppError {
	return internal.NewValidationError(
		fmt.Sprintf("cannot move from %s to %s", taxonomy.StatusLabel(from), taxonomy.StatusLabel(to)),
		internal.ErrCodeInvalidStatus,
	)
}

func ErrDuplicateAttachment(fileName string) *internal.AppError {
	return internal.NewConflictError(
		fmt.Sprintf("an attachment named %q already exists on this form", fileName),
		internal.ErrCodeDuplicateAttachment,
	)
}

// Transition applies the status state machine:
//
//	PENDING -> SEND_FOR_APPROVAL -> APPROVED | REJECTED
//	APPROVED/REJECTED/SEND_FOR_APPROVAL -> PENDING (clears comments)
//	REJECTED <-> APPROVED (admin override)
//
// A transition whose target equals the current status fails before any other
// check so no write ever happens for it. Moving into APPROVED or REJECTED
// requires non-empty comments; moving back to PENDING clears them.
func (f *ExpenseForm) Transition(target, comments string) error {
	target = taxonomy.NormalizeStatus(target)
	if !taxonomy.IsValidStatus(target) {
		return internal.NewValidationError(fmt.Sprintf("invalid status %q", target), internal.ErrCodeInvalidStatus)
	}

	if target == f.Status {
		return ErrStatusUnchanged(f.Status)
	}

	switch target {
	case taxonomy.StatusApproved, taxonomy.StatusRejected:
		if strings.TrimSpace(comments) == "" {
			return ErrCommentRequired
		}
		f.Status = target
		f.Comments = comments
	case taxonomy.StatusSendForApproval:
		if f.Status != taxonomy.StatusPending {
			return ErrInvalidTransition(f.Status, target)
		}
		f.Status = target
	case taxonomy.StatusPending:
		f.Status = target
		f.Comments = ""
	}

	f.UpdatedAt = time.Now()
	return nil
}

// IsLocked reports whether the form is in a state non-admin users may not
// modify or delete.
func (f *ExpenseForm) IsLocked() bool {
	return f.Status == taxonomy.StatusApproved || f.Status == taxonomy.StatusSendForApproval
}

// ResetOnEdit puts an edited form back at the start of the approval cycle.
func (f *ExpenseForm) ResetOnEdit() {
	f.Status = taxonomy.StatusPending
	f.Comments = ""
	f.UpdatedAt = time.Now()
}

// HasAttachmentNamed reports a case-insensitive file name match against the
// form's stored attachments.
func (f *ExpenseForm) HasAttachmentNamed(fileName string) bool {
	for _, att := range f.Attachments {
		if strings.EqualFold(att.FileName, fileName) {
			return true
		}
	}
	return false
}
