package expense

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wibowo/expense-report/internal"
	"github.com/wibowo/expense-report/internal/taxonomy"
)

const dateLayout = "2006-01-02"

// StagedFile is an uploaded attachment held in memory until the form it
// belongs to has been validated and stored.
type StagedFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// CreateFormDTO carries the multipart fields of POST /api/expense-forms/.
type CreateFormDTO struct {
	ExpenseTitleID int64
	MasterGroup    string
	Subgroup       string
	Currency       string
	Amount         string
	Date           string
	Comments       string
	Files          []StagedFile
}

// UpdateFormDTO carries PATCH /api/expense-forms/{id}/ fields. Nil pointers
// mean "leave unchanged".
type UpdateFormDTO struct {
	MasterGroup *string `json:"master_group,omitempty"`
	Subgroup    *string `json:"subgroup,omitempty"`
	Currency    *string `json:"currency,omitempty"`
	Amount      *string `json:"amount,omitempty"`
	Date        *string `json:"date,omitempty"`
}

// UpdateStatusDTO carries PATCH /api/expense-forms/{id}/update_status/.
type UpdateStatusDTO struct {
	Status   string `json:"status"`
	Comments string `json:"comments"`
}

// BulkUpdateDTO carries POST /api/expense-forms/bulk_update/.
type BulkUpdateDTO struct {
	ExpenseIDs []int64 `json:"expense_ids"`
	Status     string  `json:"status"`
	Comments   string  `json:"comments"`
}

// DeleteAttachmentDTO carries DELETE /api/expense-forms/{id}/delete_attachment/.
type DeleteAttachmentDTO struct {
	AttachmentID int64 `json:"attachment_id"`
}

// FormResponse is the wire shape of a form; amount and date are formatted the
// way the browser client renders them.
type FormResponse struct {
	ID             int64                `json:"id"`
	ExpenseTitleID int64                `json:"expense_title_id"`
	MasterGroup    string               `json:"master_group"`
	Subgroup       string               `json:"subgroup"`
	Currency       string               `json:"currency"`
	Amount         string               `json:"amount"`
	Date           string               `json:"date"`
	Status         string               `json:"status"`
	Comments       string               `json:"comments"`
	Attachments    []AttachmentResponse `json:"attachments"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

type AttachmentResponse struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	URL      string `json:"url"`
}

func (f *ExpenseForm) ToResponse() FormResponse {
	resp := FormResponse{
		ID:             f.ID,
		ExpenseTitleID: f.ExpenseTitleID,
		MasterGroup:    f.MasterGroup,
		Subgroup:       f.Subgroup,
		Currency:       f.Currency,
		Amount:         f.Amount.StringFixed(2),
		Date:           f.Date.Format(dateLayout),
		Status:         f.Status,
		Comments:       f.Comments,
		Attachments:    make([]AttachmentResponse, 0, len(f.Attachments)),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
	for _, att := range f.Attachments {
		resp.Attachments = append(resp.Attachments, AttachmentResponse{
			ID:       att.ID,
			FileName: att.FileName,
			URL:      att.URL,
		})
	}
	return resp
}

func ToResponseSlice(forms []*ExpenseForm) []FormResponse {
	out := make([]FormResponse, len(forms))
	for i, f := range forms {
		out[i] = f.ToResponse()
	}
	return out
}

// ValidateAmount enforces the amount invariant: required, numeric, greater
// than zero, at most two decimal places. Each failure has its own message.
func ValidateAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, internal.NewValidationError("amount is required", internal.ErrCodeInvalidAmount)
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, internal.NewValidationError("amount must be a number", internal.ErrCodeInvalidAmount)
	}
	if !amount.IsPositive() {
		return decimal.Zero, internal.NewValidationError("amount must be greater than 0", internal.ErrCodeInvalidAmount)
	}
	if amount.Exponent() < -2 {
		return decimal.Zero, internal.NewValidationError("amount must have at most 2 decimal places", internal.ErrCodeInvalidAmount)
	}
	return amount, nil
}

func validateDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, internal.NewValidationError("date is required", internal.ErrCodeInvalidDate)
	}
	date, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return time.Time{}, internal.NewValidationError("date must be in YYYY-MM-DD format", internal.ErrCodeInvalidDate)
	}
	return date, nil
}

func validateCategory(masterGroup, subgroup string) error {
	if !taxonomy.IsValidMasterGroup(masterGroup) {
		return internal.NewValidationError(fmt.Sprintf("unknown master group %q", masterGroup), internal.ErrCodeInvalidCategory)
	}
	if !taxonomy.IsValidPair(masterGroup, subgroup) {
		return internal.NewValidationError(
			fmt.Sprintf("subgroup %q does not belong to %s", subgroup, taxonomy.GroupLabel(masterGroup)),
			internal.ErrCodeInvalidCategory,
		)
	}
	return nil
}

func validateCurrency(currency string) error {
	if !taxonomy.IsValidCurrency(currency) {
		return internal.NewValidationError(fmt.Sprintf("unknown currency %q", currency), internal.ErrCodeInvalidCurrency)
	}
	return nil
}

// Validate checks every field and returns the first failure. The subgroup
// default rule applies beforehand: an empty subgroup resolves to the master
// group's first option.
func (dto *CreateFormDTO) Validate() (decimal.Decimal, time.Time, error) {
	if dto.ExpenseTitleID <= 0 {
		return decimal.Zero, time.Time{}, internal.NewValidationError("expense_title_id is required", internal.ErrCodeValidationFailed)
	}
	if dto.Subgroup == "" {
		dto.Subgroup = taxonomy.FirstSubgroup(dto.MasterGroup)
	}
	if err := validateCategory(dto.MasterGroup, dto.Subgroup); err != nil {
		return decimal.Zero, time.Time{}, err
	}
	if err := validateCurrency(dto.Currency); err != nil {
		return decimal.Zero, time.Time{}, err
	}
	amount, err := ValidateAmount(dto.Amount)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	date, err := validateDate(dto.Date)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	return amount, date, nil
}

// Apply merges the patch into the form, revalidating what changed. Changing
// the master group resets the subgroup to the new group's first option unless
// the patch names a valid one.
func (dto *UpdateFormDTO) Apply(form *ExpenseForm) error {
	if dto.MasterGroup != nil {
		group := *dto.MasterGroup
		if !taxonomy.IsValidMasterGroup(group) {
			return internal.NewValidationError(fmt.Sprintf("unknown master group %q", group), internal.ErrCodeInvalidCategory)
		}
		form.MasterGroup = group
		form.Subgroup = taxonomy.FirstSubgroup(group)
	}
	if dto.Subgroup != nil {
		if err := validateCategory(form.MasterGroup, *dto.Subgroup); err != nil {
			return err
		}
		form.Subgroup = *dto.Subgroup
	}
	if dto.Currency != nil {
		if err := validateCurrency(*dto.Currency); err != nil {
			return err
		}
		form.Currency = *dto.Currency
	}
	if dto.Amount != nil {
		amount, err := ValidateAmount(*dto.Amount)
		if err != nil {
			return err
		}
		form.Amount = amount
	}
	if dto.Date != nil {
		date, err := validateDate(*dto.Date)
		if err != nil {
			return err
		}
		form.Date = date
	}
	return nil
}

func (dto *BulkUpdateDTO) Validate() error {
	if len(dto.ExpenseIDs) == 0 {
		return internal.NewValidationError("expense_ids is required", internal.ErrCodeValidationFailed)
	}
	if strings.TrimSpace(dto.Status) == "" {
		return internal.NewValidationError("status is required", internal.ErrCodeInvalidStatus)
	}
	return nil
}
