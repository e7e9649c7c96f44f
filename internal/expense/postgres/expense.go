package postgres

import (
	"errors"
	"strings"
	"time"

	"github.com/wibowo/expense-report/internal/expense"
	"gorm.io/gorm"
)

// ExpenseRepository implements the expense.Repository interface using GORM
type ExpenseRepository struct {
	db *gorm.DB
}

// NewExpenseRepository creates a new expense form repository
func NewExpenseRepository(db *gorm.DB) expense.Repository {
	return &ExpenseRepository{db: db}
}

// Create saves a new expense form to the database
func (r *ExpenseRepository) Create(form *expense.ExpenseForm) error {
	return r.db.Create(form).Error
}

// GetByID retrieves an expense form with its attachments
func (r *ExpenseRepository) GetByID(id int64) (*expense.ExpenseForm, error) {
	var form expense.ExpenseForm
	err := r.db.Preload("Attachments").Where("id = ?", id).First(&form).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, expense.ErrFormNotFound
		}
		return nil, err
	}
	return &form, nil
}

// ListAll retrieves every expense form, newest first
func (r *ExpenseRepository) ListAll() ([]*expense.ExpenseForm, error) {
	var forms []*expense.ExpenseForm
	err := r.db.Preload("Attachments").
		Order("created_at DESC").
		Find(&forms).Error
	return forms, err
}

// ListByUser retrieves expense forms created by a specific user
func (r *ExpenseRepository) ListByUser(userID int64) ([]*expense.ExpenseForm, error) {
	var forms []*expense.ExpenseForm
	err := r.db.Preload("Attachments").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&forms).Error
	return forms, err
}

// ListByTitle retrieves all expense forms under one report
func (r *ExpenseRepository) ListByTitle(titleID int64) ([]*expense.ExpenseForm, error) {
	var forms []*expense.ExpenseForm
	err := r.db.Preload("Attachments").
		Where("expense_title_id = ?", titleID).
		Order("created_at DESC").
		Find(&forms).Error
	return forms, err
}

// ListByTitleAndUser retrieves a user's expense forms under one report
func (r *ExpenseRepository) ListByTitleAndUser(titleID, userID int64) ([]*expense.ExpenseForm, error) {
	var forms []*expense.ExpenseForm
	err := r.db.Preload("Attachments").
		Where("expense_title_id = ? AND user_id = ?", titleID, userID).
		Order("created_at DESC").
		Find(&forms).Error
	return forms, err
}

// Update persists the whole form row
func (r *ExpenseRepository) Update(form *expense.ExpenseForm) error {
	form.UpdatedAt = time.Now()
	return r.db.Omit("Attachments").Save(form).Error
}

// Delete removes the form and its attachment rows in one transaction.
// Blob cleanup is the caller's concern.
func (r *ExpenseRepository) Delete(id int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_form_id = ?", id).Delete(&expense.Attachment{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&expense.ExpenseForm{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return expense.ErrFormNotFound
		}
		return nil
	})
}

// TitleExists reports whether the referenced report row is present. The
// titles table is queried directly to keep this package independent of the
// title package.
func (r *ExpenseRepository) TitleExists(titleID int64) (bool, error) {
	var count int64
	err := r.db.Table("expense_titles").Where("id = ?", titleID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddAttachment saves an attachment row
func (r *ExpenseRepository) AddAttachment(att *expense.Attachment) error {
	return r.db.Create(att).Error
}

// GetAttachment retrieves an attachment by its ID
func (r *ExpenseRepository) GetAttachment(attachmentID int64) (*expense.Attachment, error) {
	var att expense.Attachment
	err := r.db.Where("id = ?", attachmentID).First(&att).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, expense.ErrAttachmentNotFound
		}
		return nil, err
	}
	return &att, nil
}

// DeleteAttachmentRow removes a single attachment row
func (r *ExpenseRepository) DeleteAttachmentRow(attachmentID int64) error {
	result := r.db.Where("id = ?", attachmentID).Delete(&expense.Attachment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return expense.ErrAttachmentNotFound
	}
	return nil
}

// SearchByCategory matches forms whose master group or subgroup contains the
// query, case-insensitively. userID 0 searches all owners.
func (r *ExpenseRepository) SearchByCategory(query string, userID int64, limit int) ([]*expense.ExpenseForm, error) {
	var forms []*expense.ExpenseForm
	pattern := "%" + strings.ToLower(query) + "%"
	q := r.db.Preload("Attachments").
		Where("LOWER(master_group) LIKE ? OR LOWER(subgroup) LIKE ?", pattern, pattern)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	err := q.Order("created_at DESC").
		Limit(limit).
		Find(&forms).Error
	return forms, err
}
