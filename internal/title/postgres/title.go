package postgres

import (
	"errors"
	"strings"

	"github.com/wibowo/expense-report/internal/expense"
	"github.com/wibowo/expense-report/internal/title"
	"gorm.io/gorm"
)

// TitleRepository implements the title.Repository interface using GORM
type TitleRepository struct {
	db *gorm.DB
}

// NewTitleRepository creates a new expense title repository
func NewTitleRepository(db *gorm.DB) title.Repository {
	return &TitleRepository{db: db}
}

func (r *TitleRepository) Create(t *title.ExpenseTitle) error {
	return r.db.Create(t).Error
}

func (r *TitleRepository) GetByID(id int64) (*title.ExpenseTitle, error) {
	var t title.ExpenseTitle
	err := r.db.Where("id = ?", id).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, title.ErrTitleNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TitleRepository) ListAll() ([]*title.ExpenseTitle, error) {
	var titles []*title.ExpenseTitle
	err := r.db.Order("created_at DESC").Find(&titles).Error
	return titles, err
}

func (r *TitleRepository) ListByUser(userID int64) ([]*title.ExpenseTitle, error) {
	var titles []*title.ExpenseTitle
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&titles).Error
	return titles, err
}

// StatusesByTitle fetches form statuses for a batch of titles in one query.
func (r *TitleRepository) StatusesByTitle(titleIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(titleIDs))
	if len(titleIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		ExpenseTitleID int64
		Status         string
	}
	err := r.db.Model(&expense.ExpenseForm{}).
		Select("expense_title_id", "status").
		Where("expense_title_id IN ?", titleIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.ExpenseTitleID] = append(out[row.ExpenseTitleID], row.Status)
	}
	return out, nil
}

// DeleteCascade removes the title, its forms and their attachment rows in a
// single transaction. The collected storage keys let the caller clean up the
// blobs afterwards.
func (r *TitleRepository) DeleteCascade(titleID int64) ([]string, int, error) {
	var (
		storageKeys []string
		formCount   int
	)

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var forms []*expense.ExpenseForm
		if err := tx.Preload("Attachments").
			Where("expense_title_id = ?", titleID).
			Find(&forms).Error; err != nil {
			return err
		}

		formIDs := make([]int64, 0, len(forms))
		for _, form := range forms {
			formIDs = append(formIDs, form.ID)
			for _, att := range form.Attachments {
				storageKeys = append(storageKeys, att.StorageKey)
			}
		}
		formCount = len(forms)

		if len(formIDs) > 0 {
			if err := tx.Where("expense_form_id IN ?", formIDs).Delete(&expense.Attachment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", formIDs).Delete(&expense.ExpenseForm{}).Error; err != nil {
				return err
			}
		}

		result := tx.Where("id = ?", titleID).Delete(&title.ExpenseTitle{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return title.ErrTitleNotFound
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return storageKeys, formCount, nil
}

// SearchByName matches titles whose name contains the query,
// case-insensitively. userID 0 searches all owners.
func (r *TitleRepository) SearchByName(query string, userID int64, limit int) ([]*title.ExpenseTitle, error) {
	var titles []*title.ExpenseTitle
	pattern := "%" + strings.ToLower(query) + "%"
	q := r.db.Where("LOWER(name) LIKE ?", pattern)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	err := q.Order("created_at DESC").
		Limit(limit).
		Find(&titles).Error
	return titles, err
}

func (r *TitleRepository) GetByIDs(ids []int64) ([]*title.ExpenseTitle, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var titles []*title.ExpenseTitle
	err := r.db.Where("id IN ?", ids).Find(&titles).Error
	return titles, err
}
