package title

import (
	"time"

	"github.com/wibowo/expense-report/internal"
)

// ExpenseTitle is a report grouping expense forms. Its status is never
// stored; it is derived from the statuses of the forms underneath it.
type ExpenseTitle struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	UserID    int64     `json:"user_id" gorm:"column:user_id;not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ExpenseTitle) TableName() string {
	return "expense_titles"
}

var (
	ErrTitleNotFound      = internal.NewNotFoundError("expense title not found", internal.ErrCodeTitleNotFound)
	ErrUnauthorizedAccess = internal.NewForbiddenError("you do not have access to this expense title", internal.ErrCodeUnauthorizedAccess)
	ErrNameRequired       = internal.NewValidationError("expense title name is required", internal.ErrCodeValidationFailed)
)
