package title

import (
	"strings"
	"time"

	"github.com/wibowo/expense-report/internal/taxonomy"
)

// CreateTitleDTO carries POST /api/expense-titles/.
type CreateTitleDTO struct {
	Name string `json:"name"`
}

func (dto *CreateTitleDTO) Validate() error {
	if strings.TrimSpace(dto.Name) == "" {
		return ErrNameRequired
	}
	return nil
}

// TitleResponse is the wire shape of a title. Status is the aggregate of the
// forms underneath; status_label is precomputed so the client does not carry
// its own label table.
type TitleResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	UserID      int64     `json:"user_id"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"status_label"`
	FormCount   int       `json:"form_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (t *ExpenseTitle) ToResponse(formStatuses []string) TitleResponse {
	status := taxonomy.AggregateStatus(formStatuses)
	return TitleResponse{
		ID:          t.ID,
		Name:        t.Name,
		UserID:      t.UserID,
		Status:      status,
		StatusLabel: taxonomy.StatusLabel(status),
		FormCount:   len(formStatuses),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
