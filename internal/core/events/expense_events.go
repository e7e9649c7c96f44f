package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeStatusChanged = "expense.status_changed"
	EventTypeTitleDeleted  = "expense.title_deleted"
)

// NewStatusChangedEvent records a form moving through the approval workflow.
// Subscribers use it for notifications; the workflow itself never depends on
// event delivery.
func NewStatusChangedEvent(formID, titleID int64, fromStatus, toStatus, comments string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      EventTypeStatusChanged,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"form_id":     formID,
			"title_id":    titleID,
			"from_status": fromStatus,
			"to_status":   toStatus,
			"comments":    comments,
		},
	}
}

func NewTitleDeletedEvent(titleID int64, formCount int) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      EventTypeTitleDeleted,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"title_id":   titleID,
			"form_count": formCount,
		},
	}
}
