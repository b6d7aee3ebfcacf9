package crm

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// DefaultTaskDue is how far out a follow-up task is due when the creator
// does not say otherwise.
const DefaultTaskDue = 48 * time.Hour

func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.DueAt.IsZero() {
		t.DueAt = time.Now().Add(DefaultTaskDue)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, lead_id, title, description, priority, due_at, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.LeadID, t.Title, t.Description, t.Priority, t.DueAt, t.AssignedTo)
	return err
}

func (s *Store) CreateNotification(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, operator_id, lead_id, title, body)
		VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.OperatorID, n.LeadID, n.Title, n.Body)
	return err
}
