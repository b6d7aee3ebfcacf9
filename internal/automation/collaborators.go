package automation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/luminix/crm/internal/crm"
)

// LeadStore is the slice of the CRM layer the engine reads and mutates.
// Implemented by crm.Store.
type LeadStore interface {
	GetLead(ctx context.Context, id uuid.UUID) (*crm.Lead, error)
	ListLeads(ctx context.Context, f crm.LeadFilter) ([]crm.Lead, error)
	AdjustScore(ctx context.Context, id uuid.UUID, delta int) error
	SetScore(ctx context.Context, id uuid.UUID, score int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	AddTag(ctx context.Context, id uuid.UUID, tag string) error
	AddInteraction(ctx context.Context, in *crm.Interaction) error
	LastInboundAt(ctx context.Context, leadID uuid.UUID, channel string) (*time.Time, error)
}

// TaskCreator creates follow-up tasks. Implemented by crm.Store.
type TaskCreator interface {
	CreateTask(ctx context.Context, t *crm.Task) error
}

// NotificationCreator emits operator notifications. Implemented by crm.Store.
type NotificationCreator interface {
	CreateNotification(ctx context.Context, n *crm.Notification) error
}

// MessageSender dispatches one outbound chat message. A send failure must
// never abort the engine; callers record it and move on.
type MessageSender interface {
	Send(ctx context.Context, destination, text string) (string, error)
}

// Emailer dispatches one outbound email. Same failure contract as
// MessageSender.
type Emailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) (string, error)
}
