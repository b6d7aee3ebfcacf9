package crm

import (
	"time"

	"github.com/google/uuid"
)

// Lead statuses used across the pipeline.
const (
	StatusNew         = "new"
	StatusContacted   = "contacted"
	StatusQualified   = "qualified"
	StatusNegotiating = "negotiating"
	StatusWon         = "won"
	StatusLost        = "lost"
	StatusArchived    = "archived"
)

// Interaction channels and directions.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelEmail    = "email"
	ChannelPhone    = "phone"

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Lead is the Go representation of a leads row.
type Lead struct {
	ID            uuid.UUID  `json:"id"`
	FullName      string     `json:"full_name"`
	FirstName     string     `json:"first_name"`
	BusinessName  string     `json:"business_name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	Source        string     `json:"source"`
	Score         int        `json:"score"`
	Status        string     `json:"status"`
	Tags          []string   `json:"tags"`
	AssignedTo    *uuid.UUID `json:"assigned_to,omitempty"`
	LastContactAt *time.Time `json:"last_contact_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Interaction is a single touch point with a lead, inbound or outbound.
type Interaction struct {
	ID        uuid.UUID `json:"id"`
	LeadID    uuid.UUID `json:"lead_id"`
	Channel   string    `json:"channel"`
	Direction string    `json:"direction"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Task is a follow-up item assigned against a lead.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	LeadID      uuid.UUID  `json:"lead_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueAt       time.Time  `json:"due_at"`
	AssignedTo  *uuid.UUID `json:"assigned_to,omitempty"`
	Done        bool       `json:"done"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Notification is an operator-facing alert.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	OperatorID uuid.UUID `json:"operator_id"`
	LeadID     uuid.UUID `json:"lead_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"created_at"`
}

// LeadFilter narrows ListLeads. Zero-valued fields are ignored.
type LeadFilter struct {
	Statuses          []string
	MinScore          *int
	CreatedAfter      *time.Time
	LastContactBefore *time.Time
	Limit             int
}

// HasTag reports whether the lead already carries the given tag.
func (l *Lead) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
