// Package automation implements the lead-nurturing engine: declarative
// triggers, multi-step delayed sequences, and response-based early stop.
package automation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trigger types. status_change and interaction are evaluated reactively via
// the engine hooks; manual never auto-matches.
const (
	TriggerNewLead      = "new_lead"
	TriggerNoResponse   = "no_response"
	TriggerStatusChange = "status_change"
	TriggerInteraction  = "interaction"
	TriggerTimeBased    = "time_based"
	TriggerManual       = "manual"
)

// Step action types.
const (
	ActionSendWhatsApp       = "send_whatsapp"
	ActionSendEmail          = "send_email"
	ActionCreateTask         = "create_task"
	ActionUpdateLeadScore    = "update_lead_score"
	ActionChangeStatus       = "change_status"
	ActionUpdateClientStatus = "update_client_status"
	ActionAddTag             = "add_tag"
	ActionCreateNotification = "create_notification"
)

// Instance statuses. completed and stopped are terminal.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusStopped   = "stopped"
	StatusCompleted = "completed"
)

var triggerTypes = map[string]bool{
	TriggerNewLead:      true,
	TriggerNoResponse:   true,
	TriggerStatusChange: true,
	TriggerInteraction:  true,
	TriggerTimeBased:    true,
	TriggerManual:       true,
}

// Delay is the wait before a step runs, with explicit components so day
// arithmetic never goes through floats.
type Delay struct {
	Days    int `json:"days,omitempty"`
	Hours   int `json:"hours,omitempty"`
	Minutes int `json:"minutes,omitempty"`
}

func (d Delay) Duration() time.Duration {
	return time.Duration(d.Days)*24*time.Hour +
		time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute
}

// TriggerConditions is the declarative condition set of a trigger. Absent
// fields are wildcards.
type TriggerConditions struct {
	Sources              []string `json:"sources,omitempty"`
	Statuses             []string `json:"statuses,omitempty"`
	MinLeadScore         *int     `json:"min_lead_score,omitempty"`
	DaysWithoutContact   int      `json:"days_without_contact,omitempty"`
	DaysSinceLastContact int      `json:"days_since_last_contact,omitempty"`
	Event                string   `json:"event,omitempty"`
}

// Trigger determines which leads should start a template.
type Trigger struct {
	Type       string            `json:"type"`
	Conditions TriggerConditions `json:"conditions"`
}

// Step is one action in a template's sequence. Content carries the
// action-specific payload.
type Step struct {
	Index          int                    `json:"index"`
	Delay          Delay                  `json:"delay"`
	Action         string                 `json:"action"`
	Content        map[string]interface{} `json:"content,omitempty"`
	StopIfResponse bool                   `json:"stop_if_response"`
}

// Stats are per-template lifetime counters.
type Stats struct {
	TotalTriggered int `json:"total_triggered"`
	TotalCompleted int `json:"total_completed"`
	TotalStopped   int `json:"total_stopped"`
}

// Template is a reusable automation definition: one trigger plus an ordered
// step sequence.
type Template struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	Trigger     Trigger   `json:"trigger"`
	Steps       []Step    `json:"steps"`
	Stats       Stats     `json:"stats"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the structural invariants: a known trigger type and step
// indices contiguous from zero.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if !triggerTypes[t.Trigger.Type] {
		return fmt.Errorf("unknown trigger type %q", t.Trigger.Type)
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("template has no steps")
	}
	for i, step := range t.Steps {
		if step.Index != i {
			return fmt.Errorf("step %d has index %d, want %d", i, step.Index, i)
		}
		if step.Action == "" {
			return fmt.Errorf("step %d has no action", i)
		}
	}
	return nil
}

// ExecutionRecord is one entry in an instance's append-only history.
type ExecutionRecord struct {
	Step       int       `json:"step"`
	Action     string    `json:"action"`
	ExecutedAt time.Time `json:"executed_at"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
}

// Instance is one running execution of a template against one lead.
type Instance struct {
	ID           uuid.UUID         `json:"id"`
	TemplateID   uuid.UUID         `json:"template_id"`
	LeadID       uuid.UUID         `json:"lead_id"`
	Status       string            `json:"status"`
	CurrentStep  int               `json:"current_step"`
	NextActionAt time.Time         `json:"next_action_at"`
	History      []ExecutionRecord `json:"history"`
	StopReason   string            `json:"stop_reason,omitempty"`
	StoppedAt    *time.Time        `json:"stopped_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Due reports whether the instance should run at the given time.
func (i *Instance) Due(now time.Time) bool {
	return i.Status == StatusActive && !i.NextActionAt.After(now)
}

// ActionResult is what a step action reports back to the engine. Failures
// are recorded, never propagated.
type ActionResult struct {
	Success bool
	Message string
	Err     error
}
