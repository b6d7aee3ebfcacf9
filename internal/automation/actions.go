package automation

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"

	"github.com/luminix/crm/internal/crm"
	"github.com/luminix/crm/internal/mailing"
)

// Action performs the side effect of one step type.
type Action interface {
	Type() string
	Execute(ctx context.Context, step Step, lead *crm.Lead) ActionResult
}

// Registry dispatches steps to their action implementations.
type Registry struct {
	actions map[string]Action
}

func NewRegistry(actions ...Action) *Registry {
	r := &Registry{actions: make(map[string]Action)}
	for _, a := range actions {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Action) {
	r.actions[a.Type()] = a
}

// Execute runs the step's action. Unknown action types are recorded as
// no-op successes so an action rolled out ahead of this binary never wedges
// a sequence, and panics are converted to failed results so nothing crosses
// the engine boundary.
func (r *Registry) Execute(ctx context.Context, step Step, lead *crm.Lead) (result ActionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = ActionResult{Success: false, Message: fmt.Sprintf("action panicked: %v", rec)}
		}
	}()

	a, ok := r.actions[step.Action]
	if !ok {
		return ActionResult{Success: true, Message: fmt.Sprintf("unknown action %q skipped", step.Action)}
	}
	return a.Execute(ctx, step, lead)
}

// contentString returns the first non-empty string under the given keys.
func contentString(c map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := c[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// contentInt tolerates JSON numbers arriving as float64.
func contentInt(c map[string]interface{}, key string) (int, bool) {
	switch v := c[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// WhatsAppAction sends a templated WhatsApp message and records the
// outbound interaction, noting dispatch failures in the record.
type WhatsAppAction struct {
	Sender MessageSender
	Leads  LeadStore
}

func (a *WhatsAppAction) Type() string { return ActionSendWhatsApp }

func (a *WhatsAppAction) Execute(ctx context.Context, step Step, lead *crm.Lead) ActionResult {
	text := RenderPlaceholders(contentString(step.Content, "message", "text"), lead)
	if text == "" {
		return ActionResult{Success: false, Message: "step has no message content"}
	}
	if lead.Phone == "" {
		return ActionResult{Success: false, Message: "lead has no phone number"}
	}

	_, sendErr := a.Sender.Send(ctx, lead.Phone, text)

	record := text
	if sendErr != nil {
		record = fmt.Sprintf("send failed: %v | %s", sendErr, text)
	}
	if err := a.Leads.AddInteraction(ctx, &crm.Interaction{
		LeadID:    lead.ID,
		Channel:   crm.ChannelWhatsApp,
		Direction: crm.DirectionOutbound,
		Content:   record,
	}); err != nil {
		return ActionResult{Success: false, Message: "recording interaction failed", Err: err}
	}
	if sendErr != nil {
		return ActionResult{Success: false, Message: "whatsapp send failed", Err: sendErr}
	}
	return ActionResult{Success: true, Message: "whatsapp message sent"}
}

// EmailAction sends a templated email. The body goes through the Liquid
// template service on top of the plain token pass, so stored templates can
// use filters like default and capitalize.
type EmailAction struct {
	Sender    Emailer
	Leads     LeadStore
	Templates *mailing.TemplateService
}

func (a *EmailAction) Type() string { return ActionSendEmail }

func (a *EmailAction) Execute(ctx context.Context, step Step, lead *crm.Lead) ActionResult {
	subject := RenderPlaceholders(contentString(step.Content, "subject"), lead)
	body := RenderPlaceholders(contentString(step.Content, "body", "message"), lead)
	if body == "" {
		return ActionResult{Success: false, Message: "step has no email body"}
	}
	if lead.Email == "" {
		return ActionResult{Success: false, Message: "lead has no email address"}
	}
	if subject == "" {
		subject = "הודעה מ-" + lead.BusinessName
	}

	if a.Templates != nil {
		// Cache keyed by the body text so edited templates never serve a
		// stale compiled version.
		key := fmt.Sprintf("automation:%x", md5.Sum([]byte(body)))
		if rendered, err := a.Templates.Render(key, body, leadContext(lead)); err == nil {
			body = rendered
		}
	}

	_, sendErr := a.Sender.SendEmail(ctx, lead.Email, subject, body)

	record := subject
	if sendErr != nil {
		record = fmt.Sprintf("send failed: %v | %s", sendErr, subject)
	}
	if err := a.Leads.AddInteraction(ctx, &crm.Interaction{
		LeadID:    lead.ID,
		Channel:   crm.ChannelEmail,
		Direction: crm.DirectionOutbound,
		Content:   record,
	}); err != nil {
		return ActionResult{Success: false, Message: "recording interaction failed", Err: err}
	}
	if sendErr != nil {
		return ActionResult{Success: false, Message: "email send failed", Err: sendErr}
	}
	return ActionResult{Success: true, Message: "email sent"}
}

// TaskAction creates a follow-up task referencing the lead.
type TaskAction struct {
	Tasks TaskCreator
}

func (a *TaskAction) Type() string { return ActionCreateTask }

func (a *TaskAction) Execute(ctx context.Context, step Step, lead *crm.Lead) ActionResult {
	title := RenderPlaceholders(contentString(step.Content, "title"), lead)
	if title == "" {
		title = "מעקב: " + lead.FullName
	}
	task := &crm.Task{
		LeadID:      lead.ID,
		Title:       title,
		Description: RenderPlaceholders(contentString(step.Content, "description"), lead),
		Priority:    contentString(step.Content, "priority"),
		AssignedTo:  lead.AssignedTo,
	}
	if days, ok := contentInt(step.Content, "due_in_days"); ok && days > 0 {
		task.DueAt = time.Now().Add(time.Duration(days) * 24 * time.Hour)
	}
	if err := a.Tasks.CreateTask(ctx, task); err != nil {
		return ActionResult{Success: false, Message: "task creation failed", Err: err}
	}
	return ActionResult{Success: true, Message: "task created: " + title}
}

// ScoreAction applies a relative delta or an absolute set to the lead score.
type ScoreAction struct {
	Leads LeadStore
}

func (a *ScoreAction) Type() string { return ActionUpdateLeadScore }

func (a *ScoreAction) Execute(ctx context.Context, step Step, lead *crm.Lead) ActionResult {
	if abs, ok := contentInt(step.Content, "set"); ok {
		if err := a.Leads.SetScore(ctx, lead.ID, abs); err != nil {
			return ActionResult{Success: false, Message: "score update failed", Err: err}
		}
		return ActionResult{Success: true, Message: fmt.Sprintf("score set to %d", abs)}
	}
	delta, ok := contentInt(step.Content, "delta")
	if !ok {
		return ActionResult{Success: false, Message: "step content has neither delta nor set"}
	}
	if err := a.Leads.AdjustScore(ctx, lead.ID, delta); err != nil {
		return ActionResult{Success: false, Message: "score update failed", Err: err}
	}
	return ActionResult{Success: true, Message: fmt.Sprintf("score adjusted by %+d", delta)}
}

// StatusAction overwrites the lead's status. Registered under both
// change_status and update_client_status, which differ only in name for
// historical reasons.
type StatusAction struct {
	Name  string
	Leads LeadStore
}

func (a *StatusAction) Type() string { return a.Name }

func (a *StatusAction) Execute(ctx context.Context, step Step, lead *crm.Lead) ActionResult {
	status := contentString(step.Content, "status")
	if status == "" {
		return ActionResult{Success: false, Message: "step content has no status"}
	}
	if err := a.Leads.UpdateStatus(ctx, lead.ID, status); err != nil {
		return ActionResult{Success: false, Message: "status update failed", Err: err}
	}
	return ActionResult{Success: true, Message: "status changed to " + status}
}

// TagAction appends a tag with set semantics.
type TagAction struct {
	Leads LeadStore
}

func (a *TagAction) Type() string { return ActionAddTag }

func (a *TagAction) Execute(ctx context.Context, step Step, lead *crm.Lead) ActionResult {
	tag := contentString(step.Content, "tag")
	if tag == "" {
		return ActionResult{Success: false, Message: "step content has no tag"}
	}
	if lead.HasTag(tag) {
		return ActionResult{Success: true, Message: "tag already present: " + tag}
	}
	if err := a.Leads.AddTag(ctx, lead.ID, tag); err != nil {
		return ActionResult{Success: false, Message: "tag update failed", Err: err}
	}
	return ActionResult{Success: true, Message: "tag added: " + tag}
}

// NotificationAction emits a notification to the lead's assigned operator.
// A lead without an operator is a reported failure, not an error.
type NotificationAction struct {
	Notifications NotificationCreator
}

func (a *NotificationAction) Type() string { return ActionCreateNotification }

func (a *NotificationAction) Execute(ctx context.Context, step Step, lead *crm.Lead) ActionResult {
	if lead.AssignedTo == nil {
		return ActionResult{Success: false, Message: "lead has no assigned operator"}
	}
	n := &crm.Notification{
		OperatorID: *lead.AssignedTo,
		LeadID:     lead.ID,
		Title:      RenderPlaceholders(contentString(step.Content, "title"), lead),
		Body:       RenderPlaceholders(contentString(step.Content, "body", "message"), lead),
	}
	if n.Title == "" {
		n.Title = "תזכורת ליד: " + lead.FullName
	}
	if err := a.Notifications.CreateNotification(ctx, n); err != nil {
		return ActionResult{Success: false, Message: "notification creation failed", Err: err}
	}
	return ActionResult{Success: true, Message: "notification created"}
}

func leadContext(l *crm.Lead) map[string]interface{} {
	return map[string]interface{}{
		"name":       l.FullName,
		"first_name": l.FirstName,
		"business":   l.BusinessName,
		"email":      l.Email,
		"phone":      l.Phone,
		"source":     l.Source,
		"status":     l.Status,
		"score":      l.Score,
	}
}

// DefaultRegistry wires the standard action set.
func DefaultRegistry(leads LeadStore, tasks TaskCreator, notifications NotificationCreator, whatsapp MessageSender, email Emailer, templates *mailing.TemplateService) *Registry {
	return NewRegistry(
		&WhatsAppAction{Sender: whatsapp, Leads: leads},
		&EmailAction{Sender: email, Leads: leads, Templates: templates},
		&TaskAction{Tasks: tasks},
		&ScoreAction{Leads: leads},
		&StatusAction{Name: ActionChangeStatus, Leads: leads},
		&StatusAction{Name: ActionUpdateClientStatus, Leads: leads},
		&TagAction{Leads: leads},
		&NotificationAction{Notifications: notifications},
	)
}
