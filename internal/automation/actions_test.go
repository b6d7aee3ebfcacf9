package automation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/luminix/crm/internal/crm"
	"github.com/luminix/crm/internal/mailing"
)

// =============================================================================
// REGISTRY DISPATCH
// =============================================================================

func TestRegistry_UnknownActionIsNoOpSuccess(t *testing.T) {
	r := NewRegistry()
	res := r.Execute(context.Background(), Step{Action: "teleport_lead"}, testLead())
	if !res.Success {
		t.Error("unknown action must be a no-op success, not a failure")
	}
	if !strings.Contains(res.Message, "teleport_lead") {
		t.Errorf("message should name the skipped action, got %q", res.Message)
	}
}

type panickyAction struct{}

func (panickyAction) Type() string { return "explode" }
func (panickyAction) Execute(ctx context.Context, step Step, lead *crm.Lead) ActionResult {
	panic("boom")
}

func TestRegistry_PanicBecomesFailedResult(t *testing.T) {
	r := NewRegistry(panickyAction{})
	res := r.Execute(context.Background(), Step{Action: "explode"}, testLead())
	if res.Success {
		t.Error("panicking action must report failure")
	}
	if !strings.Contains(res.Message, "boom") {
		t.Errorf("panic value should appear in the message, got %q", res.Message)
	}
}

// =============================================================================
// WHATSAPP
// =============================================================================

func TestWhatsAppAction_SendsAndRecords(t *testing.T) {
	lead := testLead()
	store := newFakeLeadStore(lead)
	sender := &fakeSender{}
	a := &WhatsAppAction{Sender: sender, Leads: store}

	step := Step{Action: ActionSendWhatsApp, Content: map[string]interface{}{
		"message": "שלום {firstName}",
	}}
	res := a.Execute(context.Background(), step, lead)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Message)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "שלום Dana" {
		t.Errorf("rendered message not sent, got %v", sender.sent)
	}
	if store.outboundCount() != 1 {
		t.Errorf("outbound interaction not recorded")
	}
}

func TestWhatsAppAction_NoPhone(t *testing.T) {
	lead := testLead(func(l *crm.Lead) { l.Phone = "" })
	a := &WhatsAppAction{Sender: &fakeSender{}, Leads: newFakeLeadStore(lead)}

	res := a.Execute(context.Background(), Step{Content: map[string]interface{}{"message": "hi"}}, lead)
	if res.Success {
		t.Error("send without a phone number must fail")
	}
}

func TestWhatsAppAction_SendFailureStillRecorded(t *testing.T) {
	lead := testLead()
	store := newFakeLeadStore(lead)
	sender := &fakeSender{err: errors.New("gateway down")}
	a := &WhatsAppAction{Sender: sender, Leads: store}

	res := a.Execute(context.Background(), Step{Content: map[string]interface{}{"message": "hi"}}, lead)
	if res.Success {
		t.Error("delivery failure must be reported")
	}
	if store.outboundCount() != 1 {
		t.Error("failed send should still leave an interaction record")
	}
	if !strings.Contains(store.interactions[0].Content, "send failed") {
		t.Errorf("interaction should note the failure, got %q", store.interactions[0].Content)
	}
}

// =============================================================================
// EMAIL
// =============================================================================

func TestEmailAction_DefaultSubjectAndLiquid(t *testing.T) {
	lead := testLead(func(l *crm.Lead) { l.BusinessName = "Cohen Consulting" })
	store := newFakeLeadStore(lead)
	sender := &fakeSender{}
	a := &EmailAction{Sender: sender, Leads: store, Templates: mailing.NewTemplateService()}

	step := Step{Action: ActionSendEmail, Content: map[string]interface{}{
		"body": "Hello {{ first_name | default: \"friend\" }}",
	}}
	res := a.Execute(context.Background(), step, lead)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Message)
	}
	if len(sender.subjects) != 1 || !strings.Contains(sender.subjects[0], "Cohen Consulting") {
		t.Errorf("default subject should carry the business name, got %v", sender.subjects)
	}
	if sender.sent[0] != "Hello Dana" {
		t.Errorf("liquid rendering failed, got %q", sender.sent[0])
	}
}

func TestEmailAction_DistinctBodiesAtSameStepIndex(t *testing.T) {
	lead := testLead()
	store := newFakeLeadStore(lead)
	sender := &fakeSender{}
	a := &EmailAction{Sender: sender, Leads: store, Templates: mailing.NewTemplateService()}

	first := Step{Index: 0, Action: ActionSendEmail, Content: map[string]interface{}{"body": "first body"}}
	second := Step{Index: 0, Action: ActionSendEmail, Content: map[string]interface{}{"body": "second body"}}

	if res := a.Execute(context.Background(), first, lead); !res.Success {
		t.Fatalf("first send failed: %s", res.Message)
	}
	if res := a.Execute(context.Background(), second, lead); !res.Success {
		t.Fatalf("second send failed: %s", res.Message)
	}
	if sender.sent[0] != "first body" || sender.sent[1] != "second body" {
		t.Errorf("each step must deliver its own body, got %v", sender.sent)
	}
}

func TestEmailAction_NoEmailAddress(t *testing.T) {
	lead := testLead(func(l *crm.Lead) { l.Email = "" })
	a := &EmailAction{Sender: &fakeSender{}, Leads: newFakeLeadStore(lead)}

	res := a.Execute(context.Background(), Step{Content: map[string]interface{}{"body": "hi"}}, lead)
	if res.Success {
		t.Error("send without an email address must fail")
	}
}

// =============================================================================
// TASK / SCORE / STATUS / TAG / NOTIFICATION
// =============================================================================

func TestTaskAction_Defaults(t *testing.T) {
	lead := testLead()
	tasks := &fakeTaskStore{}
	a := &TaskAction{Tasks: tasks}

	res := a.Execute(context.Background(), Step{Action: ActionCreateTask}, lead)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Message)
	}
	if len(tasks.tasks) != 1 {
		t.Fatal("task not created")
	}
	if !strings.Contains(tasks.tasks[0].Title, lead.FullName) {
		t.Errorf("default title should name the lead, got %q", tasks.tasks[0].Title)
	}
}

func TestScoreAction(t *testing.T) {
	t.Run("delta", func(t *testing.T) {
		lead := testLead(func(l *crm.Lead) { l.Score = 10 })
		store := newFakeLeadStore(lead)
		a := &ScoreAction{Leads: store}

		res := a.Execute(context.Background(), Step{Content: map[string]interface{}{"delta": float64(5)}}, lead)
		if !res.Success {
			t.Fatalf("Execute failed: %s", res.Message)
		}
		got, _ := store.GetLead(context.Background(), lead.ID)
		if got.Score != 15 {
			t.Errorf("score = %d, want 15", got.Score)
		}
	})

	t.Run("set overrides delta semantics", func(t *testing.T) {
		lead := testLead(func(l *crm.Lead) { l.Score = 10 })
		store := newFakeLeadStore(lead)
		a := &ScoreAction{Leads: store}

		res := a.Execute(context.Background(), Step{Content: map[string]interface{}{"set": float64(70)}}, lead)
		if !res.Success {
			t.Fatalf("Execute failed: %s", res.Message)
		}
		got, _ := store.GetLead(context.Background(), lead.ID)
		if got.Score != 70 {
			t.Errorf("score = %d, want 70", got.Score)
		}
	})

	t.Run("missing content", func(t *testing.T) {
		a := &ScoreAction{Leads: newFakeLeadStore()}
		res := a.Execute(context.Background(), Step{}, testLead())
		if res.Success {
			t.Error("step without delta or set must fail")
		}
	})
}

func TestStatusAction(t *testing.T) {
	lead := testLead()
	store := newFakeLeadStore(lead)
	a := &StatusAction{Name: ActionChangeStatus, Leads: store}

	res := a.Execute(context.Background(), Step{Content: map[string]interface{}{"status": "contacted"}}, lead)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Message)
	}
	got, _ := store.GetLead(context.Background(), lead.ID)
	if got.Status != "contacted" {
		t.Errorf("status = %q, want contacted", got.Status)
	}
}

func TestTagAction_SetSemantics(t *testing.T) {
	lead := testLead(func(l *crm.Lead) { l.Tags = []string{"vip"} })
	store := newFakeLeadStore(lead)
	a := &TagAction{Leads: store}

	res := a.Execute(context.Background(), Step{Content: map[string]interface{}{"tag": "vip"}}, lead)
	if !res.Success {
		t.Fatalf("re-adding an existing tag must succeed: %s", res.Message)
	}
	got, _ := store.GetLead(context.Background(), lead.ID)
	if len(got.Tags) != 1 {
		t.Errorf("tag duplicated: %v", got.Tags)
	}
}

func TestNotificationAction_NoOperator(t *testing.T) {
	lead := testLead() // no AssignedTo
	a := &NotificationAction{Notifications: &fakeTaskStore{}}

	res := a.Execute(context.Background(), Step{}, lead)
	if res.Success {
		t.Error("notification for an unassigned lead must report failure")
	}
}

func TestNotificationAction_Creates(t *testing.T) {
	op := uuid.New()
	lead := testLead(func(l *crm.Lead) { l.AssignedTo = &op })
	store := &fakeTaskStore{}
	a := &NotificationAction{Notifications: store}

	res := a.Execute(context.Background(), Step{Content: map[string]interface{}{
		"title": "follow up {name}",
	}}, lead)
	if !res.Success {
		t.Fatalf("Execute failed: %s", res.Message)
	}
	if len(store.notifications) != 1 {
		t.Fatal("notification not created")
	}
	n := store.notifications[0]
	if n.OperatorID != op {
		t.Errorf("notification routed to %s, want %s", n.OperatorID, op)
	}
	if !strings.Contains(n.Title, lead.FullName) {
		t.Errorf("title tokens not rendered: %q", n.Title)
	}
}
