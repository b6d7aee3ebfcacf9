package automation

import (
	"context"
	"strings"
	"time"

	"github.com/luminix/crm/internal/crm"
)

const (
	// NewLeadWindow bounds the new_lead scan so the poller never re-reads
	// the whole lead table.
	NewLeadWindow = 24 * time.Hour

	// DefaultDaysWithoutContact applies when a no_response trigger does not
	// set its own threshold.
	DefaultDaysWithoutContact = 3

	// DefaultDaysSinceLastContact applies when a time_based trigger does not
	// set its own threshold.
	DefaultDaysSinceLastContact = 7

	evaluatorScanLimit = 500
)

// Statuses a no_response trigger considers when it has no explicit
// allow-list. Leads already deep in the pipeline are not re-nurtured.
var defaultNoResponseStatuses = []string{crm.StatusNew, crm.StatusContacted}

// Evaluator finds leads whose current state satisfies a template's trigger
// conditions.
type Evaluator struct {
	leads LeadStore
	now   func() time.Time
}

func NewEvaluator(leads LeadStore) *Evaluator {
	return &Evaluator{leads: leads, now: time.Now}
}

// Evaluate returns the leads a polling sweep should start the template for.
// Reactive triggers (status_change, interaction) and manual templates never
// match in a sweep; they go through the engine hooks.
func (e *Evaluator) Evaluate(ctx context.Context, tmpl *Template) ([]crm.Lead, error) {
	switch tmpl.Trigger.Type {
	case TriggerNewLead:
		return e.evaluateNewLead(ctx, tmpl.Trigger.Conditions)
	case TriggerNoResponse:
		return e.evaluateNoContact(ctx, tmpl.Trigger.Conditions, daysOrDefault(tmpl.Trigger.Conditions.DaysWithoutContact, DefaultDaysWithoutContact))
	case TriggerTimeBased:
		return e.evaluateNoContact(ctx, tmpl.Trigger.Conditions, daysOrDefault(tmpl.Trigger.Conditions.DaysSinceLastContact, DefaultDaysSinceLastContact))
	case TriggerStatusChange, TriggerInteraction, TriggerManual:
		return nil, nil
	default:
		return nil, nil
	}
}

func (e *Evaluator) evaluateNewLead(ctx context.Context, c TriggerConditions) ([]crm.Lead, error) {
	since := e.now().Add(-NewLeadWindow)
	filter := crm.LeadFilter{
		CreatedAfter: &since,
		MinScore:     c.MinLeadScore,
		Statuses:     c.Statuses,
		Limit:        evaluatorScanLimit,
	}
	candidates, err := e.leads.ListLeads(ctx, filter)
	if err != nil {
		return nil, err
	}
	var matched []crm.Lead
	for _, l := range candidates {
		if sourceMatches(l.Source, c.Sources) {
			matched = append(matched, l)
		}
	}
	return matched, nil
}

func (e *Evaluator) evaluateNoContact(ctx context.Context, c TriggerConditions, days int) ([]crm.Lead, error) {
	cutoff := e.now().Add(-time.Duration(days) * 24 * time.Hour)
	statuses := c.Statuses
	if len(statuses) == 0 {
		statuses = defaultNoResponseStatuses
	}
	filter := crm.LeadFilter{
		LastContactBefore: &cutoff,
		Statuses:          statuses,
		MinScore:          c.MinLeadScore,
		Limit:             evaluatorScanLimit,
	}
	candidates, err := e.leads.ListLeads(ctx, filter)
	if err != nil {
		return nil, err
	}
	var matched []crm.Lead
	for _, l := range candidates {
		if sourceMatches(l.Source, c.Sources) {
			matched = append(matched, l)
		}
	}
	return matched, nil
}

// Matches reports whether a single lead satisfies the template's trigger
// conditions. The reactive hooks use it so event-driven matching stays in
// lockstep with the sweep logic.
func (e *Evaluator) Matches(l *crm.Lead, c TriggerConditions) bool {
	if !sourceMatches(l.Source, c.Sources) {
		return false
	}
	if c.MinLeadScore != nil && l.Score < *c.MinLeadScore {
		return false
	}
	if len(c.Statuses) > 0 && !containsFold(c.Statuses, l.Status) {
		return false
	}
	return true
}

// sourceMatches implements the loose lead-source policy: case-insensitive
// substring containment in either direction, so a free-text source like
// "Facebook Ads" matches an allowed value of "facebook" and vice versa.
// An empty allow-list or a "*" entry is a wildcard.
func sourceMatches(candidate string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	c := strings.ToLower(strings.TrimSpace(candidate))
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if a == "*" {
			return true
		}
		if strings.Contains(c, a) || strings.Contains(a, c) {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

func daysOrDefault(days, fallback int) int {
	if days > 0 {
		return days
	}
	return fallback
}
