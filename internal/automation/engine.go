package automation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/luminix/crm/internal/crm"
)

// EngineConfig holds the sweep cadences and batch size. Zero values fall
// back to the defaults.
type EngineConfig struct {
	TriggerSchedule   string
	ExecutionSchedule string
	BatchSize         int
}

const (
	defaultTriggerSchedule   = "@every 6h"
	defaultExecutionSchedule = "@every 1h"
	defaultBatchSize         = 100
)

// Engine drives the automation lifecycle: the trigger sweep spawns
// instances for matching leads, the execution sweep advances due instances.
// Everything it needs is injected so tests can run isolated engines.
type Engine struct {
	store     *Store
	leads     LeadStore
	evaluator *Evaluator
	detector  *Detector
	registry  *Registry

	triggerSchedule   string
	executionSchedule string
	batchSize         int

	now func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	running bool

	// Per-sweep guards: a sweep that is still running when its next tick
	// fires makes the new tick a no-op instead of interleaving.
	triggerSweepMu   sync.Mutex
	executionSweepMu sync.Mutex

	stateMu     sync.RWMutex
	lastSweepAt time.Time
}

func NewEngine(store *Store, leads LeadStore, detector *Detector, registry *Registry, cfg EngineConfig) *Engine {
	if cfg.TriggerSchedule == "" {
		cfg.TriggerSchedule = defaultTriggerSchedule
	}
	if cfg.ExecutionSchedule == "" {
		cfg.ExecutionSchedule = defaultExecutionSchedule
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Engine{
		store:             store,
		leads:             leads,
		evaluator:         NewEvaluator(leads),
		detector:          detector,
		registry:          registry,
		triggerSchedule:   cfg.TriggerSchedule,
		executionSchedule: cfg.ExecutionSchedule,
		batchSize:         cfg.BatchSize,
		now:               time.Now,
	}
}

// Start schedules the two sweeps. Calling Start on a running engine is an
// error.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("engine already running")
	}

	c := cron.New()
	if _, err := c.AddFunc(e.triggerSchedule, func() {
		e.RunTriggerSweep(context.Background())
	}); err != nil {
		return fmt.Errorf("bad trigger schedule %q: %w", e.triggerSchedule, err)
	}
	if _, err := c.AddFunc(e.executionSchedule, func() {
		e.RunExecutionSweep(context.Background())
	}); err != nil {
		return fmt.Errorf("bad execution schedule %q: %w", e.executionSchedule, err)
	}
	c.Start()

	e.cron = c
	e.running = true
	log.Printf("[Engine] Started (trigger %s, execution %s)", e.triggerSchedule, e.executionSchedule)
	return nil
}

// Stop halts the scheduler and waits for an in-flight sweep to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	ctx := e.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		log.Println("[Engine] Shutdown timeout, abandoning in-flight sweep")
	}
	e.running = false
	log.Println("[Engine] Stopped")
}

func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) LastSweepAt() time.Time {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.lastSweepAt
}

// RunTriggerSweep evaluates every active template and spawns instances for
// matching leads. A template's failure is logged and does not abort the
// rest of the sweep.
func (e *Engine) RunTriggerSweep(ctx context.Context) {
	if !e.triggerSweepMu.TryLock() {
		log.Println("[Engine] Trigger sweep still running, skipping tick")
		return
	}
	defer e.triggerSweepMu.Unlock()

	templates, err := e.store.ListTemplates(ctx, true)
	if err != nil {
		log.Printf("[Engine] Trigger sweep: list templates: %v", err)
		return
	}

	for i := range templates {
		if ctx.Err() != nil {
			return
		}
		tmpl := &templates[i]
		matched, err := e.evaluator.Evaluate(ctx, tmpl)
		if err != nil {
			log.Printf("[Engine] Trigger sweep: template %s: %v", tmpl.ID, err)
			continue
		}
		for _, lead := range matched {
			if _, err := e.startInstance(ctx, tmpl, lead.ID); err != nil {
				log.Printf("[Engine] Trigger sweep: start instance template=%s lead=%s: %v", tmpl.ID, lead.ID, err)
			}
		}
	}
}

// RunExecutionSweep advances every due instance. Each instance runs inside
// its own failure boundary.
func (e *Engine) RunExecutionSweep(ctx context.Context) {
	if !e.executionSweepMu.TryLock() {
		log.Println("[Engine] Execution sweep still running, skipping tick")
		return
	}
	defer e.executionSweepMu.Unlock()

	e.stateMu.Lock()
	e.lastSweepAt = e.now()
	e.stateMu.Unlock()

	due, err := e.store.ListDueInstances(ctx, e.now(), e.batchSize)
	if err != nil {
		log.Printf("[Engine] Execution sweep: list due: %v", err)
		return
	}

	for i := range due {
		if ctx.Err() != nil {
			return
		}
		if err := e.processInstance(ctx, &due[i]); err != nil {
			log.Printf("[Engine] Execution sweep: instance %s: %v", due[i].ID, err)
		}
	}
}

// processInstance runs one lifecycle tick for a due instance: response gate,
// action, cursor advance, completion. The persisted advance is guarded by a
// compare-and-set so a re-polled instance is applied at most once.
func (e *Engine) processInstance(ctx context.Context, inst *Instance) error {
	tmpl, err := e.store.GetTemplate(ctx, inst.TemplateID)
	if err != nil {
		return err
	}
	if tmpl == nil {
		// Dangling reference; deleting beats an infinite retry loop.
		log.Printf("[Engine] Instance %s references deleted template, removing", inst.ID)
		return e.store.DeleteInstance(ctx, inst.ID)
	}
	if len(tmpl.Steps) == 0 || inst.CurrentStep > len(tmpl.Steps) {
		_, err := e.store.StopInstance(ctx, inst.ID, fmt.Sprintf("malformed template: %d steps, cursor %d", len(tmpl.Steps), inst.CurrentStep))
		return err
	}
	if inst.CurrentStep == len(tmpl.Steps) {
		// Cursor already past the end but status never flipped; finish it.
		inst.Status = StatusCompleted
		if ok, err := e.store.AdvanceInstance(ctx, inst, inst.CurrentStep); err != nil || !ok {
			return err
		}
		return e.store.IncrementCompleted(ctx, tmpl.ID)
	}

	lead, err := e.leads.GetLead(ctx, inst.LeadID)
	if err != nil {
		return err
	}
	if lead == nil {
		_, err := e.store.StopInstance(ctx, inst.ID, "lead deleted")
		return err
	}

	step := tmpl.Steps[inst.CurrentStep]

	if step.StopIfResponse {
		responded, err := e.detector.HasRecentResponse(ctx, lead.ID, DefaultResponseWindow)
		if err != nil {
			log.Printf("[Engine] Response check for lead %s: %v", lead.ID, err)
		}
		if responded {
			now := e.now()
			inst.Status = StatusStopped
			inst.StopReason = "lead responded"
			inst.StoppedAt = &now
			ok, err := e.store.AdvanceInstance(ctx, inst, inst.CurrentStep)
			if err != nil {
				return err
			}
			if ok {
				if err := e.store.IncrementStopped(ctx, tmpl.ID); err != nil {
					log.Printf("[Engine] Increment stopped for template %s: %v", tmpl.ID, err)
				}
			}
			return nil
		}
	}

	result := e.registry.Execute(ctx, step, lead)
	now := e.now()
	message := result.Message
	if result.Err != nil {
		message = fmt.Sprintf("%s: %v", result.Message, result.Err)
	}
	inst.History = append(inst.History, ExecutionRecord{
		Step:       step.Index,
		Action:     step.Action,
		ExecutedAt: now,
		Success:    result.Success,
		Message:    message,
	})

	prev := inst.CurrentStep
	inst.CurrentStep++
	if inst.CurrentStep == len(tmpl.Steps) {
		inst.Status = StatusCompleted
	} else {
		inst.NextActionAt = now.Add(tmpl.Steps[inst.CurrentStep].Delay.Duration())
	}

	ok, err := e.store.AdvanceInstance(ctx, inst, prev)
	if err != nil {
		return err
	}
	if !ok {
		log.Printf("[Engine] Instance %s advanced elsewhere, tick dropped", inst.ID)
		return nil
	}
	if inst.Status == StatusCompleted {
		if err := e.store.IncrementCompleted(ctx, tmpl.ID); err != nil {
			log.Printf("[Engine] Increment completed for template %s: %v", tmpl.ID, err)
		}
	}
	return nil
}

// startInstance creates an active instance seeded at step 0 unless the
// (template, lead) pair already has one. Stats count only real creations.
func (e *Engine) startInstance(ctx context.Context, tmpl *Template, leadID uuid.UUID) (bool, error) {
	if len(tmpl.Steps) == 0 {
		return false, fmt.Errorf("template %s has no steps", tmpl.ID)
	}
	inst := &Instance{
		TemplateID:   tmpl.ID,
		LeadID:       leadID,
		CurrentStep:  0,
		NextActionAt: e.now().Add(tmpl.Steps[0].Delay.Duration()),
	}
	created, err := e.store.CreateInstanceIfNoneActive(ctx, inst)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}
	if err := e.store.IncrementTriggered(ctx, tmpl.ID); err != nil {
		log.Printf("[Engine] Increment triggered for template %s: %v", tmpl.ID, err)
	}
	log.Printf("[Engine] Started %q for lead %s", tmpl.Name, leadID)
	return true, nil
}

// TriggerForNewLead is called right after a lead is created so new_lead
// templates fire without waiting for the next sweep.
func (e *Engine) TriggerForNewLead(ctx context.Context, leadID uuid.UUID) error {
	lead, err := e.leads.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if lead == nil {
		return nil
	}
	return e.fireMatching(ctx, lead, TriggerNewLead, nil)
}

// TriggerForInteraction is the reactive hook for interaction templates. An
// inbound interaction also refreshes the response cache so a gated step in
// the same sweep window sees it.
func (e *Engine) TriggerForInteraction(ctx context.Context, leadID uuid.UUID, in *crm.Interaction) error {
	if in != nil && in.Direction == crm.DirectionInbound {
		e.detector.RecordInbound(ctx, leadID, e.now())
	}
	lead, err := e.leads.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if lead == nil {
		return nil
	}
	match := func(c TriggerConditions) bool {
		return c.Event == "" || in == nil || strings.EqualFold(c.Event, in.Channel)
	}
	return e.fireMatching(ctx, lead, TriggerInteraction, match)
}

// TriggerForStatusChange is the reactive hook for status_change templates.
// The template's status allow-list is checked against the new status.
func (e *Engine) TriggerForStatusChange(ctx context.Context, leadID uuid.UUID, oldStatus, newStatus string) error {
	lead, err := e.leads.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if lead == nil {
		return nil
	}
	match := func(c TriggerConditions) bool {
		return len(c.Statuses) == 0 || containsFold(c.Statuses, newStatus)
	}
	return e.fireMatching(ctx, lead, TriggerStatusChange, match)
}

// TriggerManual starts a template against a specific lead at an operator's
// request, regardless of the template's trigger type.
func (e *Engine) TriggerManual(ctx context.Context, templateID, leadID uuid.UUID) (bool, error) {
	tmpl, err := e.store.GetTemplate(ctx, templateID)
	if err != nil {
		return false, err
	}
	if tmpl == nil {
		return false, fmt.Errorf("template %s not found", templateID)
	}
	lead, err := e.leads.GetLead(ctx, leadID)
	if err != nil {
		return false, err
	}
	if lead == nil {
		return false, fmt.Errorf("lead %s not found", leadID)
	}
	return e.startInstance(ctx, tmpl, leadID)
}

func (e *Engine) fireMatching(ctx context.Context, lead *crm.Lead, triggerType string, extra func(TriggerConditions) bool) error {
	templates, err := e.store.ListTemplates(ctx, true)
	if err != nil {
		return err
	}
	for i := range templates {
		tmpl := &templates[i]
		if tmpl.Trigger.Type != triggerType {
			continue
		}
		if !e.evaluator.Matches(lead, tmpl.Trigger.Conditions) {
			continue
		}
		if extra != nil && !extra(tmpl.Trigger.Conditions) {
			continue
		}
		if _, err := e.startInstance(ctx, tmpl, lead.ID); err != nil {
			log.Printf("[Engine] Reactive trigger template=%s lead=%s: %v", tmpl.ID, lead.ID, err)
		}
	}
	return nil
}
