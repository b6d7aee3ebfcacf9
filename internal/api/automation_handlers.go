package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/luminix/crm/internal/automation"
)

type templateInput struct {
	Name        string               `json:"name" validate:"required"`
	Description string               `json:"description"`
	Active      bool                 `json:"active"`
	Trigger     automation.Trigger   `json:"trigger"`
	Steps       []automation.Step    `json:"steps" validate:"required,min=1"`
}

// ListTemplates returns all automation templates, optionally active only.
//
//	GET /api/automations?active=true
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	templates, err := h.automation.ListTemplates(r.Context(), activeOnly)
	if err != nil {
		log.Printf("[API] Failed to list templates: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	if templates == nil {
		templates = []automation.Template{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"templates": templates})
}

// CreateTemplate creates a new automation template. The template is validated
// structurally (known trigger type, contiguous step indices) before insert.
//
//	POST /api/automations
func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var input templateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	tmpl := &automation.Template{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Active:      input.Active,
		Trigger:     input.Trigger,
		Steps:       input.Steps,
	}
	if err := tmpl.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.automation.CreateTemplate(r.Context(), tmpl); err != nil {
		log.Printf("[API] Failed to create template: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	respondJSON(w, http.StatusCreated, tmpl)
}

func (h *Handlers) templateFromPath(w http.ResponseWriter, r *http.Request) (*automation.Template, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "templateID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid template id")
		return nil, false
	}
	tmpl, err := h.automation.GetTemplate(r.Context(), id)
	if err != nil {
		log.Printf("[API] Failed to load template %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load template")
		return nil, false
	}
	if tmpl == nil {
		respondError(w, http.StatusNotFound, "template not found")
		return nil, false
	}
	return tmpl, true
}

// GetTemplate returns a single template with its lifetime stats.
//
//	GET /api/automations/{templateID}
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := h.templateFromPath(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}

// UpdateTemplate replaces the template definition. Running instances keep the
// step cursor they already have; the new definition applies from their next
// execution.
//
//	PUT /api/automations/{templateID}
func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := h.templateFromPath(w, r)
	if !ok {
		return
	}

	var input templateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	tmpl.Name = input.Name
	tmpl.Description = input.Description
	tmpl.Active = input.Active
	tmpl.Trigger = input.Trigger
	tmpl.Steps = input.Steps
	if err := tmpl.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.automation.UpdateTemplate(r.Context(), tmpl); err != nil {
		log.Printf("[API] Failed to update template %s: %v", tmpl.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to update template")
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}

// DeleteTemplate removes a template and all of its instances.
//
//	DELETE /api/automations/{templateID}
func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := h.templateFromPath(w, r)
	if !ok {
		return
	}
	if err := h.automation.DeleteTemplate(r.Context(), tmpl.ID); err != nil {
		log.Printf("[API] Failed to delete template %s: %v", tmpl.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to delete template")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ActivateTemplate marks the template active so sweeps pick it up.
//
//	POST /api/automations/{templateID}/activate
func (h *Handlers) ActivateTemplate(w http.ResponseWriter, r *http.Request) {
	h.setTemplateActive(w, r, true)
}

// DeactivateTemplate pauses the template. Existing instances are untouched.
//
//	POST /api/automations/{templateID}/deactivate
func (h *Handlers) DeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	h.setTemplateActive(w, r, false)
}

func (h *Handlers) setTemplateActive(w http.ResponseWriter, r *http.Request, active bool) {
	tmpl, ok := h.templateFromPath(w, r)
	if !ok {
		return
	}
	if err := h.automation.SetTemplateActive(r.Context(), tmpl.ID, active); err != nil {
		log.Printf("[API] Failed to set template %s active=%v: %v", tmpl.ID, active, err)
		respondError(w, http.StatusInternalServerError, "failed to update template")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": tmpl.ID, "active": active})
}

// TriggerTemplate manually enrolls a lead in the template, bypassing trigger
// conditions. Enrollment is still subject to the one-active-instance rule.
//
//	POST /api/automations/{templateID}/trigger
func (h *Handlers) TriggerTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := h.templateFromPath(w, r)
	if !ok {
		return
	}

	var input struct {
		LeadID string `json:"lead_id" validate:"required,uuid"`
	}
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	leadID, _ := uuid.Parse(input.LeadID)

	created, err := h.engine.TriggerManual(r.Context(), tmpl.ID, leadID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"template_id": tmpl.ID,
		"lead_id":     leadID,
		"enrolled":    created,
	})
}

// ListInstances returns automation instances filtered by template, lead or
// status.
//
//	GET /api/automations/instances?template_id=&lead_id=&status=&limit=
func (h *Handlers) ListInstances(w http.ResponseWriter, r *http.Request) {
	var f automation.InstanceFilter
	q := r.URL.Query()
	if v := q.Get("template_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid template_id")
			return
		}
		f.TemplateID = id
	}
	if v := q.Get("lead_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid lead_id")
			return
		}
		f.LeadID = id
	}
	f.Status = q.Get("status")
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}

	instances, err := h.automation.ListInstances(r.Context(), f)
	if err != nil {
		log.Printf("[API] Failed to list instances: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list instances")
		return
	}
	if instances == nil {
		instances = []automation.Instance{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"instances": instances})
}

// StopInstance stops a running instance with an operator-supplied reason.
//
//	POST /api/automations/instances/{instanceID}/stop
func (h *Handlers) StopInstance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "instanceID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid instance id")
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	// Body is optional; a bare POST stops with a default reason.
	_ = decodeOptional(r, &input)
	if input.Reason == "" {
		input.Reason = "stopped manually"
	}

	stopped, err := h.automation.StopInstance(r.Context(), id, input.Reason)
	if err != nil {
		log.Printf("[API] Failed to stop instance %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to stop instance")
		return
	}
	if !stopped {
		respondError(w, http.StatusNotFound, "no stoppable instance found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": automation.StatusStopped})
}

// AutomationStats reports instance counts by status and the engine's sweep
// state.
//
//	GET /api/automations/stats
func (h *Handlers) AutomationStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.automation.CountInstancesByStatus(r.Context())
	if err != nil {
		log.Printf("[API] Failed to count instances: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"instances":      counts,
		"engine_running": h.engine.IsRunning(),
		"last_sweep_at":  h.engine.LastSweepAt(),
	})
}

// RunSweep runs a trigger sweep followed by an execution sweep immediately,
// without waiting for the schedule. Useful for operators and tests.
//
//	POST /api/automations/sweep
func (h *Handlers) RunSweep(w http.ResponseWriter, r *http.Request) {
	h.engine.RunTriggerSweep(r.Context())
	h.engine.RunExecutionSweep(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"last_sweep_at": h.engine.LastSweepAt(),
	})
}
