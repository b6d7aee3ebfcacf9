package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/luminix/crm/internal/crm"
)

// CreateLead creates a lead and fires new-lead automations for it. Automation
// failures do not fail the request; the lead is already persisted.
//
//	POST /api/leads
func (h *Handlers) CreateLead(w http.ResponseWriter, r *http.Request) {
	var input struct {
		FullName     string `json:"full_name" validate:"required"`
		FirstName    string `json:"first_name"`
		BusinessName string `json:"business_name"`
		Email        string `json:"email" validate:"omitempty,email"`
		Phone        string `json:"phone"`
		Source       string `json:"source"`
		AssignedTo   string `json:"assigned_to" validate:"omitempty,uuid"`
	}
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	lead := &crm.Lead{
		ID:           uuid.New(),
		FullName:     input.FullName,
		FirstName:    input.FirstName,
		BusinessName: input.BusinessName,
		Email:        input.Email,
		Phone:        input.Phone,
		Source:       input.Source,
		Status:       crm.StatusNew,
	}
	if input.AssignedTo != "" {
		id, _ := uuid.Parse(input.AssignedTo)
		lead.AssignedTo = &id
	}

	if err := h.leads.CreateLead(r.Context(), lead); err != nil {
		log.Printf("[API] Failed to create lead: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to create lead")
		return
	}

	if err := h.engine.TriggerForNewLead(r.Context(), lead.ID); err != nil {
		log.Printf("[API] New-lead automations for %s: %v", lead.ID, err)
	}

	respondJSON(w, http.StatusCreated, lead)
}

func (h *Handlers) leadFromPath(w http.ResponseWriter, r *http.Request) (*crm.Lead, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "leadID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid lead id")
		return nil, false
	}
	lead, err := h.leads.GetLead(r.Context(), id)
	if err != nil {
		log.Printf("[API] Failed to load lead %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to load lead")
		return nil, false
	}
	if lead == nil {
		respondError(w, http.StatusNotFound, "lead not found")
		return nil, false
	}
	return lead, true
}

// GetLead returns a single lead.
//
//	GET /api/leads/{leadID}
func (h *Handlers) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.leadFromPath(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// ListLeads returns leads matching the query filters.
//
//	GET /api/leads?status=new,contacted&min_score=10&limit=50
func (h *Handlers) ListLeads(w http.ResponseWriter, r *http.Request) {
	var f crm.LeadFilter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		f.Statuses = strings.Split(v, ",")
	}
	if v := q.Get("min_score"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.MinScore = &n
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}

	leads, err := h.leads.ListLeads(r.Context(), f)
	if err != nil {
		log.Printf("[API] Failed to list leads: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if leads == nil {
		leads = []crm.Lead{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"leads": leads})
}

// UpdateLeadStatus changes the lead status and fires status-change
// automations with the old and new value.
//
//	PATCH /api/leads/{leadID}/status
func (h *Handlers) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.leadFromPath(w, r)
	if !ok {
		return
	}

	var input struct {
		Status string `json:"status" validate:"required"`
	}
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	oldStatus := lead.Status
	if err := h.leads.UpdateStatus(r.Context(), lead.ID, input.Status); err != nil {
		log.Printf("[API] Failed to update status for %s: %v", lead.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	if oldStatus != input.Status {
		if err := h.engine.TriggerForStatusChange(r.Context(), lead.ID, oldStatus, input.Status); err != nil {
			log.Printf("[API] Status-change automations for %s: %v", lead.ID, err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":     lead.ID,
		"status": input.Status,
	})
}

// AdjustLeadScore applies a signed delta to the lead score. The score never
// drops below zero.
//
//	PATCH /api/leads/{leadID}/score
func (h *Handlers) AdjustLeadScore(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.leadFromPath(w, r)
	if !ok {
		return
	}

	var input struct {
		Delta int `json:"delta" validate:"required"`
	}
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	if err := h.leads.AdjustScore(r.Context(), lead.ID, input.Delta); err != nil {
		log.Printf("[API] Failed to adjust score for %s: %v", lead.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to adjust score")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": lead.ID, "delta": input.Delta})
}

// AddLeadTag attaches a tag to the lead. Adding an existing tag is a no-op.
//
//	POST /api/leads/{leadID}/tags
func (h *Handlers) AddLeadTag(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.leadFromPath(w, r)
	if !ok {
		return
	}

	var input struct {
		Tag string `json:"tag" validate:"required"`
	}
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	if err := h.leads.AddTag(r.Context(), lead.ID, input.Tag); err != nil {
		log.Printf("[API] Failed to tag lead %s: %v", lead.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to add tag")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"id": lead.ID, "tag": input.Tag})
}

// AddInteraction records a touch point with the lead. Inbound interactions
// update response detection and fire interaction automations.
//
//	POST /api/leads/{leadID}/interactions
func (h *Handlers) AddInteraction(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.leadFromPath(w, r)
	if !ok {
		return
	}

	var input struct {
		Channel   string `json:"channel" validate:"required,oneof=whatsapp email phone meeting other"`
		Direction string `json:"direction" validate:"required,oneof=inbound outbound"`
		Content   string `json:"content"`
	}
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	in := &crm.Interaction{
		ID:        uuid.New(),
		LeadID:    lead.ID,
		Channel:   input.Channel,
		Direction: input.Direction,
		Content:   input.Content,
	}
	if err := h.leads.AddInteraction(r.Context(), in); err != nil {
		log.Printf("[API] Failed to record interaction for %s: %v", lead.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to record interaction")
		return
	}

	if err := h.engine.TriggerForInteraction(r.Context(), lead.ID, in); err != nil {
		log.Printf("[API] Interaction automations for %s: %v", lead.ID, err)
	}

	respondJSON(w, http.StatusCreated, in)
}

// ListInteractions returns the most recent interactions for a lead.
//
//	GET /api/leads/{leadID}/interactions?limit=50
func (h *Handlers) ListInteractions(w http.ResponseWriter, r *http.Request) {
	lead, ok := h.leadFromPath(w, r)
	if !ok {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	interactions, err := h.leads.ListInteractions(r.Context(), lead.ID, limit)
	if err != nil {
		log.Printf("[API] Failed to list interactions for %s: %v", lead.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to list interactions")
		return
	}
	if interactions == nil {
		interactions = []crm.Interaction{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"interactions": interactions})
}
