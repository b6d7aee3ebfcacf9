package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/luminix/crm/internal/automation"
	"github.com/luminix/crm/internal/crm"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	leads      *crm.Store
	automation *automation.Store
	engine     *automation.Engine
	validate   *validator.Validate
}

// NewHandlers creates a new Handlers instance
func NewHandlers(leads *crm.Store, automationStore *automation.Store, engine *automation.Engine) *Handlers {
	return &Handlers{
		leads:      leads,
		automation: automationStore,
		engine:     engine,
		validate:   validator.New(),
	}
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeOptional decodes the body into dst but tolerates an empty body.
func decodeOptional(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == io.EOF {
		return nil
	}
	return err
}

// decodeAndValidate decodes the request body into dst and runs struct validation.
// It writes the error response itself and returns false when the payload is bad.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
