package handlers

import (
	"net/http"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ParticleHandler struct {
	classifier *service.ClassifierService
	particles  domain.ParticleStore
}

func NewParticleHandler(classifier *service.ClassifierService, particles domain.ParticleStore) *ParticleHandler {
	return &ParticleHandler{classifier: classifier, particles: particles}
}

type classifyRequest struct {
	AgentID  uuid.UUID            `json:"agent_id"`
	Blanket  domain.MarkovBlanket `json:"blanket"`
	ParentID *uuid.UUID           `json:"parent_id,omitempty"`
	BeliefID *uuid.UUID           `json:"belief_id,omitempty"`
	// Persist controls whether the classification is stored as a particle
	// or just returned.
	Persist bool `json:"persist"`
}

func (h *ParticleHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	if !req.Persist {
		c, err := h.classifier.Classify(req.AgentID, req.Blanket)
		if err != nil {
			writeCoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
		return
	}

	p, err := h.classifier.ClassifyAndStore(r.Context(), req.AgentID, req.Blanket, req.ParentID, req.BeliefID)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ParticleHandler) List(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(r.URL.Query().Get("agent_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "agent_id query parameter is required")
		return
	}

	particles, err := h.particles.GetByAgent(r.Context(), agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list particles")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"particles": particles, "count": len(particles)})
}

func (h *ParticleHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid particle id")
		return
	}

	p, err := h.particles.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "particle not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
