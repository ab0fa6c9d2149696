package handlers

import (
	"net/http"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type BeliefHandler struct {
	beliefs domain.BeliefStore
	updater *service.UpdaterService
}

func NewBeliefHandler(beliefs domain.BeliefStore, updater *service.UpdaterService) *BeliefHandler {
	return &BeliefHandler{beliefs: beliefs, updater: updater}
}

type createBeliefRequest struct {
	AgentID    uuid.UUID `json:"agent_id"`
	Primitive  string    `json:"primitive"`
	Mean       []float32 `json:"mean"`
	Precision  []float64 `json:"precision"`
	Confidence float64   `json:"confidence"`
}

func (h *BeliefHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBeliefRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	if req.Primitive == "" {
		writeError(w, http.StatusBadRequest, "primitive is required")
		return
	}
	if len(req.Precision) != len(req.Mean) {
		writeError(w, http.StatusBadRequest, "precision and mean must have the same dimension")
		return
	}

	for i := range req.Precision {
		req.Precision[i] = domain.ClampPrecision(req.Precision[i])
	}
	if req.Confidence == 0 {
		req.Confidence = 0.5
	}

	b := &domain.BeliefState{
		AgentID:    req.AgentID,
		Primitive:  req.Primitive,
		Mean:       req.Mean,
		Precision:  req.Precision,
		Dimension:  len(req.Mean),
		Confidence: domain.ClampConfidence(req.Confidence),
		Status:     domain.BeliefActive,
	}
	if err := h.beliefs.Create(r.Context(), b); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create belief")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BeliefHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	b, err := h.beliefs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "belief not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BeliefHandler) List(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(r.URL.Query().Get("agent_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "agent_id query parameter is required")
		return
	}

	beliefs, err := h.beliefs.ListByAgent(r.Context(), agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list beliefs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"beliefs": beliefs, "count": len(beliefs)})
}

type recordErrorRequest struct {
	Error    float64 `json:"error"`
	Variance float64 `json:"variance"`
}

// RecordError accepts one prediction error from the inference engine.
func (h *BeliefHandler) RecordError(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req recordErrorRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.updater.RecordError(r.Context(), id, req.Error, req.Variance); err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

// Update triggers one confidence revision from the accumulated evidence.
func (h *BeliefHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	res, err := h.updater.Update(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Recover reevaluates an archived belief against its fresh evidence and
// reactivates it when the evidence supports recovery.
func (h *BeliefHandler) Recover(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	res, err := h.updater.Recover(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
