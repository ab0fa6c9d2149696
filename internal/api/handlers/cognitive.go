package handlers

import (
	"net/http"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/service"
	"github.com/google/uuid"
)

// CognitiveHandler exposes the per-cycle operations: forecasting, binding,
// full cycles, and the introspective read-only views.
type CognitiveHandler struct {
	forecaster   *service.ForecasterService
	binder       *service.BinderService
	reality      *service.RealityService
	monitor      *service.MonitorService
	epistemic    *service.EpistemicService
	orchestrator *service.Orchestrator
}

func NewCognitiveHandler(
	forecaster *service.ForecasterService,
	binder *service.BinderService,
	reality *service.RealityService,
	monitor *service.MonitorService,
	epistemic *service.EpistemicService,
	orchestrator *service.Orchestrator,
) *CognitiveHandler {
	return &CognitiveHandler{
		forecaster:   forecaster,
		binder:       binder,
		reality:      reality,
		monitor:      monitor,
		epistemic:    epistemic,
		orchestrator: orchestrator,
	}
}

// Forecast regenerates the precision profile. A deadline miss still answers
// with the fallback profile, flagged as degraded.
func (h *CognitiveHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	var input domain.ForecastInput
	if err := decode(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.forecaster.Forecast(r.Context(), input)
	if err != nil {
		if domain.IsKind(err, domain.KindForecastTimeout) && profile != nil {
			writeJSON(w, http.StatusOK, map[string]any{"profile": profile, "degraded": true})
			return
		}
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile, "degraded": false})
}

type bindRequest struct {
	AgentID    uuid.UUID                   `json:"agent_id"`
	Candidates []domain.CandidateInference `json:"candidates"`
	Options    service.BindOptions         `json:"options"`
}

// Bind runs one binding competition and integrates the winners.
func (h *CognitiveHandler) Bind(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	view := h.reality.Snapshot(req.AgentID)
	result, err := h.binder.Bind(r.Context(), view, req.Candidates, req.Options)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	integrated, err := h.reality.Integrate(r.Context(), req.AgentID, view.Version, result)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"binding": result, "view": integrated})
}

// Cycle runs the full forecast-bind-integrate-learn-update loop.
func (h *CognitiveHandler) Cycle(w http.ResponseWriter, r *http.Request) {
	var input service.CycleInput
	if err := decode(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.orchestrator.RunCycle(r.Context(), input)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Reality returns the current model snapshot.
func (h *CognitiveHandler) Reality(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(r.URL.Query().Get("agent_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "agent_id query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, h.reality.Snapshot(agentID))
}

// Monitor returns the introspective assessment plus the epistemic state.
func (h *CognitiveHandler) Monitor(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(r.URL.Query().Get("agent_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "agent_id query parameter is required")
		return
	}

	assessment, err := h.monitor.Assess(r.Context(), agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "assessment failed")
		return
	}

	epistemic, err := h.epistemic.Assess(r.Context(), agentID, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "epistemic assessment failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assessment": assessment,
		"epistemic":  epistemic,
	})
}
