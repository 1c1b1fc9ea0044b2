package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/murdrae/heimdall-mcp-server-sub000/internal/domain"
	"github.com/murdrae/heimdall-mcp-server-sub000/internal/service"
)

// MemoryHandler exposes four of the Coordinator's five operations over HTTP
// (spec.md §4.10). load_memories_from_source is not reachable here: it
// takes a domain.Loader, a Go interface with no HTTP-shaped equivalent, and
// no concrete loader ships with this engine (spec.md §1/§6).
type MemoryHandler struct {
	coordinator *service.Coordinator
}

func NewMemoryHandler(coordinator *service.Coordinator) *MemoryHandler {
	return &MemoryHandler{coordinator: coordinator}
}

type storeExperienceRequest struct {
	Text    string         `json:"text"`
	Context map[string]any `json:"context,omitempty"`
}

type storeExperienceResponse struct {
	ID string `json:"id"`
}

// StoreExperience handles POST /v1/memories.
func (h *MemoryHandler) StoreExperience(w http.ResponseWriter, r *http.Request) {
	var req storeExperienceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	id, err := h.coordinator.StoreExperience(r.Context(), req.Text, req.Context)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store experience")
		return
	}

	writeJSON(w, http.StatusCreated, storeExperienceResponse{ID: id})
}

// RetrieveMemories handles GET /v1/memories?query=...&types=core,bridge&max_results=20.
func (h *MemoryHandler) RetrieveMemories(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	var types []string
	if typesParam := r.URL.Query().Get("types"); typesParam != "" {
		for _, t := range strings.Split(typesParam, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	maxResults := 20
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			maxResults = n
		}
	}

	result, err := h.coordinator.RetrieveMemories(r.Context(), query, types, maxResults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retrieve memories")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type upsertMemoriesRequest struct {
	Memories []domain.Memory `json:"memories"`
}

// UpsertMemories handles PUT /v1/memories.
func (h *MemoryHandler) UpsertMemories(w http.ResponseWriter, r *http.Request) {
	var req upsertMemoriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Memories) == 0 {
		writeError(w, http.StatusBadRequest, "memories is required")
		return
	}

	result, err := h.coordinator.UpsertMemories(r.Context(), req.Memories)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to upsert memories")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Consolidate handles POST /v1/consolidate.
func (h *MemoryHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	result, err := h.coordinator.ConsolidateMemories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to consolidate memories")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
