package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ewilliams-labs/songtagger/internal/core/domain"
)

// ListGraphs handles GET /graphs
func (h *Handler) ListGraphs(w http.ResponseWriter, r *http.Request) {
	defs, err := h.svc.ListDefinitions(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

// SaveGraph handles POST /graphs. The body is a graph definition; an empty
// id creates a new graph.
func (h *Handler) SaveGraph(w http.ResponseWriter, r *http.Request) {
	var def domain.GraphDefinition
	if !decodeBody(w, r, &def) {
		return
	}
	normalizeConfig(&def)

	saved, err := h.svc.SaveDefinition(r.Context(), def)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if def.ID == "" {
		status = http.StatusCreated
	}
	h.respondGraph(w, r, saved, status)
}

// GetGraph handles GET /graphs/{id}
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	def, err := h.svc.Definition(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.respondGraph(w, r, def, http.StatusOK)
}

func (h *Handler) respondGraph(w http.ResponseWriter, r *http.Request, def domain.GraphDefinition, status int) {
	st, err := h.svc.Status(r.Context(), def.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, newGraphResponse(def, st))
}

// UpdateNode handles PATCH /graphs/{id}/nodes/{key}. The body is a partial
// config object.
func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if !decodeBody(w, r, &patch) {
		return
	}
	node, err := h.svc.UpdateNode(r.Context(), r.PathValue("id"), r.PathValue("key"), numbersToFloats(patch))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

type edgeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *Handler) decodeEdge(w http.ResponseWriter, r *http.Request) (edgeRequest, bool) {
	var req edgeRequest
	if !decodeBody(w, r, &req) {
		return req, false
	}
	if strings.TrimSpace(req.From) == "" || strings.TrimSpace(req.To) == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return req, false
	}
	return req, true
}

// AddEdge handles POST /graphs/{id}/edges
func (h *Handler) AddEdge(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeEdge(w, r)
	if !ok {
		return
	}
	if err := h.svc.Connect(r.Context(), r.PathValue("id"), req.From, req.To); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.GetGraph(w, r)
}

// RemoveEdge handles DELETE /graphs/{id}/edges
func (h *Handler) RemoveEdge(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeEdge(w, r)
	if !ok {
		return
	}
	if err := h.svc.Disconnect(r.Context(), r.PathValue("id"), req.From, req.To); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.GetGraph(w, r)
}

// normalizeConfig converts json.Number values left by decodeBody.
func normalizeConfig(def *domain.GraphDefinition) {
	for i := range def.Nodes {
		def.Nodes[i].Config = numbersToFloats(def.Nodes[i].Config)
	}
}

func numbersToFloats(cfg map[string]any) map[string]any {
	for k, v := range cfg {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil {
			cfg[k] = int(i)
			continue
		}
		f, err := n.Float64()
		if err != nil {
			cfg[k] = fmt.Sprint(n)
			continue
		}
		cfg[k] = f
	}
	return cfg
}
