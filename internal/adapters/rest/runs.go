package rest

import (
	"net/http"
	"strconv"

	"github.com/ewilliams-labs/songtagger/internal/core/graph"
)

func runOptions(r *http.Request) (graph.RunOptions, error) {
	var opts graph.RunOptions
	q := r.URL.Query()
	if v := q.Get("include_all"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, err
		}
		opts.IncludeAll = b
	}
	if v := q.Get("persist"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, err
		}
		opts.Persist = b
	}
	return opts, nil
}

// RunGraph handles POST /graphs/{id}/run and waits for the result.
func (h *Handler) RunGraph(w http.ResponseWriter, r *http.Request) {
	opts, err := runOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "include_all and persist must be booleans")
		return
	}
	report, err := h.svc.Run(r.Context(), r.PathValue("id"), opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(report))
}

// SubmitRun handles POST /graphs/{id}/runs and queues the run.
func (h *Handler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	opts, err := runOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "include_all and persist must be booleans")
		return
	}
	id := r.PathValue("id")
	if _, err := h.svc.Definition(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	run, err := h.pool.Submit(id, opts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, newBackgroundRunResponse(run))
}

// GetRun handles GET /runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.pool.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, newBackgroundRunResponse(run))
}

// CancelRun handles DELETE /runs/{id}
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.pool.Cancel(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBackgroundRunResponse(run))
}
