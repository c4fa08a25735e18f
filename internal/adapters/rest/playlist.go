package rest

import (
	"net/http"
)

// ListPlaylists handles GET /playlists
func (h *Handler) ListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.library.ListPlaylists(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]playlistResponse, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, playlistResponse{ID: p.ID, Name: p.Name, Kind: string(p.Kind)})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPlaylist handles GET /playlists/{id}
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlistID := r.PathValue("id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "playlist id is required")
		return
	}

	playlist, err := h.library.GetPlaylist(r.Context(), playlistID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlistResponse{
		ID:     playlist.ID,
		Name:   playlist.Name,
		Kind:   string(playlist.Kind),
		Tracks: newTrackList(playlist.Tracks),
	})
}

// ListTags handles GET /tags
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.library.Tags(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}
