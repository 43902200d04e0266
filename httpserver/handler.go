package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/tee-keymaster-state/authtag"
	"github.com/ruteri/tee-keymaster-state/interfaces"
	"github.com/ruteri/tee-keymaster-state/keymaster"
)

// Handler serves the state inspection and administration endpoints.
type Handler struct {
	km  *keymaster.Context
	log *slog.Logger
}

// NewHandler creates a handler operating on km.
func NewHandler(km *keymaster.Context, log *slog.Logger) *Handler {
	return &Handler{km: km, log: log}
}

// AuthTagInfo is the JSON form of one auth tag entry.
type AuthTagInfo struct {
	Tag        string `json:"tag"`
	UsageCount uint32 `json:"usage_count"`
}

// AuthTagList is the response of GET /api/v1/authtags.
type AuthTagList struct {
	Count    int           `json:"count"`
	Capacity int           `json:"capacity"`
	Tags     []AuthTagInfo `json:"tags"`
}

type errorResponse struct {
	Error string `json:"error"`
	SW    string `json:"sw"`
}

// Ready reports an error once the keymaster no longer accepts cycles.
func (h *Handler) Ready() error {
	if h.km.Status().TornDown {
		return fmt.Errorf("%w: keymaster torn down", interfaces.ErrCommandNotAllowed)
	}
	return nil
}

// HandleStatus returns a keymaster.Status snapshot.
//
// URL format: GET /api/v1/status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.km.Status())
}

// HandleListAuthTags returns every reserved auth tag with its usage counter.
//
// URL format: GET /api/v1/authtags
func (h *Handler) HandleListAuthTags(w http.ResponseWriter, r *http.Request) {
	var resp AuthTagList
	err := h.km.Process(r.Context(), func(c *keymaster.Cycle) error {
		repo := c.AuthTags()
		resp = AuthTagList{
			Count:    repo.Count(),
			Capacity: repo.Capacity(),
			Tags:     toInfo(repo.Entries()),
		}
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetAuthTag returns the usage counter of a single tag.
//
// URL format: GET /api/v1/authtags/{tag}
func (h *Handler) HandleGetAuthTag(w http.ResponseWriter, r *http.Request) {
	tag, err := interfaces.NewAuthTagFromHex(chi.URLParam(r, "tag"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var info AuthTagInfo
	err = h.km.Process(r.Context(), func(c *keymaster.Cycle) error {
		n := c.AuthTags().UsageCount(tag)
		if n == authtag.InvalidUsageCount {
			return interfaces.ErrNotFound
		}
		info = AuthTagInfo{Tag: tag.String(), UsageCount: n}
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// HandlePurgeAuthTags removes every auth tag.
//
// URL format: DELETE /api/v1/authtags
func (h *Handler) HandlePurgeAuthTags(w http.ResponseWriter, r *http.Request) {
	var removed int
	err := h.km.Process(r.Context(), func(c *keymaster.Cycle) error {
		removed = c.AuthTags().Count()
		return c.AuthTags().RemoveAll(c.Context())
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.log.Warn("All auth tags removed", slog.Int("removed", removed))
	h.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func toInfo(entries []authtag.Entry) []AuthTagInfo {
	out := make([]AuthTagInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuthTagInfo{Tag: e.Tag.String(), UsageCount: e.UsageCount})
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, interfaces.ErrInvalidData):
		status = http.StatusBadRequest
	case errors.Is(err, interfaces.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, interfaces.ErrCommandNotAllowed):
		status = http.StatusConflict
	case errors.Is(err, interfaces.ErrBackendUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err)
	}
	h.writeJSON(w, status, errorResponse{
		Error: err.Error(),
		SW:    fmt.Sprintf("%04X", interfaces.StatusWord(err)),
	})
}
