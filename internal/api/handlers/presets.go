package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/amaumene/renamarr/internal/models"
	"github.com/amaumene/renamarr/internal/scheme"
	"github.com/sirupsen/logrus"
)

// PresetsHandler handles naming preset requests. Built-in presets are
// always listed; a stored preset with the same name shadows them.
type PresetsHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewPresetsHandler creates a new presets handler
func NewPresetsHandler(db *models.Database, logger *logrus.Logger) *PresetsHandler {
	return &PresetsHandler{db: db, logger: logger}
}

// PresetResponse represents one preset in listings
type PresetResponse struct {
	Name    string `json:"name"`
	Scheme  string `json:"scheme"`
	Builtin bool   `json:"builtin"`
}

// ServeCollection handles /api/presets
func (h *PresetsHandler) ServeCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stored, err := h.db.GetAllPresets()
	if err != nil {
		h.logger.WithError(err).Error("Failed to load presets")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	merged := make(map[string]PresetResponse)
	for name, s := range scheme.BuiltinPresets {
		merged[name] = PresetResponse{Name: name, Scheme: s, Builtin: true}
	}
	for _, p := range stored {
		merged[p.Name] = PresetResponse{Name: p.Name, Scheme: p.Scheme}
	}

	out := make([]PresetResponse, 0, len(merged))
	for _, p := range merged {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// ServeItem handles /api/presets/{name}
func (h *PresetsHandler) ServeItem(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/presets/"), "/")
	if name == "" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, name)
	case http.MethodPut:
		h.put(w, r, name)
	case http.MethodDelete:
		h.delete(w, name)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PresetsHandler) get(w http.ResponseWriter, name string) {
	p, err := h.db.GetPreset(name)
	if err == nil {
		writeJSON(w, PresetResponse{Name: p.Name, Scheme: p.Scheme})
		return
	}
	if !errors.Is(err, models.ErrNotFound) {
		h.logger.WithError(err).Error("Failed to load preset")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if s, ok := scheme.BuiltinPresets[name]; ok {
		writeJSON(w, PresetResponse{Name: name, Scheme: s, Builtin: true})
		return
	}
	http.Error(w, "Preset not found", http.StatusNotFound)
}

func (h *PresetsHandler) put(w http.ResponseWriter, r *http.Request, name string) {
	var body struct {
		Scheme string `json:"scheme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Scheme == "" {
		http.Error(w, "Scheme is required", http.StatusBadRequest)
		return
	}

	preset := &models.Preset{
		Name:      name,
		Scheme:    body.Scheme,
		UpdatedAt: time.Now(),
	}
	if err := h.db.SavePreset(preset); err != nil {
		h.logger.WithError(err).Error("Failed to save preset")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, PresetResponse{Name: name, Scheme: body.Scheme})
}

func (h *PresetsHandler) delete(w http.ResponseWriter, name string) {
	err := h.db.DeletePreset(name)
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Preset not found", http.StatusNotFound)
	case err != nil:
		h.logger.WithError(err).Error("Failed to delete preset")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
